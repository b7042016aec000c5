package web

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"alice", false},
		{"a.b+c-d_e@f", false},
		{"jürgen", false},
		{"with space", true},
		{"semi;colon", true},
		{strings.Repeat("u", usernameMaxLen), false},
		{strings.Repeat("u", usernameMaxLen+1), true},
	}
	for _, tt := range tests {
		if err := validateUsername(tt.name); (err != nil) != tt.wantErr {
			t.Errorf("validateUsername(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNormalizeUsername(t *testing.T) {
	// fullwidth letters fold to ASCII under NFKC
	if got := normalizeUsername("  ａｌｉｃｅ "); got != "alice" {
		t.Errorf("normalizeUsername() = %q, want alice", got)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		username string
		want     []string
	}{
		{"tangerine-skyline-42", "alice", nil},
		{"short1", "alice", []string{"too short"}},
		{"password", "alice", []string{"too common"}},
		{"12345678", "alice", []string{"too common", "entirely numeric"}},
		{"80417263", "alice", []string{"entirely numeric"}},
		{"alice2024", "alice", []string{"too similar"}},
		{"frost.bitten", "frost.bitten", []string{"too similar"}},
		{strings.Repeat("tangerine-skyline-", 4), "alice", nil},
		{strings.Repeat("tangerine-skyline-", 5), "alice", []string{"too long"}},
		{strings.Repeat("é", 40), "alice", []string{"too long"}},
	}
	for _, tt := range tests {
		got := validatePassword(tt.password, tt.username)
		if len(got) != len(tt.want) {
			t.Errorf("validatePassword(%q, %q) = %q, want %d problems", tt.password, tt.username, got, len(tt.want))
			continue
		}
		for i, fragment := range tt.want {
			if !strings.Contains(got[i], fragment) {
				t.Errorf("validatePassword(%q)[%d] = %q, want it to mention %q", tt.password, i, got[i], fragment)
			}
		}
	}
}

func TestQuickRatio(t *testing.T) {
	if r := quickRatio("abcd", "abcd"); r != 1 {
		t.Errorf("quickRatio(equal) = %v", r)
	}
	if r := quickRatio("abcd", "wxyz"); r != 0 {
		t.Errorf("quickRatio(disjoint) = %v", r)
	}
	if r := quickRatio("ab", "ba"); r != 1 {
		t.Errorf("quickRatio ignores order, got %v", r)
	}
	// a very long password is not compared against a short username part
	if !exceedsMaxLengthRatio(strings.Repeat("x", 40), "ab") {
		t.Errorf("exceedsMaxLengthRatio() = false for 40 vs 2 characters")
	}
}

func TestSignupForm_Validate(t *testing.T) {
	f := &SignupForm{Username: "bob", Password1: "tangerine-skyline-42", Password2: "tangerine-skyline-43"}
	if f.Validate() {
		t.Fatal("mismatching passwords validated")
	}
	if errs := f.Errors.Get("password2"); len(errs) != 1 || !strings.Contains(errs[0], "didn’t match") {
		t.Errorf("password2 errors = %q", errs)
	}

	f = &SignupForm{}
	f.Validate()
	for _, field := range []string{"username", "password1", "password2"} {
		if errs := f.Errors.Get(field); len(errs) != 1 || errs[0] != msgFieldRequired {
			t.Errorf("%s errors = %q", field, errs)
		}
	}

	f = &SignupForm{Username: "bob", Password1: "tangerine-skyline-42", Password2: "tangerine-skyline-42"}
	if !f.Validate() {
		t.Errorf("valid form rejected: %v", f.Errors)
	}
}

func TestPostForm_Validate(t *testing.T) {
	f := newPostForm(strings.Repeat("é", postTitleMaxLen), "body")
	if !f.Validate() {
		t.Errorf("title of exactly %d characters rejected: %v", postTitleMaxLen, f.Errors)
	}
	f = newPostForm("", "")
	if f.Validate() || len(f.Errors.Get("title")) != 1 || len(f.Errors.Get("content")) != 1 {
		t.Errorf("empty form errors = %v", f.Errors)
	}
}

func TestSafeRedirectTarget(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/create/":             "/create/",
		"/post/1/?a=b":         "/post/1/?a=b",
		"//evil.example.com":   "/",
		"/\\evil.example.com":  "/",
		"https://evil.example": "/",
		"/x\r\nSet-Cookie: a":  "/",
	}
	for in, want := range tests {
		if got := safeRedirectTarget(in); got != want {
			t.Errorf("safeRedirectTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlashStore(t *testing.T) {
	f := NewFlashStore()
	f.Add("c1", "success", "one")
	f.Add("c1", "error", "two")
	f.Add("", "error", "dropped")

	msgs := f.Pop("c1")
	if len(msgs) != 2 || msgs[0].Message != "one" || msgs[1].Type != "error" {
		t.Fatalf("Pop() = %+v", msgs)
	}
	if msgs := f.Pop("c1"); len(msgs) != 0 {
		t.Errorf("second Pop() = %+v", msgs)
	}

	f.Add("c2", "success", "stale")
	if n := f.Prune(-1); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
}

func TestCheckNewUser(t *testing.T) {
	name, problems := CheckNewUser(" ｂｏｂ ", "tangerine-skyline-42")
	if name != "bob" || len(problems) != 0 {
		t.Errorf("CheckNewUser() = %q, %q", name, problems)
	}
	_, problems = CheckNewUser("bad name", "123")
	if len(problems) != 3 {
		t.Errorf("CheckNewUser(bad) problems = %q, want username, short and numeric", problems)
	}
}
