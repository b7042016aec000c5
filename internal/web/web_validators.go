package web

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-while/go-pugblog/internal/database"
	"golang.org/x/text/unicode/norm"
)

const (
	usernameMaxLen        = 150
	passwordMinLen        = 8
	passwordMaxBytes      = database.MaxPasswordBytes
	maxUsernameSimilarity = 0.7
)

var errInvalidUsername = errors.New("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")

//go:embed common_passwords.txt
var commonPasswordsRaw string

var commonPasswords = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, line := range strings.Split(commonPasswordsRaw, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			m[strings.ToLower(line)] = struct{}{}
		}
	}
	return m
}()

// normalizeUsername trims and applies NFKC so that visually identical
// names map to one account
func normalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// validateUsername allows letters, digits and @ . + - _ up to 150 characters
func validateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n > usernameMaxLen {
		return fmt.Errorf("Ensure this value has at most %d characters (it has %d).", usernameMaxLen, n)
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune("_@.+-", r) {
			continue
		}
		return errInvalidUsername
	}
	return nil
}

// validatePassword returns every rule the password breaks, in a fixed order:
// similarity to the username, minimum length, common password, all digits
func validatePassword(password, username string) []string {
	var problems []string
	if tooSimilar(password, username) {
		problems = append(problems, "The password is too similar to the username.")
	}
	if n := utf8.RuneCountInString(password); n < passwordMinLen {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", passwordMinLen))
	} else if len(password) > passwordMaxBytes {
		problems = append(problems, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", passwordMaxBytes))
	}
	if _, common := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; common {
		problems = append(problems, "This password is too common.")
	}
	if isAllDigits(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// tooSimilar compares the password against the username and each of its
// word parts using a character multiset ratio
func tooSimilar(password, username string) bool {
	if password == "" || username == "" {
		return false
	}
	pw := strings.ToLower(password)
	value := strings.ToLower(username)
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_')
	})
	parts = append(parts, value)
	for _, part := range parts {
		if exceedsMaxLengthRatio(pw, part) {
			continue
		}
		if quickRatio(pw, part) >= maxUsernameSimilarity {
			return true
		}
	}
	return false
}

// exceedsMaxLengthRatio skips comparisons where the password is so much
// longer than the value that the ratio cannot reach the limit
func exceedsMaxLengthRatio(password, value string) bool {
	pwdLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	lengthBound := maxUsernameSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < lengthBound
}

// quickRatio is 2*M/T where M counts the characters both strings share
// (as multisets) and T is the sum of both lengths
func quickRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int)
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

// CheckNewUser applies the signup rules to accounts created outside the web
// form; it returns the normalized username and every problem found
func CheckNewUser(username, password string) (string, []string) {
	username = normalizeUsername(username)
	var problems []string
	if username == "" {
		problems = append(problems, "Username: "+msgFieldRequired)
	} else if err := validateUsername(username); err != nil {
		problems = append(problems, "Username: "+err.Error())
	}
	problems = append(problems, validatePassword(password, username)...)
	return username, problems
}
