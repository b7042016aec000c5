package web

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

const (
	nonFieldErrors   = "__all__"
	msgFieldRequired = "This field is required."
	postTitleMaxLen  = 200
)

// FormErrors maps a field name to its error messages; nonFieldErrors holds
// errors about the form as a whole
type FormErrors map[string][]string

func (e FormErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Get returns the errors of one field
func (e FormErrors) Get(field string) []string {
	return e[field]
}

// NonField returns the errors not bound to a field
func (e FormErrors) NonField() []string {
	return e[nonFieldErrors]
}

func (e FormErrors) Valid() bool {
	return len(e) == 0
}

// PostForm is the create and edit form of a post. The author is never read
// from the form.
type PostForm struct {
	Title   string
	Content string
	Errors  FormErrors
}

func newPostForm(title, content string) *PostForm {
	return &PostForm{Title: title, Content: content, Errors: FormErrors{}}
}

// bindPostForm reads and validates a submitted post form
func bindPostForm(c *gin.Context) *PostForm {
	f := newPostForm(strings.TrimSpace(c.PostForm("title")), strings.TrimSpace(c.PostForm("content")))
	f.Validate()
	return f
}

// Validate checks required fields and the title length
func (f *PostForm) Validate() bool {
	if f.Errors == nil {
		f.Errors = FormErrors{}
	}
	if f.Title == "" {
		f.Errors.Add("title", msgFieldRequired)
	} else if n := utf8.RuneCountInString(f.Title); n > postTitleMaxLen {
		f.Errors.Add("title", fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", postTitleMaxLen, n))
	}
	if f.Content == "" {
		f.Errors.Add("content", msgFieldRequired)
	}
	return f.Errors.Valid()
}

// SignupForm is the account creation form: username plus a password entered twice
type SignupForm struct {
	Username  string
	Password1 string
	Password2 string
	Errors    FormErrors
}

func bindSignupForm(c *gin.Context) *SignupForm {
	return &SignupForm{
		Username:  normalizeUsername(c.PostForm("username")),
		Password1: c.PostForm("password1"),
		Password2: c.PostForm("password2"),
		Errors:    FormErrors{},
	}
}

// Validate runs the field checks that need no database access
func (f *SignupForm) Validate() bool {
	if f.Errors == nil {
		f.Errors = FormErrors{}
	}
	if f.Username == "" {
		f.Errors.Add("username", msgFieldRequired)
	} else if err := validateUsername(f.Username); err != nil {
		f.Errors.Add("username", err.Error())
	}
	if f.Password1 == "" {
		f.Errors.Add("password1", msgFieldRequired)
	}
	if f.Password2 == "" {
		f.Errors.Add("password2", msgFieldRequired)
	}
	if f.Password1 != "" && f.Password2 != "" {
		if f.Password1 != f.Password2 {
			f.Errors.Add("password2", "The two password fields didn’t match.")
		} else {
			for _, msg := range validatePassword(f.Password2, f.Username) {
				f.Errors.Add("password2", msg)
			}
		}
	}
	return f.Errors.Valid()
}

// LoginForm carries the submitted credentials and the redirect target
type LoginForm struct {
	Username string
	Next     string
	Errors   FormErrors
}
