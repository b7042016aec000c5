package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
)

const (
	msgSignupDone         = "Your account was created successfully! 🎉"
	msgUsernameTaken      = "A user with that username already exists."
	msgRegistrationClosed = "New user registration is currently disabled."
)

// SignupPageData represents data for the signup page
type SignupPageData struct {
	TemplateData
	Form *SignupForm
}

// registrationOpen renders 403 and returns false when signups are switched off
func (s *WebServer) registrationOpen(c *gin.Context) bool {
	enabled, err := s.DB.IsRegistrationEnabled()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
		return false
	}
	if !enabled {
		s.renderError(c, http.StatusForbidden, msgRegistrationClosed, "registration disabled")
		return false
	}
	return true
}

// signupPage displays the registration form
func (s *WebServer) signupPage(c *gin.Context) {
	if !s.registrationOpen(c) {
		return
	}

	data := SignupPageData{
		TemplateData: s.getBaseTemplateData(c, "Sign up"),
		Form:         &SignupForm{Errors: FormErrors{}},
	}
	s.renderTemplate(c, "signup.html", data)
}

// signupSubmit creates the account and sends the user to the login page
func (s *WebServer) signupSubmit(c *gin.Context) {
	if !s.registrationOpen(c) {
		return
	}

	form := bindSignupForm(c)
	if !form.Validate() {
		s.renderSignupError(c, form)
		return
	}

	user, err := s.DB.CreateUser(form.Username, form.Password1, false)
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			form.Errors.Add("username", msgUsernameTaken)
			s.renderSignupError(c, form)
			return
		}
		s.renderError(c, http.StatusInternalServerError, "Failed to create user", err.Error())
		return
	}
	log.Printf("[WEB]: created user %q with ID %d", user.Username, user.ID)

	s.SetSuccess(c, msgSignupDone)
	c.Redirect(http.StatusSeeOther, "/login/")
}

// renderSignupError renders the signup page with the form errors; the
// passwords are never echoed back
func (s *WebServer) renderSignupError(c *gin.Context, form *SignupForm) {
	form.Password1, form.Password2 = "", ""
	data := SignupPageData{
		TemplateData: s.getBaseTemplateData(c, "Sign up"),
		Form:         form,
	}
	s.renderTemplateStatus(c, http.StatusBadRequest, "signup.html", data)
}
