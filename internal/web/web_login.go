package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
)

const (
	msgInvalidLogin = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	msgLockedOut    = "Account temporarily locked due to too many failed attempts. Try again in 15 minutes."
	msgLoggedOut    = "You have been logged out. 👋"
)

// LoginPageData represents data for login page
type LoginPageData struct {
	TemplateData
	Form *LoginForm
}

// loginPage displays the login form
func (s *WebServer) loginPage(c *gin.Context) {
	next := safeRedirectTarget(c.Query("next"))

	// Already logged in
	if currentSession(c) != nil {
		c.Redirect(http.StatusSeeOther, next)
		return
	}

	data := LoginPageData{
		TemplateData: s.getBaseTemplateData(c, "Login"),
		Form:         &LoginForm{Next: c.Query("next"), Errors: FormErrors{}},
	}
	s.renderTemplate(c, "login.html", data)
}

// loginSubmit processes login form submission
func (s *WebServer) loginSubmit(c *gin.Context) {
	form := &LoginForm{
		Username: normalizeUsername(c.PostForm("username")),
		Next:     c.PostForm("next"),
		Errors:   FormErrors{},
	}
	password := c.PostForm("password")

	if form.Username == "" {
		form.Errors.Add("username", msgFieldRequired)
	}
	if password == "" {
		form.Errors.Add("password", msgFieldRequired)
	}
	if !form.Errors.Valid() {
		s.renderLoginError(c, form)
		return
	}

	lockedOut, err := s.DB.IsUserLockedOut(form.Username)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Login error. Please try again.", err.Error())
		return
	}
	if lockedOut {
		log.Printf("[WEB]: login refused for locked account %q from %s", form.Username, c.ClientIP())
		form.Errors.Add(nonFieldErrors, msgLockedOut)
		s.renderLoginError(c, form)
		return
	}

	user, err := s.DB.GetUserByUsername(form.Username)
	if err != nil && !errors.Is(err, database.ErrUserNotFound) {
		s.renderError(c, http.StatusInternalServerError, "Login error. Please try again.", err.Error())
		return
	}
	if user == nil || !database.CheckPassword(user.PasswordHash, password) {
		if user != nil {
			if err := s.DB.IncrementLoginAttempts(form.Username); err != nil {
				log.Printf("[WEB]: failed to count login attempt for %q: %v", form.Username, err)
			}
		}
		form.Errors.Add(nonFieldErrors, msgInvalidLogin)
		s.renderLoginError(c, form)
		return
	}

	// CreateUserSession also resets the failed attempts counter
	sessionID, err := s.DB.CreateUserSession(user.ID, c.ClientIP())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to create session", err.Error())
		return
	}
	s.setSessionCookie(c, sessionID)
	log.Printf("[WEB]: user %q logged in from %s", user.Username, c.ClientIP())

	c.Redirect(http.StatusSeeOther, safeRedirectTarget(form.Next))
}

// logout ends the current session, if any, and returns to the listing
func (s *WebServer) logout(c *gin.Context) {
	if session := currentSession(c); session != nil {
		if err := s.DB.InvalidateUserSessionBySessionID(session.SessionID); err != nil {
			log.Printf("[WEB]: failed to invalidate session of %q: %v", session.User.Username, err)
		}
		s.SetSuccess(c, msgLoggedOut)
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// renderLoginError renders login page with the form errors
func (s *WebServer) renderLoginError(c *gin.Context, form *LoginForm) {
	data := LoginPageData{
		TemplateData: s.getBaseTemplateData(c, "Login"),
		Form:         form,
	}
	s.renderTemplateStatus(c, http.StatusBadRequest, "login.html", data)
}
