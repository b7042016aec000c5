package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
)

const (
	msgRegistrationOn  = "Registration enabled"
	msgRegistrationOff = "Registration disabled"
	msgUserDeleted     = "User deleted successfully"
	msgDeleteSelf      = "Cannot delete your own account"
)

// adminPage lists the accounts and the registration switch. Posts are not
// managed here; only their authors may change them.
func (s *WebServer) adminPage(c *gin.Context) {
	users, err := s.DB.GetAllUsers()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to load users", err.Error())
		return
	}
	s.renderTemplate(c, "admin.html", AdminPageData{
		TemplateData: s.getBaseTemplateData(c, "Admin"),
		Users:        users,
	})
}

// adminSetRegistration switches signup on or off
func (s *WebServer) adminSetRegistration(c *gin.Context) {
	enabled, err := strconv.ParseBool(c.PostForm("enabled"))
	if err != nil {
		s.SetError(c, "Invalid registration state")
		c.Redirect(http.StatusSeeOther, "/admin/")
		return
	}
	if err := s.DB.SetRegistrationEnabled(enabled); err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to update registration", err.Error())
		return
	}
	if enabled {
		s.SetSuccess(c, msgRegistrationOn)
	} else {
		s.SetSuccess(c, msgRegistrationOff)
	}
	c.Redirect(http.StatusSeeOther, "/admin/")
}

// adminDeleteUser removes an account together with its sessions and posts
func (s *WebServer) adminDeleteUser(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	if session := currentSession(c); session != nil && session.User.Username == username {
		s.SetError(c, msgDeleteSelf)
		c.Redirect(http.StatusSeeOther, "/admin/")
		return
	}

	err := s.DB.DeleteUserByUsername(username)
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		s.SetError(c, "User not found")
	case err != nil:
		s.renderError(c, http.StatusInternalServerError, "Failed to delete user", err.Error())
		return
	default:
		s.SetSuccess(c, msgUserDeleted)
	}
	c.Redirect(http.StatusSeeOther, "/admin/")
}
