package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
	"github.com/go-while/go-pugblog/internal/models"
)

// loadPost resolves the :id parameter and renders 404 or 500 on failure
func (s *WebServer) loadPost(c *gin.Context) (*models.Post, bool) {
	id, ok := parsePostID(c)
	if !ok {
		s.renderError(c, http.StatusNotFound, "Post not found", "invalid post id "+c.Param("id"))
		return nil, false
	}
	post, err := s.DB.GetPost(id)
	if err != nil {
		if errors.Is(err, database.ErrPostNotFound) {
			s.renderError(c, http.StatusNotFound, "Post not found", err.Error())
		} else {
			s.renderError(c, http.StatusInternalServerError, "Database error", err.Error())
		}
		return nil, false
	}
	return post, true
}

// loadOwnedPost is loadPost plus the author check: only the author may
// change a post, staff included
func (s *WebServer) loadOwnedPost(c *gin.Context, forbidden string) (*models.Post, bool) {
	post, ok := s.loadPost(c)
	if !ok {
		return nil, false
	}
	session := currentSession(c)
	if session == nil || !post.IsAuthor(session.UserID) {
		s.renderError(c, http.StatusForbidden, forbidden, "not the author of this post")
		return nil, false
	}
	return post, true
}
