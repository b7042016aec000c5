package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const csrfFormField = "csrfmiddlewaretoken"
const csrfHeader = "X-CSRFToken"

// CSRFToken derives the form token of a client id
func (s *WebServer) CSRFToken(clientID string) string {
	if clientID == "" {
		return ""
	}
	mac := hmac.New(sha256.New, s.csrfKey)
	mac.Write([]byte(clientID))
	return hex.EncodeToString(mac.Sum(nil))
}

// CSRFMiddleware rejects unsafe requests without the client's token.
// Must run after ClientMiddleware.
func (s *WebServer) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		// a freshly issued client id cannot have a valid token yet
		if c.GetBool(ctxNewClient) || !s.validCSRFToken(c) {
			log.Printf("[WEB]: CSRF verification failed for %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
			s.renderError(c, http.StatusForbidden, "CSRF verification failed. Request aborted.", "missing or incorrect csrf token")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *WebServer) validCSRFToken(c *gin.Context) bool {
	token := c.PostForm(csrfFormField)
	if token == "" {
		token = c.GetHeader(csrfHeader)
	}
	if token == "" {
		return false
	}
	expected := s.CSRFToken(clientID(c))
	return hmac.Equal([]byte(token), []byte(expected))
}
