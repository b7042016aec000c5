package web

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
	"github.com/go-while/go-pugblog/internal/models"
	"github.com/google/uuid"
)

const (
	sessionCookieName = "session_id"
	clientCookieName  = "client_id"
	clientCookieAge   = 365 * 24 * 3600

	ctxClientID   = "client_id"
	ctxNewClient  = "client_new"
	ctxSession    = "session"
	flashMaxIdle  = time.Hour
	flashMaxQueue = 16
)

// FlashStore keeps one-shot messages per client id until the next rendered page
type FlashStore struct {
	mu      sync.Mutex
	entries map[string]*flashEntry
}

type flashEntry struct {
	messages []models.FlashMessage
	touched  time.Time
}

func NewFlashStore() *FlashStore {
	return &FlashStore{entries: make(map[string]*flashEntry)}
}

// Add queues a message for the client
func (f *FlashStore) Add(clientID, level, msg string) {
	if clientID == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[clientID]
	if e == nil {
		e = &flashEntry{}
		f.entries[clientID] = e
	}
	if len(e.messages) < flashMaxQueue {
		e.messages = append(e.messages, models.FlashMessage{Type: level, Message: msg})
	}
	e.touched = time.Now()
}

// Pop returns and clears the queued messages of the client
func (f *FlashStore) Pop(clientID string) []models.FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[clientID]
	if e == nil {
		return nil
	}
	delete(f.entries, clientID)
	return e.messages
}

// Prune drops messages nobody came back for
func (f *FlashStore) Prune(maxIdle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for id, e := range f.entries {
		if e.touched.Before(cutoff) {
			delete(f.entries, id)
			n++
		}
	}
	return n
}

// AuthUser represents the logged in user as seen by templates
type AuthUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// SessionData represents session information with user data
type SessionData struct {
	SessionID string
	UserID    int64
	User      *AuthUser
}

// SetError queues an error level flash message for the client
func (s *WebServer) SetError(c *gin.Context, msg string) {
	s.flashes.Add(clientID(c), models.FlashError, msg)
}

// SetSuccess queues a success level flash message for the client
func (s *WebServer) SetSuccess(c *gin.Context, msg string) {
	s.flashes.Add(clientID(c), models.FlashSuccess, msg)
}

// ClientMiddleware makes sure every browser carries a random client id cookie.
// The id keys flash messages and the CSRF token.
func (s *WebServer) ClientMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(clientCookieName)
		if err == nil {
			_, err = uuid.Parse(id)
		}
		if err != nil {
			id = uuid.NewString()
			c.Set(ctxNewClient, true)
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     clientCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   isHTTPS(c),
				SameSite: http.SameSiteLaxMode,
				MaxAge:   clientCookieAge,
			})
		}
		c.Set(ctxClientID, id)
		c.Next()
	}
}

func clientID(c *gin.Context) string {
	return c.GetString(ctxClientID)
}

// SessionMiddleware loads the logged in user, if any, into the context
func (s *WebServer) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if session := s.getWebSession(c); session != nil {
			c.Set(ctxSession, session)
		}
		c.Next()
	}
}

// currentSession returns the session loaded by SessionMiddleware
func currentSession(c *gin.Context) *SessionData {
	if v, ok := c.Get(ctxSession); ok {
		if session, ok := v.(*SessionData); ok {
			return session
		}
	}
	return nil
}

// WebAuthRequired redirects anonymous users to the login page
func (s *WebServer) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c) == nil {
			c.Redirect(http.StatusSeeOther, "/login/?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// WebAdminRequired lets staff and superusers through and answers 403 to
// everyone else. Mount it behind WebAuthRequired.
func (s *WebServer) WebAdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		if session == nil {
			c.Redirect(http.StatusSeeOther, "/login/?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		if !session.User.IsStaff && !session.User.IsSuperuser {
			s.renderError(c, http.StatusForbidden, "Access Denied", "staff access required for "+session.User.Username)
			c.Abort()
			return
		}
		c.Next()
	}
}

// getWebSession retrieves session from cookie and returns full session data
func (s *WebServer) getWebSession(c *gin.Context) *SessionData {
	sessionID, err := c.Cookie(sessionCookieName)
	if err != nil || sessionID == "" {
		return nil
	}

	user, err := s.DB.ValidateUserSession(sessionID)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidSession) {
			log.Printf("[WEB]: session lookup failed: %v", err)
		}
		s.clearSessionCookie(c)
		return nil
	}

	// Refresh the cookie so it slides with the server side expiry
	s.setSessionCookie(c, sessionID)

	return &SessionData{
		SessionID: sessionID,
		UserID:    user.ID,
		User: &AuthUser{
			ID:          user.ID,
			Username:    user.Username,
			IsStaff:     user.IsStaff,
			IsSuperuser: user.IsSuperuser,
		},
	}
}

func isHTTPS(c *gin.Context) bool {
	return c.Request != nil && (c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https"))
}

// Helper function to set session cookie
func (s *WebServer) setSessionCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(c),
		SameSite: http.SameSiteLaxMode, // Works well with reverse proxies
		MaxAge:   int(s.Config.GetSessionTimeout().Seconds()),
	})
}

// Helper function to clear session cookie
func (s *WebServer) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(c),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Delete cookie
	})
}
