package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-while/go-pugblog/internal/models"
)

// Session security constants
const (
	SessionIDLength  = 64                  // 64 character session ID
	SessionTimeout   = 14 * 24 * time.Hour // default sliding timeout
	MaxLoginAttempts = 5                   // Max failed login attempts
	LoginLockoutTime = 15 * time.Minute    // Lockout time after max attempts
)

const query_CreateSession = `INSERT INTO sessions (id, user_id, remote_ip, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`
const query_MarkLogin = `UPDATE users SET last_login = ?, last_login_ip = ?, login_attempts = 0, last_failed_login = NULL WHERE id = ?`
const query_ValidateSession = `SELECT ` + userColumnsU + `
	FROM sessions s JOIN users u ON u.id = s.user_id
	WHERE s.id = ? AND s.expires_at > ?`
const query_ExtendSession = `UPDATE sessions SET expires_at = ? WHERE id = ?`
const query_DeleteSession = `DELETE FROM sessions WHERE id = ?`
const query_DeleteUserSessions = `DELETE FROM sessions WHERE user_id = ?`
const query_CleanupSessions = `DELETE FROM sessions WHERE expires_at <= ?`

// GenerateSecureSessionID creates a cryptographically secure session ID
func GenerateSecureSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength/2) // hex encoding doubles the length
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure session ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// CreateUserSession stores a new session for the user and records the login.
// Other sessions of the same user stay valid.
func (db *Database) CreateUserSession(userID int64, remoteIP string) (string, error) {
	sessionID, err := GenerateSecureSessionID()
	if err != nil {
		return "", err
	}

	ts := now()
	if _, err := db.exec(query_CreateSession, sessionID, userID, remoteIP, ts, ts.Add(db.SessionTimeout())); err != nil {
		return "", fmt.Errorf("failed to create user session: %w", err)
	}
	if _, err := db.exec(query_MarkLogin, ts, remoteIP, userID); err != nil {
		log.Printf("[DB]: failed to record login for user %d: %v", userID, err)
	}
	return sessionID, nil
}

// ValidateUserSession returns the session's user and slides the expiry forward
func (db *Database) ValidateUserSession(sessionID string) (*models.User, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	ts := now()
	user, err := db.scanUser(query_ValidateSession, sessionID, ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if _, err := db.exec(query_ExtendSession, ts.Add(db.SessionTimeout()), sessionID); err != nil {
		// Log error but don't fail validation
		log.Printf("[DB]: failed to extend session expiration: %v", err)
	}
	return user, nil
}

// InvalidateUserSessionBySessionID deletes one session
func (db *Database) InvalidateUserSessionBySessionID(sessionID string) error {
	_, err := db.exec(query_DeleteSession, sessionID)
	return err
}

// InvalidateUserSessions deletes every session of a user
func (db *Database) InvalidateUserSessions(userID int64) error {
	_, err := db.exec(query_DeleteUserSessions, userID)
	return err
}

// IncrementLoginAttempts increases the failed login counter and restarts the
// lockout window
func (db *Database) IncrementLoginAttempts(username string) error {
	query := `UPDATE users SET login_attempts = login_attempts + 1, last_failed_login = ? WHERE username = ?`
	_, err := db.exec(query, now(), username)
	return err
}

// ResetLoginAttempts clears the failed login counter
func (db *Database) ResetLoginAttempts(userID int64) error {
	query := `UPDATE users SET login_attempts = 0, last_failed_login = NULL WHERE id = ?`
	_, err := db.exec(query, userID)
	return err
}

// IsUserLockedOut checks if user is temporarily locked out due to failed attempts.
// The window runs from the last failed login, not from other account changes.
func (db *Database) IsUserLockedOut(username string) (bool, error) {
	query := `SELECT login_attempts, last_failed_login FROM users WHERE username = ?`

	var attempts int
	var lastFailed sql.NullTime
	err := db.queryRowScan(query, []interface{}{username}, &attempts, &lastFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if attempts >= MaxLoginAttempts {
		if lastFailed.Valid && now().Before(lastFailed.Time.Add(LoginLockoutTime)) {
			return true, nil // Still locked out
		}
		// Lockout period expired, reset attempts
		resetQuery := `UPDATE users SET login_attempts = 0, last_failed_login = NULL WHERE username = ?`
		if _, err := db.exec(resetQuery, username); err != nil {
			log.Printf("[DB]: failed to reset login attempts for %q: %v", username, err)
		}
	}
	return false, nil
}

// CleanupExpiredSessions removes expired sessions and returns how many went away
func (db *Database) CleanupExpiredSessions() (int64, error) {
	result, err := db.exec(query_CleanupSessions, now())
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		log.Printf("[DB]: cleaned up %d expired sessions", rowsAffected)
	}
	return rowsAffected, nil
}
