// Package models defines the data structures shared by the database and web layers of go-pugblog
package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID            int64      `json:"id" db:"id"`
	Username      string     `json:"username" db:"username"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	IsStaff       bool       `json:"is_staff" db:"is_staff"`
	IsSuperuser   bool       `json:"is_superuser" db:"is_superuser"`
	LoginAttempts int        `json:"login_attempts" db:"login_attempts"` // Failed login attempts counter
	LastLoginIP   string     `json:"last_login_ip" db:"last_login_ip"`   // IP of last login (for logging only)
	LastLogin     *time.Time `json:"last_login" db:"last_login"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Post represents a blog entry
type Post struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	Author    string    `json:"author" db:"-"` // username, filled by joins
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAuthor reports whether the given user id wrote this post
func (p *Post) IsAuthor(userID int64) bool {
	return p != nil && userID > 0 && p.AuthorID == userID
}

// FlashMessage levels
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// FlashMessage is a one-shot notice shown on the next rendered page
type FlashMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
