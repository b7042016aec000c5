package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-while/go-pugblog/internal/models"
)

const userColumns = `id, username, password_hash, is_staff, is_superuser, login_attempts, last_login_ip, last_login, created_at, updated_at`

const userColumnsU = `u.id, u.username, u.password_hash, u.is_staff, u.is_superuser, u.login_attempts, u.last_login_ip, u.last_login, u.created_at, u.updated_at`

// scanUser runs a single-row query selecting userColumns
func (db *Database) scanUser(query string, args ...interface{}) (*models.User, error) {
	var u models.User
	err := db.queryRowScan(query, args,
		&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.IsSuperuser,
		&u.LoginAttempts, &u.LastLoginIP, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const query_InsertUser = `INSERT INTO users (username, password_hash, is_staff, is_superuser, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

// InsertUser stores a new user and sets u.ID, u.CreatedAt and u.UpdatedAt
func (db *Database) InsertUser(u *models.User) error {
	ts := now()
	err := db.queryRowScan(query_InsertUser,
		[]interface{}{u.Username, u.PasswordHash, u.IsStaff, u.IsSuperuser, ts, ts}, &u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

// CreateUser hashes the password and stores a new user
func (db *Database) CreateUser(username, password string, superuser bool) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     username,
		PasswordHash: hash,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
	}
	if err := db.InsertUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

const query_GetUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

// GetUserByUsername returns ErrUserNotFound when no such user exists
func (db *Database) GetUserByUsername(username string) (*models.User, error) {
	u, err := db.scanUser(query_GetUserByUsername, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

const query_GetUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (db *Database) GetUserByID(id int64) (*models.User, error) {
	u, err := db.scanUser(query_GetUserByID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

const query_GetAllUsers = `SELECT ` + userColumns + ` FROM users ORDER BY username`

func (db *Database) GetAllUsers() ([]*models.User, error) {
	rows, err := db.query(query_GetAllUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.IsSuperuser,
			&u.LoginAttempts, &u.LastLoginIP, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

const query_UpdateUserPassword = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

// UpdateUserPassword stores an already hashed password
func (db *Database) UpdateUserPassword(userID int64, passwordHash string) error {
	res, err := db.exec(query_UpdateUserPassword, passwordHash, now(), userID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrUserNotFound)
}

const query_SetUserFlags = `UPDATE users SET is_staff = ?, is_superuser = ?, updated_at = ? WHERE id = ?`

func (db *Database) SetUserFlags(userID int64, staff, superuser bool) error {
	res, err := db.exec(query_SetUserFlags, staff, superuser, now(), userID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrUserNotFound)
}

const query_DeleteUserByUsername = `DELETE FROM users WHERE username = ?`

// DeleteUserByUsername removes a user; sessions and posts go with it
func (db *Database) DeleteUserByUsername(username string) error {
	res, err := db.exec(query_DeleteUserByUsername, username)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrUserNotFound)
}

const query_CountUsers = `SELECT COUNT(*) FROM users`

func (db *Database) CountUsers() (int64, error) {
	var n int64
	err := db.queryRowScan(query_CountUsers, nil, &n)
	return n, err
}

// expectOneRow maps "nothing affected" to notFound
func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
