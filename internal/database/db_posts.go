package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-while/go-pugblog/internal/models"
)

const postColumns = `p.id, p.title, p.content, p.author_id, u.username, p.created_at, p.updated_at`

const query_InsertPost = `INSERT INTO posts (title, content, author_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`

// InsertPost stores a new post; AuthorID must be set by the caller.
// A zero CreatedAt becomes now.
func (db *Database) InsertPost(p *models.Post) error {
	if p.AuthorID <= 0 {
		return fmt.Errorf("post has no author")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	} else {
		p.CreatedAt = p.CreatedAt.UTC()
	}
	p.UpdatedAt = p.CreatedAt
	err := db.queryRowScan(query_InsertPost,
		[]interface{}{p.Title, p.Content, p.AuthorID, p.CreatedAt, p.UpdatedAt}, &p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

const query_GetPost = `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = ?`

// GetPost returns ErrPostNotFound when the post does not exist
func (db *Database) GetPost(id int64) (*models.Post, error) {
	var p models.Post
	err := db.queryRowScan(query_GetPost, []interface{}{id},
		&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Author, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

const query_GetAllPosts = `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id ORDER BY p.created_at DESC, p.id DESC`

// GetAllPosts lists every post, newest first
func (db *Database) GetAllPosts() ([]*models.Post, error) {
	rows, err := db.query(query_GetAllPosts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Author, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

const query_UpdatePost = `UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?`

// UpdatePost changes title and content; author and created_at never change
func (db *Database) UpdatePost(p *models.Post) error {
	ts := now()
	res, err := db.exec(query_UpdatePost, p.Title, p.Content, ts, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", p.ID, err)
	}
	if err := expectOneRow(res, ErrPostNotFound); err != nil {
		return err
	}
	p.UpdatedAt = ts
	return nil
}

const query_DeletePost = `DELETE FROM posts WHERE id = ?`

func (db *Database) DeletePost(id int64) error {
	res, err := db.exec(query_DeletePost, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	return expectOneRow(res, ErrPostNotFound)
}

const query_FindPost = `SELECT id FROM posts WHERE title = ? AND content = ? AND author_id = ? ORDER BY id LIMIT 1`

// GetOrCreatePost returns the author's post with this exact title and content,
// inserting it when missing. created reports whether a row was inserted.
func (db *Database) GetOrCreatePost(title, content string, authorID int64) (post *models.Post, created bool, err error) {
	var id int64
	err = db.queryRowScan(query_FindPost, []interface{}{title, content, authorID}, &id)
	switch {
	case err == nil:
		post, err = db.GetPost(id)
		return post, false, err
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, err
	}

	post = &models.Post{Title: title, Content: content, AuthorID: authorID}
	if err := db.InsertPost(post); err != nil {
		return nil, false, err
	}
	return post, true, nil
}

const query_CountPosts = `SELECT COUNT(*) FROM posts`

func (db *Database) CountPosts() (int64, error) {
	var n int64
	err := db.queryRowScan(query_CountPosts, nil, &n)
	return n, err
}
