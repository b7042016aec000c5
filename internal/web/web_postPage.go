package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
	"github.com/go-while/go-pugblog/internal/models"
)

const (
	msgPostCreated     = "Post created successfully! 📝"
	msgPostUpdated     = "Post updated successfully! ✏️"
	msgPostDeleted     = "Post deleted 🗑"
	msgForbiddenEdit   = "You are not allowed to edit this post."
	msgForbiddenDelete = "You are not allowed to delete this post."
)

// postDetailPage shows one post
func (s *WebServer) postDetailPage(c *gin.Context) {
	post, ok := s.loadPost(c)
	if !ok {
		return
	}

	data := PostPageData{
		TemplateData: s.getBaseTemplateData(c, post.Title),
		Post:         post,
	}
	if session := currentSession(c); session != nil {
		data.CanEdit = post.IsAuthor(session.UserID)
	}
	s.renderTemplate(c, "post_detail.html", data)
}

// createPostPage shows an empty post form
func (s *WebServer) createPostPage(c *gin.Context) {
	data := PostFormPageData{
		TemplateData: s.getBaseTemplateData(c, "New post"),
		Form:         newPostForm("", ""),
	}
	s.renderTemplate(c, "create_post.html", data)
}

// createPostSubmit stores a new post written by the session user
func (s *WebServer) createPostSubmit(c *gin.Context) {
	session := currentSession(c)
	form := bindPostForm(c)
	if !form.Errors.Valid() {
		data := PostFormPageData{
			TemplateData: s.getBaseTemplateData(c, "New post"),
			Form:         form,
		}
		s.renderTemplateStatus(c, http.StatusBadRequest, "create_post.html", data)
		return
	}

	post := &models.Post{
		Title:    form.Title,
		Content:  form.Content,
		AuthorID: session.UserID, // never taken from the form
	}
	if err := s.DB.InsertPost(post); err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to create post", err.Error())
		return
	}
	log.Printf("[WEB]: user %q created post %d", session.User.Username, post.ID)

	s.SetSuccess(c, msgPostCreated)
	c.Redirect(http.StatusSeeOther, "/")
}

// editPostPage shows the post form pre-filled, to the author only
func (s *WebServer) editPostPage(c *gin.Context) {
	post, ok := s.loadOwnedPost(c, msgForbiddenEdit)
	if !ok {
		return
	}

	data := PostFormPageData{
		TemplateData: s.getBaseTemplateData(c, "Edit post"),
		Form:         newPostForm(post.Title, post.Content),
		Post:         post,
	}
	s.renderTemplate(c, "edit_post.html", data)
}

// editPostSubmit saves title and content; the author stays unchanged
func (s *WebServer) editPostSubmit(c *gin.Context) {
	post, ok := s.loadOwnedPost(c, msgForbiddenEdit)
	if !ok {
		return
	}

	form := bindPostForm(c)
	if !form.Errors.Valid() {
		data := PostFormPageData{
			TemplateData: s.getBaseTemplateData(c, "Edit post"),
			Form:         form,
			Post:         post,
		}
		s.renderTemplateStatus(c, http.StatusBadRequest, "edit_post.html", data)
		return
	}

	post.Title, post.Content = form.Title, form.Content
	if err := s.DB.UpdatePost(post); err != nil {
		if errors.Is(err, database.ErrPostNotFound) {
			s.renderError(c, http.StatusNotFound, "Post not found", err.Error())
			return
		}
		s.renderError(c, http.StatusInternalServerError, "Failed to update post", err.Error())
		return
	}

	s.SetSuccess(c, msgPostUpdated)
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/post/%d/", post.ID))
}

// deletePostPage asks the author to confirm
func (s *WebServer) deletePostPage(c *gin.Context) {
	post, ok := s.loadOwnedPost(c, msgForbiddenDelete)
	if !ok {
		return
	}

	data := DeletePageData{
		TemplateData: s.getBaseTemplateData(c, "Delete post"),
		Post:         post,
	}
	s.renderTemplate(c, "delete_post.html", data)
}

// deletePostSubmit removes the post
func (s *WebServer) deletePostSubmit(c *gin.Context) {
	post, ok := s.loadOwnedPost(c, msgForbiddenDelete)
	if !ok {
		return
	}

	if err := s.DB.DeletePost(post.ID); err != nil && !errors.Is(err, database.ErrPostNotFound) {
		s.renderError(c, http.StatusInternalServerError, "Failed to delete post", err.Error())
		return
	}
	log.Printf("[WEB]: user %q deleted post %d", currentSession(c).User.Username, post.ID)

	s.SetError(c, msgPostDeleted)
	c.Redirect(http.StatusSeeOther, "/")
}
