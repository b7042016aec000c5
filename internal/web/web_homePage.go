package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// homePage lists every post, newest first, to everyone
func (s *WebServer) homePage(c *gin.Context) {
	posts, err := s.DB.GetAllPosts()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Database error", err.Error())
		return
	}

	data := HomePageData{
		TemplateData: s.getBaseTemplateData(c, "Home"),
		Posts:        posts,
	}
	s.renderTemplate(c, "home.html", data)
}
