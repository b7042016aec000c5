package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/database"
)

// setupPortfolio seeds the demo accounts and sample posts. Only registered
// when web.enable_setup_route is set; running it twice changes nothing.
func (s *WebServer) setupPortfolio(c *gin.Context) {
	if _, err := s.DB.SeedPortfolio(database.DefaultSeedOptions()); err != nil {
		s.renderError(c, http.StatusInternalServerError, "Setup failed", err.Error())
		return
	}
	c.String(http.StatusOK, database.SeedDoneMessage)
}
