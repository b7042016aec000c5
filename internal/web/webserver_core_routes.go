// Package web provides the HTTP server and web interface for go-pugblog
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/config"
	"github.com/go-while/go-pugblog/internal/database"
	"github.com/go-while/go-pugblog/internal/models"
)

// WebServer represents the web server
type WebServer struct {
	DB     *database.Database
	Router *gin.Engine
	Config *config.WebConfig

	templates map[string]*template.Template // page name -> base.html + page
	flashes   *FlashStore
	csrfKey   []byte

	httpServer *http.Server
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// TemplateData represents common template data
type TemplateData struct {
	Title               string
	User                *AuthUser
	IsAdmin             bool
	AppVersion          string
	RegistrationEnabled bool
	Messages            []models.FlashMessage
	CSRFToken           string
}

// HomePageData represents data for the post listing
type HomePageData struct {
	TemplateData
	Posts []*models.Post
}

// PostPageData represents data for a single post page
type PostPageData struct {
	TemplateData
	Post    *models.Post
	CanEdit bool
}

// PostFormPageData represents data for the create and edit forms
type PostFormPageData struct {
	TemplateData
	Form *PostForm
	Post *models.Post // nil when creating
}

// DeletePageData represents data for the delete confirmation page
type DeletePageData struct {
	TemplateData
	Post *models.Post
}

// AdminPageData represents data for the staff area
type AdminPageData struct {
	TemplateData
	Users []*models.User
}

// NewServer creates a new web server instance
func NewServer(db *database.Database, webconfig *config.WebConfig) (*WebServer, error) {
	if gin.Mode() != gin.TestMode {
		if webconfig.Debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()

	server := &WebServer{
		DB:        db,
		Router:    router,
		Config:    webconfig,
		templates: templates,
		flashes:   NewFlashStore(),
		csrfKey:   []byte(webconfig.SecretKey),
		stopChan:  make(chan struct{}),
	}
	server.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(webconfig.ListenPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Use(server.ApacheLogFormat(), gin.Recovery())

	// Configure gin to trust reverse proxy headers
	if err := router.SetTrustedProxies(webconfig.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		BadHostHandler: func(c *gin.Context) {
			log.Printf("[WEB]: rejected request for disallowed host %q from %s", c.Request.Host, c.ClientIP())
			c.String(http.StatusBadRequest, "Bad Request (400)")
			c.Abort()
		},
	}
	if !webconfig.AllowsAnyHost() {
		secureConfig.AllowedHosts = webconfig.AllowedHostsWithPort()
	}

	// Only add SSL-specific headers if SSL is enabled on the application itself
	// (not when running behind a reverse proxy like nginx with SSL)
	if webconfig.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}

	// Apply security middleware
	router.Use(secure.New(secureConfig))

	// Add reverse proxy middleware for handling X-Forwarded headers
	router.Use(server.ReverseProxyMiddleware())

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	// Static files first, outside the cookie and CSRF middleware
	staticDir := s.Config.GetStaticDir()
	if st, err := os.Stat(staticDir); err == nil && st.IsDir() {
		log.Printf("[WEB]: serving static files from %s", staticDir)
		s.Router.Static("/static", staticDir)
	} else {
		s.Router.GET("/static/*filepath", EmbeddedStaticHandler("/static"))
	}

	s.Router.GET("/favicon.ico", EmbeddedFileHandler("static/favicon.svg"))
	s.Router.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, "User-agent: *\nDisallow:\n")
	})
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	pages := s.Router.Group("/")
	pages.Use(s.ClientMiddleware(), s.CSRFMiddleware(), s.SessionMiddleware())
	{
		pages.GET("/", s.homePage)
		pages.GET("/post/:id/", s.postDetailPage)

		pages.GET("/signup/", s.signupPage)
		pages.POST("/signup/", s.signupSubmit)
		pages.GET("/login/", s.loginPage)
		pages.POST("/login/", s.loginSubmit)
		pages.POST("/logout/", s.logout)

		auth := pages.Group("/")
		auth.Use(s.WebAuthRequired())
		{
			auth.GET("/create/", s.createPostPage)
			auth.POST("/create/", s.createPostSubmit)
			auth.GET("/edit/:id/", s.editPostPage)
			auth.POST("/edit/:id/", s.editPostSubmit)
			auth.GET("/delete/:id/", s.deletePostPage)
			auth.POST("/delete/:id/", s.deletePostSubmit)

			admin := auth.Group("/admin")
			admin.Use(s.WebAdminRequired())
			{
				admin.GET("/", s.adminPage)
				admin.POST("/registration/", s.adminSetRegistration)
				admin.POST("/users/delete/", s.adminDeleteUser)
			}
		}

		if s.Config.EnableSetupRoute {
			log.Printf("[WEB]: WARNING: /setup-portfolio/ is enabled, switch it off after the first deploy")
			pages.GET("/setup-portfolio/", s.setupPortfolio)
		}
	}

	s.Router.NoRoute(s.ClientMiddleware(), s.SessionMiddleware(), func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Page not found", c.Request.URL.Path)
	})
}

// Start runs the web server with SSL support if configured; it returns nil
// after a graceful Shutdown
func (s *WebServer) Start() error {
	addr := s.httpServer.Addr

	s.StartSessionCleanup()

	var err error
	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		log.Printf("[WEB]: starting HTTPS server on %s", addr)
		err = s.httpServer.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	} else {
		log.Printf("[WEB]: starting HTTP server on %s", addr)
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops background tasks and drains open connections
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	log.Printf("[WEB]: shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// ReverseProxyMiddleware handles X-Forwarded-Proto when running behind a reverse proxy.
// Client IPs come from gin's trusted proxy handling (c.ClientIP).
func (s *WebServer) ReverseProxyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handle X-Forwarded-Proto to detect if the original request was HTTPS
		if proto := c.GetHeader("X-Forwarded-Proto"); strings.EqualFold(proto, "https") {
			c.Request.URL.Scheme = "https"
		}
		c.Next()
	}
}

func (s *WebServer) ApacheLogFormat() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`+"\n",
			param.ClientIP,
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.BodySize,
			param.Request.Referer(),
			param.Request.UserAgent(),
		)
	})
}
