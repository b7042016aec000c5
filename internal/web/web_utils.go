package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-pugblog/internal/config"
)

//go:embed templates/*.html
var EmbeddedTemplatesFS embed.FS

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006, 15:04")
	},
	// linebreaks splits text into paragraphs on blank lines and <br> on single newlines
	"linebreaks": func(text string) template.HTML {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		var b strings.Builder
		for _, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			lines := strings.Split(para, "\n")
			for i, line := range lines {
				lines[i] = template.HTMLEscapeString(line)
			}
			b.WriteString("<p>" + strings.Join(lines, "<br>") + "</p>\n")
		}
		return template.HTML(b.String())
	},
	"truncatewords": func(n int, text string) string {
		words := strings.Fields(text)
		if len(words) <= n {
			return strings.Join(words, " ")
		}
		return strings.Join(words[:n], " ") + " …"
	},
}

// loadTemplates parses base.html and the _*.html partials together with each
// page template once; every page is executed through "base.html"
func loadTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(EmbeddedTemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	partials, err := fs.Glob(EmbeddedTemplatesFS, "templates/_*.html")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimPrefix(page, "templates/")
		if name == "base.html" || strings.HasPrefix(name, "_") {
			continue
		}
		files := append([]string{"templates/base.html"}, partials...)
		files = append(files, page)
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(EmbeddedTemplatesFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// getBaseTemplateData creates a TemplateData struct with common information including
// user auth. It consumes the pending flash messages of the client.
func (s *WebServer) getBaseTemplateData(c *gin.Context, title string) TemplateData {
	// Check registration status (default to true if error)
	registrationEnabled := true
	if enabled, err := s.DB.IsRegistrationEnabled(); err == nil {
		registrationEnabled = enabled
	}

	data := TemplateData{
		Title:               title,
		AppVersion:          config.AppVersion,
		RegistrationEnabled: registrationEnabled,
		Messages:            s.flashes.Pop(clientID(c)),
		CSRFToken:           s.CSRFToken(clientID(c)),
	}

	if session := currentSession(c); session != nil {
		data.User = session.User
		data.IsAdmin = session.User.IsStaff || session.User.IsSuperuser
	}
	return data
}

// renderError renders an error page; message is shown, errstring only logged
func (s *WebServer) renderError(c *gin.Context, statusCode int, message string, errstring string) {
	errorData := struct {
		TemplateData
		Error      string
		StatusCode int
		StatusText string
	}{
		TemplateData: s.getBaseTemplateData(c, http.StatusText(statusCode)),
		Error:        message,
		StatusCode:   statusCode,
		StatusText:   http.StatusText(statusCode),
	}
	log.Printf("[WEB]: Error %d: %s - %s", statusCode, message, errstring)

	body, err := s.executeTemplate("error.html", errorData)
	if err != nil {
		log.Printf("[WEB]: Error rendering error template: %v", err)
		c.String(statusCode, "Error: %s", message)
		return
	}
	c.Data(statusCode, "text/html; charset=utf-8", body)
}

// renderTemplate renders a page with status 200
func (s *WebServer) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	s.renderTemplateStatus(c, http.StatusOK, templateName, data)
}

// renderTemplateStatus renders a page into a buffer first so that template
// errors still produce a clean 500
func (s *WebServer) renderTemplateStatus(c *gin.Context, statusCode int, templateName string, data interface{}) {
	body, err := s.executeTemplate(templateName, data)
	if err != nil {
		log.Printf("[WEB]: Error rendering template %s: %v", templateName, err)
		s.renderError(c, http.StatusInternalServerError, "Template error", err.Error())
		return
	}
	c.Data(statusCode, "text/html; charset=utf-8", body)
}

func (s *WebServer) executeTemplate(templateName string, data interface{}) ([]byte, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown template %s", templateName)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parsePostID reads the :id path parameter; non-numeric ids do not match any post
func parsePostID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// safeRedirectTarget returns next when it is a local path, otherwise "/"
func safeRedirectTarget(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") ||
		strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	return next
}
