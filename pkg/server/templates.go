package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/getmockd/mockidp/pkg/httputil"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	loginTemplate     = "login.html"
	signedOutTemplate = "signed_out.html"
)

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// loginPage is the data rendered into the login form.
type loginPage struct {
	Tenant              string
	AppName             string
	Error               string
	Username            string
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("failed to render template", "template", name, "error", err)
		httputil.WriteOAuthError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteHTML(w, status, buf.Bytes())
}
