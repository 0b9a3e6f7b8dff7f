package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-pos-console/gate"
	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// PageData is what every page template receives.
type PageData struct {
	AppName string
	Title   string
	Session session.State
	Error   string
	Notice  string
	Data    interface{}
}

// Can is the inline gate for templates: {{if .Can "ADMIN" "WAREHOUSE"}}.
func (p PageData) Can(roles ...string) bool {
	req := make([]users.RoleType, 0, len(roles))
	for _, r := range roles {
		req = append(req, users.RoleType(r))
	}
	return gate.Allowed(p.Session, users.Require(req...))
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"lower": strings.ToLower,
}

func (s *Server) page(r *http.Request, title string, data interface{}) PageData {
	q := r.URL.Query()
	return PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Session: s.app.Session.State(),
		Error:   q.Get("error"),
		Notice:  q.Get("notice"),
		Data:    data,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data PageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("Unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, layoutTemplate, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
	}
}

// backendError renders a failed backend call. A 401 has already ended the
// session in the transport, so the user is sent back to sign in.
func (s *Server) backendError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.Is(err, apperrors.ErrUnauthorized) {
		redirectWithError(w, r, s.config.GetLoginPath(), "Your session has expired. Please sign in again.")
		return
	}
	log.Err(err).Str("path", r.URL.Path).Msg("Backend call failed")
	s.render(w, http.StatusBadGateway, "error.html", s.page(r, "Unavailable", "The POS service could not be reached. Try again shortly."))
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(errorMsg), http.StatusSeeOther)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, path+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

// safeNext returns next when it is a local path, otherwise fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
