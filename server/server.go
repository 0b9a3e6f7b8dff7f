// Package server is the console's local web front end. Every screen is
// gated on the session held by the app's session store.
package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-pos-console/gate"
	"github.com/jrsteele09/go-pos-console/internal/app"
	"github.com/jrsteele09/go-pos-console/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	app    *app.App
	guard  *gate.Guard
	pages  map[string]*template.Template
}

func New(cfg config.Config, a *app.App) (*Server, error) {
	if a == nil {
		return nil, errors.New("[server.New] app is required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}
	waitPage, err := ParseTemplate("wait.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse wait template: %w", err)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		app:    a,
		pages:  pages,
		guard: gate.NewGuard(a.Session,
			gate.WithLoginPath(cfg.GetLoginPath()),
			gate.WithUnauthorizedPath(cfg.GetUnauthorizedPath()),
			gate.WithWaitPage(waitPage),
		),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
