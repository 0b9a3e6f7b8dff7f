package gate

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StateReader is the read side of the session store.
type StateReader interface {
	State() session.State
}

// Guard is HTTP middleware that applies Evaluate to every request.
type Guard struct {
	sessions         StateReader
	loginPath        string
	unauthorizedPath string
	retryAfter       time.Duration
	waitPage         *template.Template
	logger           zerolog.Logger
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		g.loginPath = path
	}
}

func WithUnauthorizedPath(path string) GuardOption {
	return func(g *Guard) {
		g.unauthorizedPath = path
	}
}

// WithWaitPage sets the page served while the session resolves. It is
// executed with the requested path.
func WithWaitPage(tmpl *template.Template) GuardOption {
	return func(g *Guard) {
		g.waitPage = tmpl
	}
}

func WithRetryAfter(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.retryAfter = d
	}
}

func WithLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

var defaultWaitPage = template.Must(template.New("wait").Parse(
	`<!DOCTYPE html><html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>` +
		`<body><p>Loading your session&hellip;</p></body></html>`))

func NewGuard(sessions StateReader, options ...GuardOption) *Guard {
	g := &Guard{
		sessions:         sessions,
		loginPath:        "/login",
		unauthorizedPath: "/unauthorized",
		retryAfter:       time.Second,
		waitPage:         defaultWaitPage,
		logger:           log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Require returns middleware admitting only sessions that satisfy req.
// Use users.AnyRole for screens that only need a signed-in user.
func (g *Guard) Require(req users.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			st := g.sessions.State()
			switch Evaluate(st, req) {
			case Wait:
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(g.retryAfter.Seconds()))))
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = g.waitPage.Execute(w, r.URL.Path)
			case RedirectLogin:
				http.Redirect(w, r, g.loginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			case RedirectUnauthorized:
				g.logger.Warn().
					Bool("audit", true).
					Str("user", st.User.Username).
					Str("role", string(st.User.Role)).
					Str("required", req.String()).
					Str("path", r.URL.Path).
					Msg("access denied: role not permitted")
				http.Redirect(w, r, g.unauthorizedPath, http.StatusSeeOther)
			default:
				next(w, r)
			}
		}
	}
}
