package server

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/stepup"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	Username string // Preserved on error, the password never is
	Next     string
	PINMode  bool
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := safeNext(r.URL.Query().Get("next"), RouteDashboard)
		st := s.app.Session.State()
		if st.LoggedIn() || (st.Loading && st.Token != "") {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		data := LoginPageData{Next: next, PINMode: r.URL.Query().Get("mode") == "pin"}
		s.render(w, http.StatusOK, "login.html", s.page(r, "Sign in", data))
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		data := LoginPageData{Username: username, Next: safeNext(r.FormValue("next"), RouteDashboard)}

		if username == "" || password == "" {
			s.renderLoginError(w, r, http.StatusBadRequest, data, "Username and password are required")
			return
		}

		err := s.app.Session.Login(r.Context(), username, password)
		switch {
		case err == nil:
			log.Info().Str("user", username).Msg("Signed in")
			http.Redirect(w, r, data.Next, http.StatusSeeOther)
		case apperrors.Is(err, apperrors.ErrInvalidCredentials):
			s.renderLoginError(w, r, http.StatusUnauthorized, data, "Invalid username or password")
		case apperrors.Is(err, apperrors.ErrSessionSuperseded):
			s.renderLoginError(w, r, http.StatusConflict, data, "Sign-in was cancelled. Please try again.")
		case apperrors.Is(err, apperrors.ErrMalformedToken):
			log.Err(err).Str("user", username).Msg("Backend issued an unusable token")
			s.renderLoginError(w, r, http.StatusBadGateway, data, "Sign-in failed. Please try again.")
		default:
			log.Err(err).Str("user", username).Msg("Sign-in failed")
			s.renderLoginError(w, r, http.StatusBadGateway, data, "The POS service could not be reached.")
		}
	}
}

// PINLoginSubmissionHandler signs floor staff in with a PIN (POST /login/pin)
func (s *Server) PINLoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		pin := r.FormValue("pin")
		data := LoginPageData{PINMode: true, Next: safeNext(r.FormValue("next"), RouteDashboard)}

		if !stepup.ValidPINFormat(pin) {
			s.renderLoginError(w, r, http.StatusBadRequest, data, "PIN must be 4 to 8 digits")
			return
		}

		err := s.app.Session.LoginWithPIN(r.Context(), pin)
		switch {
		case err == nil:
			http.Redirect(w, r, data.Next, http.StatusSeeOther)
		case apperrors.Is(err, apperrors.ErrInvalidPIN):
			s.renderLoginError(w, r, http.StatusUnauthorized, data, "Invalid PIN")
		case apperrors.Is(err, apperrors.ErrSessionSuperseded):
			s.renderLoginError(w, r, http.StatusConflict, data, "Sign-in was cancelled. Please try again.")
		default:
			log.Err(err).Msg("PIN sign-in failed")
			s.renderLoginError(w, r, http.StatusBadGateway, data, "The POS service could not be reached.")
		}
	}
}

// LogoutHandler ends the session (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.app.Session.Logout()
		redirectWithNotice(w, r, s.config.GetLoginPath(), "You have been signed out.")
	}
}

// UnauthorizedHandler is where the route guard sends users whose role does not fit.
func (s *Server) UnauthorizedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusForbidden, "unauthorized.html", s.page(r, "Not permitted", nil))
	}
}

// SessionStatePayload is the JSON view of the session for polling clients.
type SessionStatePayload struct {
	Loading  bool            `json:"loading"`
	LoggedIn bool            `json:"logged_in"`
	User     *users.Identity `json:"user,omitempty"`
}

// SessionStateHandler reports the session without the token (GET /api/session)
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.app.Session.State()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SessionStatePayload{
			Loading:  st.Loading,
			LoggedIn: st.LoggedIn(),
			User:     st.User,
		})
	}
}

// renderLoginError re-renders the login form with a field-level error
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, status int, data LoginPageData, errorMsg string) {
	page := s.page(r, "Sign in", data)
	page.Error = errorMsg
	s.render(w, status, "login.html", page)
}
