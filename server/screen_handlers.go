package server

import (
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/jrsteele09/go-pos-console/stepup"
	"github.com/rs/zerolog/log"
)

// HomeHandler sends the user to the dashboard (GET /)
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "dashboard.html", s.page(r, "Dashboard", nil))
	}
}

func (s *Server) SalesListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.app.Backend.ListSales(r.Context())
		if err != nil {
			s.backendError(w, r, err)
			return
		}
		s.render(w, http.StatusOK, "sales.html", s.page(r, "Sales", list))
	}
}

// VoidPageData contains data for rendering the void PIN form
type VoidPageData struct {
	Sale   *sales.Sale
	Reason string
}

// VoidSalePageHandler shows the PIN challenge for voiding a sale
func (s *Server) VoidSalePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := s.app.Backend.GetSale(r.Context(), r.PathValue("id"))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrSaleNotFound) {
				redirectWithError(w, r, RouteSales, "Sale not found")
				return
			}
			s.backendError(w, r, err)
			return
		}
		if sale.Status == sales.StatusVoided {
			redirectWithError(w, r, RouteSales, "Sale has already been voided")
			return
		}
		s.render(w, http.StatusOK, "void.html", s.page(r, "Void sale", VoidPageData{Sale: sale}))
	}
}

// VoidSaleSubmissionHandler runs the PIN step-up and the void
func (s *Server) VoidSaleSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		saleID := r.PathValue("id")
		reason := strings.TrimSpace(r.FormValue("reason"))

		st := s.app.Session.State()
		if st.User == nil {
			redirectWithError(w, r, s.config.GetLoginPath(), "Please sign in again.")
			return
		}
		challenge := stepup.NewChallenge(st.User.ID, r.FormValue("pin"))

		voided, err := s.app.Voider.Void(r.Context(), saleID, challenge, reason)
		if err == nil {
			redirectWithNotice(w, r, RouteSales, "Sale "+voided.ID+" voided. Stock has been returned.")
			return
		}

		switch {
		case apperrors.Is(err, apperrors.ErrInvalidPIN):
			s.renderVoidError(w, r, http.StatusUnauthorized, saleID, reason, "Incorrect PIN")
		case apperrors.Is(err, apperrors.ErrCompensationFailed):
			log.Err(err).Str("sale_id", saleID).Msg("Void failed")
			s.renderVoidError(w, r, http.StatusBadGateway, saleID, reason, "The return could not be processed. The sale has not been voided.")
		case apperrors.Is(err, apperrors.ErrSaleAlreadyVoided):
			redirectWithError(w, r, RouteSales, "Sale has already been voided")
		case apperrors.Is(err, apperrors.ErrSaleNotFound):
			redirectWithError(w, r, RouteSales, "Sale not found")
		default:
			s.backendError(w, r, err)
		}
	}
}

// renderVoidError re-renders the void form. The PIN field is always empty.
func (s *Server) renderVoidError(w http.ResponseWriter, r *http.Request, status int, saleID, reason, errorMsg string) {
	sale, err := s.app.Backend.GetSale(r.Context(), saleID)
	if err != nil {
		s.backendError(w, r, err)
		return
	}
	page := s.page(r, "Void sale", VoidPageData{Sale: sale, Reason: reason})
	page.Error = errorMsg
	s.render(w, status, "void.html", page)
}

func (s *Server) InventoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := s.app.Backend.Products(r.Context())
		if err != nil {
			s.backendError(w, r, err)
			return
		}
		s.render(w, http.StatusOK, "inventory.html", s.page(r, "Inventory", products))
	}
}

func (s *Server) AdminUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := s.app.Backend.Profiles(r.Context())
		if err != nil {
			s.backendError(w, r, err)
			return
		}
		s.render(w, http.StatusOK, "users.html", s.page(r, "Users", profiles))
	}
}
