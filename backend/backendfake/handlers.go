package backendfake

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/jrsteele09/go-pos-console/users"
)

type contextKey string

const contextKeyUsername contextKey = "username"

func (b *Backend) initRoutes() {
	b.mux.HandleFunc("POST /auth/login", b.login)
	b.mux.HandleFunc("POST /auth/pin-login", b.pinLogin)
	b.mux.HandleFunc("POST /auth/verify-pin", b.requireAuth(b.verifyPIN))
	b.mux.HandleFunc("GET /users", b.requireAuth(b.listUsers))
	b.mux.HandleFunc("GET /products", b.requireAuth(b.getProducts))
	b.mux.HandleFunc("GET /sales", b.requireAuth(b.getSales))
	b.mux.HandleFunc("GET /sales/{id}", b.requireAuth(b.getSale))
	b.mux.HandleFunc("PATCH /sales/{id}", b.requireAuth(b.patchSale))
	b.mux.HandleFunc("POST /sales/returns", b.requireAuth(b.createReturn))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// requireAuth validates the Bearer token and puts its subject in the context.
func (b *Backend) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := b.issuer.verify(parts[1])
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		sub, _ := claims.GetSubject()
		next(w, r.WithContext(context.WithValue(r.Context(), contextKeyUsername, sub)))
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	account, err := b.accounts.GetByUsername(r.PostForm.Get("username"))
	if err != nil || !users.CheckPasswordHash(r.PostForm.Get("password"), account.PasswordHash) {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !account.IsActive {
		writeDetail(w, http.StatusForbidden, "Inactive user")
		return
	}
	tok, err := b.issuer.issue(&account.Profile)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func (b *Backend) pinLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PIN == "" {
		writeDetail(w, http.StatusBadRequest, "PIN is required")
		return
	}
	account := b.accountByPIN(req.PIN)
	if account == nil || !account.IsActive {
		writeDetail(w, http.StatusUnauthorized, "Invalid PIN")
		return
	}
	tok, err := b.issuer.issue(&account.Profile)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": tok,
		"token_type":   "bearer",
		"user":         users.IdentityFromProfile(account.Profile),
	})
}

func (b *Backend) accountByPIN(pin string) *users.Account {
	profiles, err := b.accounts.List()
	if err != nil {
		return nil
	}
	for _, p := range profiles {
		account, err := b.accounts.GetByUsername(p.Username)
		if err != nil || account.PINHash == "" {
			continue
		}
		if users.CheckPasswordHash(pin, account.PINHash) {
			return account
		}
	}
	return nil
}

func (b *Backend) verifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		PIN    string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request")
		return
	}
	account, err := b.accounts.GetByID(req.UserID)
	valid := err == nil && account.PINHash != "" && users.CheckPasswordHash(req.PIN, account.PINHash)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	down := b.profilesDown
	b.mu.Unlock()
	if down {
		writeDetail(w, http.StatusServiceUnavailable, "User service unavailable")
		return
	}
	profiles, err := b.accounts.List()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (b *Backend) getProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.listProducts())
}

func (b *Backend) getSales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.listSales())
}

func (b *Backend) getSale(w http.ResponseWriter, r *http.Request) {
	sale, ok := b.Sale(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sale not found")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (b *Backend) patchSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status sales.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	sale, ok := b.sales[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sale not found")
		return
	}
	if !sale.Status.CanTransitionTo(req.Status) {
		writeDetail(w, http.StatusConflict, "Cannot change status from "+string(sale.Status)+" to "+string(req.Status))
		return
	}
	sale.Status = req.Status
	writeJSON(w, http.StatusOK, copySale(sale))
}

func (b *Backend) createReturn(w http.ResponseWriter, r *http.Request) {
	var req sales.ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid return")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.returnsDown {
		writeDetail(w, http.StatusInternalServerError, "Inventory update failed")
		return
	}
	sale, ok := b.sales[req.SaleID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sale not found")
		return
	}
	if sale.Status != sales.StatusCompleted {
		writeDetail(w, http.StatusConflict, "Sale is not completed")
		return
	}
	prices := make(map[string]float64, len(sale.Items))
	for _, li := range sale.Items {
		prices[li.ProductID] = li.UnitPrice
	}
	for _, item := range req.Items {
		if _, ok := b.products[item.ProductID]; !ok || item.Quantity <= 0 {
			writeDetail(w, http.StatusBadRequest, "Invalid return item "+item.ProductID)
			return
		}
	}

	var refund float64
	for _, item := range req.Items {
		b.products[item.ProductID].Stock += item.Quantity
		refund += prices[item.ProductID] * float64(item.Quantity)
	}
	b.returns = append(b.returns, req)
	writeJSON(w, http.StatusCreated, sales.ReturnReceipt{ID: uuid.NewString(), RefundAmount: refund})
}
