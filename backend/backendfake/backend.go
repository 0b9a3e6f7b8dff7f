// Package backendfake is an in-memory POS backend served over HTTP. It backs
// the client tests and the console's demo mode.
package backendfake

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/jrsteele09/go-pos-console/users"
	fakeuserrepo "github.com/jrsteele09/go-pos-console/users/repofake"
	"github.com/pkg/errors"
)

// Backend is a fake POS REST API. The zero value is not usable, use New.
type Backend struct {
	accounts users.AccountRepo
	issuer   *issuer
	mux      *http.ServeMux

	mu           sync.Mutex
	products     map[string]*sales.Product
	sales        map[string]*sales.Sale
	returns      []sales.ReturnRequest
	profilesDown bool
	returnsDown  bool
}

// Option defines a function type to modify the Backend instance.
type Option func(*Backend)

// WithSigningKey sets the HMAC key tokens are signed with.
func WithSigningKey(key []byte) Option {
	return func(b *Backend) {
		b.issuer.key = key
	}
}

// WithTokenTTL sets how long issued tokens are valid for.
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.issuer.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Backend) {
		b.issuer.nowTime = nowFunc
	}
}

func New(options ...Option) *Backend {
	b := &Backend{
		accounts: fakeuserrepo.NewFakeUserRepo(),
		issuer:   newIssuer(),
		products: make(map[string]*sales.Product),
		sales:    make(map[string]*sales.Sale),
	}
	for _, opt := range options {
		opt(b)
	}
	b.mux = http.NewServeMux()
	b.initRoutes()
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// AddUser registers an account. The PIN may be empty for users without one.
func (b *Backend) AddUser(username, password, pin string, role users.RoleType, fullName string) (*users.Account, error) {
	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Backend.AddUser] hash password")
	}
	account := &users.Account{
		Profile: users.Profile{
			Username: username,
			Role:     role,
			FullName: fullName,
			IsActive: true,
		},
		PasswordHash: passwordHash,
	}
	if pin != "" {
		if account.PINHash, err = users.HashPassword(pin); err != nil {
			return nil, errors.Wrap(err, "[Backend.AddUser] hash PIN")
		}
	}
	if err := b.accounts.Upsert(account); err != nil {
		return nil, errors.Wrap(err, "[Backend.AddUser] upsert")
	}
	return account, nil
}

// DeactivateUser marks a user inactive so that logins are refused.
func (b *Backend) DeactivateUser(username string) error {
	account, err := b.accounts.GetByUsername(username)
	if err != nil {
		return err
	}
	account.IsActive = false
	return b.accounts.Upsert(account)
}

func (b *Backend) AddProduct(p sales.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	b.products[p.ID] = &p
}

// RecordSale rings up a completed sale, taking the items out of stock.
func (b *Backend) RecordSale(cashierID string, items ...sales.LineItem) (*sales.Sale, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sale := &sales.Sale{
		ID:        uuid.NewString(),
		Status:    sales.StatusCompleted,
		CashierID: cashierID,
		CreatedAt: b.issuer.nowTime().UTC(),
	}
	for _, li := range items {
		p, ok := b.products[li.ProductID]
		if !ok {
			return nil, errors.Errorf("[Backend.RecordSale] unknown product %s", li.ProductID)
		}
		if p.Stock < li.Quantity {
			return nil, errors.Errorf("[Backend.RecordSale] only %d of %s in stock", p.Stock, p.ID)
		}
		if li.UnitPrice == 0 {
			li.UnitPrice = p.Price
		}
		li.Name = p.Name
		sale.Items = append(sale.Items, li)
		sale.Total += li.UnitPrice * float64(li.Quantity)
	}
	for _, li := range sale.Items {
		b.products[li.ProductID].Stock -= li.Quantity
	}
	b.sales[sale.ID] = sale
	cp := copySale(sale)
	return &cp, nil
}

// Stock returns the units on hand for a product.
func (b *Backend) Stock(productID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.products[productID]; ok {
		return p.Stock
	}
	return 0
}

// Sale returns a copy of a recorded sale.
func (b *Backend) Sale(id string) (sales.Sale, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sales[id]
	if !ok {
		return sales.Sale{}, false
	}
	return copySale(s), true
}

// Returns lists every compensating return received.
func (b *Backend) Returns() []sales.ReturnRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sales.ReturnRequest(nil), b.returns...)
}

// SetProfilesDown makes the user listing answer 503.
func (b *Backend) SetProfilesDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profilesDown = down
}

// SetReturnsDown makes compensating returns answer 500.
func (b *Backend) SetReturnsDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.returnsDown = down
}

// RevokeSessions invalidates every token issued so far.
func (b *Backend) RevokeSessions() {
	b.issuer.revokeAll()
}

// IssueToken signs a token for an existing user without checking credentials.
func (b *Backend) IssueToken(username string) (string, error) {
	account, err := b.accounts.GetByUsername(username)
	if err != nil {
		return "", errors.Wrapf(err, "[Backend.IssueToken] %s", username)
	}
	return b.issuer.issue(&account.Profile)
}

func (b *Backend) listSales() []sales.Sale {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sales.Sale, 0, len(b.sales))
	for _, s := range b.sales {
		out = append(out, copySale(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *Backend) listProducts() []sales.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sales.Product, 0, len(b.products))
	for _, p := range b.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func copySale(s *sales.Sale) sales.Sale {
	cp := *s
	cp.Items = append([]sales.LineItem(nil), s.Items...)
	return cp
}
