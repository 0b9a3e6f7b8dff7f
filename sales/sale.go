// Package sales holds the sale lifecycle the console can change: a
// completed sale can be voided, and nothing else.
package sales

import (
	"context"
	"time"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusVoided    Status = "VOIDED" // Terminal
)

// CanTransitionTo reports whether a sale in status s may move to next.
// COMPLETED to VOIDED is the only transition.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusCompleted && next == StatusVoided
}

type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Sale struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	CashierID string     `json:"cashier_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ReturnItem is one product quantity to put back into stock.
type ReturnItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ReturnRequest reverses stock movements of a sale and records a refund.
type ReturnRequest struct {
	SaleID string       `json:"sale_id"`
	Items  []ReturnItem `json:"items"`
	Reason string       `json:"reason"`
}

type ReturnReceipt struct {
	ID           string  `json:"id"`
	RefundAmount float64 `json:"refund_amount"`
}

// FullReturn builds the return that reverses every line of the sale.
func FullReturn(sale *Sale, reason string) ReturnRequest {
	items := make([]ReturnItem, 0, len(sale.Items))
	for _, li := range sale.Items {
		items = append(items, ReturnItem{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return ReturnRequest{SaleID: sale.ID, Items: items, Reason: reason}
}

// Product is an inventory line as listed by the backend.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Backend is the sales API the void flow needs.
type Backend interface {
	GetSale(ctx context.Context, id string) (*Sale, error)
	CreateReturn(ctx context.Context, req ReturnRequest) (*ReturnReceipt, error)
	UpdateSaleStatus(ctx context.Context, id string, status Status) (*Sale, error)
}
