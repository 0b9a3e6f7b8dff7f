package backend

import (
	"context"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/pkg/errors"
)

var _ sales.Backend = (*Client)(nil)

type statusUpdate struct {
	Status sales.Status `json:"status"`
}

func salePath(id string) string {
	return SalesPath + "/" + url.PathEscape(id)
}

func (c *Client) ListSales(ctx context.Context) ([]sales.Sale, error) {
	var out []sales.Sale
	if err := c.getJSON(ctx, SalesPath, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.ListSales]")
	}
	return out, nil
}

func (c *Client) GetSale(ctx context.Context, id string) (*sales.Sale, error) {
	var out sales.Sale
	if err := c.getJSON(ctx, salePath(id), &out); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrSaleNotFound, "[Client.GetSale] %s", id)
		}
		return nil, errors.Wrap(err, "[Client.GetSale]")
	}
	return &out, nil
}

// CreateReturn posts a compensating return that puts stock back and records a refund.
func (c *Client) CreateReturn(ctx context.Context, req sales.ReturnRequest) (*sales.ReturnReceipt, error) {
	var out sales.ReturnReceipt
	if err := c.sendJSON(ctx, http.MethodPost, ReturnsPath, req, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.CreateReturn]")
	}
	return &out, nil
}

func (c *Client) UpdateSaleStatus(ctx context.Context, id string, status sales.Status) (*sales.Sale, error) {
	var out sales.Sale
	if err := c.sendJSON(ctx, http.MethodPatch, salePath(id), statusUpdate{Status: status}, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateSaleStatus]")
	}
	return &out, nil
}

func (c *Client) Products(ctx context.Context) ([]sales.Product, error) {
	var out []sales.Product
	if err := c.getJSON(ctx, ProductsPath, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.Products]")
	}
	return out, nil
}
