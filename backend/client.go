// Package backend is the console's client for the POS REST API: credential
// checks, user profiles, PIN validation and sales.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/transport"
	"github.com/pkg/errors"
)

const (
	LoginPath       = "/auth/login"
	VerifyPINPath   = "/auth/verify-pin"
	PINLoginPath    = "/auth/pin-login"
	UsersPath       = "/users"
	SalesPath       = "/sales"
	ReturnsPath     = "/sales/returns"
	ProductsPath    = "/products"
	maxErrorBodyLen = 512
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL    string
	base       http.RoundTripper
	httpClient *http.Client
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBaseTransport sets the RoundTripper at the bottom of the chain.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
		c.httpClient.Transport = rt
	}
}

func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[backend.New] invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Use installs the decorator chain on the client's transport. It is called
// once while wiring, before the client is shared.
func (c *Client) Use(chain transport.Chain) {
	c.httpClient.Transport = chain.Then(c.base)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(detail),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", req.Method, req.URL.Path)
	}
	return nil
}

// errorDetail extracts {"detail": ...} or {"error": ...} when present.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "encode %s %s request", method, path)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, out)
}
