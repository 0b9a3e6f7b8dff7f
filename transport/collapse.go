package transport

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-pos-console/internal/metrics"
	"github.com/rs/zerolog"
)

// Collapser ends the session. It must be idempotent and safe for
// concurrent use; it reports whether this call ended a session.
type Collapser interface {
	Logout() bool
}

type noCollapseKey struct{}

// WithoutCollapse marks requests whose 401 answers a credential check
// rather than an expired session, such as login or PIN validation.
func WithoutCollapse(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCollapseKey{}, true)
}

func collapseDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noCollapseKey{}).(bool)
	return v
}

// CollapseOnUnauthorized logs the session out when the backend answers 401.
// The response is handed back untouched so the caller still sees the failure.
func CollapseOnUnauthorized(c Collapser, logger zerolog.Logger) Constructor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			metrics.Unauthorized.Inc()
			if collapseDisabled(req.Context()) {
				return resp, nil
			}
			if c.Logout() {
				logger.Warn().Str("method", req.Method).Str("path", req.URL.Path).
					Str("request_id", req.Header.Get(RequestIDHeader)).
					Msg("backend rejected session token, logged out")
			}
			return resp, nil
		})
	}
}
