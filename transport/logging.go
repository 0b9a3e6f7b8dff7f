package transport

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logging records each backend call at debug level.
func Logging(logger zerolog.Logger) Constructor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			ev := logger.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Dur("latency", time.Since(start))
			if err != nil {
				ev.Err(err).Msg("backend call failed")
				return resp, err
			}
			ev.Int("status", resp.StatusCode).Msg("backend call")
			return resp, nil
		})
	}
}
