package transport

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const RequestIDHeader = "X-Request-ID"

// TokenSource yields the session token to attach, or "" for none.
type TokenSource interface {
	Token() string
}

// Bearer attaches the current session token to every outgoing request. The
// token is read when the request is sent, so a request already on the wire
// keeps whatever token it left with.
func Bearer(source TokenSource) Constructor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			tok := source.Token()
			hasID := req.Header.Get(RequestIDHeader) != ""
			if tok == "" && hasID {
				return next.RoundTrip(req)
			}

			// RoundTrippers must not modify the caller's request.
			req = req.Clone(req.Context())
			if !hasID {
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			if tok != "" {
				(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}).SetAuthHeader(req)
			}
			return next.RoundTrip(req)
		})
	}
}
