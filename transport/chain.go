// Package transport holds the RoundTripper decorators registered on the
// backend HTTP client: bearer attachment on the way out and session
// collapse on 401 on the way back.
package transport

import "net/http"

// Constructor wraps a RoundTripper with one concern.
type Constructor func(http.RoundTripper) http.RoundTripper

// Chain is an immutable, ordered list of RoundTripper constructors.
type Chain struct {
	constructors []Constructor
}

// NewChain memorizes the constructors. They are only called by Then.
func NewChain(constructors ...Constructor) Chain {
	return Chain{append([]Constructor(nil), constructors...)}
}

// Then builds the final RoundTripper.
//
//	NewChain(m1, m2, m3).Then(rt)
//
// is equivalent to m1(m2(m3(rt))), so requests pass through m1 first and
// responses reach m1 last. A nil rt means http.DefaultTransport.
func (c Chain) Then(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	for i := range c.constructors {
		rt = c.constructors[len(c.constructors)-1-i](rt)
	}
	return rt
}

// Append returns a new chain with constructors added after the existing ones.
func (c Chain) Append(constructors ...Constructor) Chain {
	cons := make([]Constructor, 0, len(c.constructors)+len(constructors))
	cons = append(cons, c.constructors...)
	cons = append(cons, constructors...)
	return Chain{cons}
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
