// Package app wires the console core: durable storage, the backend client
// with its transport chain, the session store and the step-up flows.
package app

import (
	"io"
	"net/http"

	"github.com/jrsteele09/go-pos-console/backend"
	"github.com/jrsteele09/go-pos-console/internal/config"
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/stepup"
	"github.com/jrsteele09/go-pos-console/storage"
	"github.com/jrsteele09/go-pos-console/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_ session.Verifier    = (*backend.Client)(nil)
	_ stepup.PINValidator = (*backend.Client)(nil)
)

type App struct {
	Backend *backend.Client
	Session *session.Store
	StepUp  *stepup.Authenticator
	Voider  *sales.Voider
	kv      storage.KV
}

type options struct {
	kv            storage.KV
	apiBaseURL    string
	baseTransport http.RoundTripper
	logger        zerolog.Logger
}

// Option defines a function type to modify how the App is built.
type Option func(*options)

// WithStorage replaces the configured storage driver.
func WithStorage(kv storage.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithAPIBaseURL replaces the configured backend URL.
func WithAPIBaseURL(url string) Option {
	return func(o *options) {
		o.apiBaseURL = url
	}
}

// WithBaseTransport sets the RoundTripper under the decorator chain.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.baseTransport = rt
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds the App. The session is not restored until Session.Initialize runs.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{apiBaseURL: cfg.GetAPIBaseURL(), logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.kv
	if kv == nil {
		var err error
		kv, err = storage.Open(cfg.GetStorageDriver(), cfg.GetStoragePath())
		if err != nil {
			return nil, errors.Wrap(err, "[app.New] open session storage")
		}
	}

	clientOpts := []backend.Option{backend.WithTimeout(cfg.GetRequestTimeout())}
	if o.baseTransport != nil {
		clientOpts = append(clientOpts, backend.WithBaseTransport(o.baseTransport))
	}
	client, err := backend.New(o.apiBaseURL, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] backend client")
	}

	store, err := session.New(client, kv,
		session.WithLogger(o.logger),
		session.WithDefaultRole(cfg.GetDefaultRole()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] session store")
	}

	// Registered once, here, for every backend call.
	client.Use(transport.NewChain(
		transport.Logging(o.logger),
		transport.Bearer(store),
		transport.CollapseOnUnauthorized(store, o.logger),
	))

	stepUp, err := stepup.New(client, stepup.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] step-up authenticator")
	}
	voider, err := sales.NewVoider(client, stepUp, sales.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] voider")
	}

	return &App{
		Backend: client,
		Session: store,
		StepUp:  stepUp,
		Voider:  voider,
		kv:      kv,
	}, nil
}

// Close releases the session storage.
func (a *App) Close() error {
	if c, ok := a.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
