// Package session owns the console's authenticated session: the bearer token,
// the user identity derived from it, and their durable copies.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/internal/metrics"
	"github.com/jrsteele09/go-pos-console/storage"
	"github.com/jrsteele09/go-pos-console/token"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State is a snapshot of the session. User is never set without Token.
type State struct {
	Token   string
	User    *users.Identity
	Loading bool // Identity resolution has not finished for Token
}

// LoggedIn reports whether the snapshot holds both a token and an identity.
func (st State) LoggedIn() bool {
	return st.Token != "" && st.User != nil
}

// Store is the single owner of session state. All mutation goes through
// Initialize, Login, LoginWithPIN, Refresh and Logout.
type Store struct {
	verifier    Verifier
	kv          storage.KV
	logger      zerolog.Logger
	defaultRole users.RoleType
	nowTime     func() time.Time

	mu    sync.RWMutex
	state State
	epoch uint64 // bumped on every token change and on every logout

	resolving singleflight.Group

	listenersMu  sync.Mutex
	listeners    map[int]func(State)
	nextListener int
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithDefaultRole sets the role given to fallback identities whose token has no role claim.
func WithDefaultRole(role users.RoleType) StoreOption {
	return func(s *Store) {
		s.defaultRole = role
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New creates a Store. It starts in the loading state until Initialize runs.
func New(verifier Verifier, kv storage.KV, options ...StoreOption) (*Store, error) {
	if verifier == nil {
		return nil, errors.New("[session.New] verifier is required")
	}
	if kv == nil {
		return nil, errors.New("[session.New] storage is required")
	}

	s := &Store{
		verifier:    verifier,
		kv:          kv,
		logger:      log.Logger,
		defaultRole: users.RoleCashier,
		nowTime:     time.Now,
		state:       State{Loading: true},
		listeners:   make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// State returns a snapshot of the current session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Token returns the most recently committed token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// HasRole reports whether the current user satisfies req. It is false
// whenever there is no user, whatever req is.
func (s *Store) HasRole(req users.Requirement) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return false
	}
	return req.Allows(s.state.User.Role)
}

// Subscribe registers fn to be called with the new state after every
// committed transition. The returned function removes the listener.
func (s *Store) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// Initialize restores a persisted session. A cached identity is shown
// immediately while the authoritative one is resolved. Loading ends once
// resolution finishes, whatever its outcome. A login or logout that commits
// while the restore is reading storage wins and the restore is dropped.
func (s *Store) Initialize(ctx context.Context) error {
	start := s.currentEpoch()

	tok, ok, err := s.kv.Get(storage.KeyToken)
	if err != nil {
		s.finishLoading(start)
		return errors.Wrap(err, "[Store.Initialize] read persisted token")
	}
	if !ok || tok == "" {
		s.finishLoading(start)
		return nil
	}

	claims, err := token.Decode(tok)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable persisted token")
		s.discardRestore(start, "malformed")
		return nil
	}
	if claims.Expired(s.nowTime()) {
		err := apperrors.Wrapf(apperrors.ErrTokenExpired, "persisted token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
		s.logger.Info().Err(err).Str("user", claims.Subject).Msg("discarding expired persisted token")
		s.discardRestore(start, "expired")
		return nil
	}

	cached := s.cachedIdentity(claims.Subject)

	s.mu.Lock()
	if s.epoch != start {
		s.mu.Unlock()
		metrics.StaleResults.Inc()
		s.logger.Debug().Msg("discarding superseded session restore")
		return nil
	}
	s.epoch++
	epoch := s.epoch
	s.state = State{Token: tok, User: cached, Loading: true}
	s.mu.Unlock()
	s.notify()

	if err := s.resolveAndCommit(ctx, tok, epoch); err != nil && !apperrors.Is(err, apperrors.ErrSessionSuperseded) {
		return errors.Wrap(err, "[Store.Initialize] resolve identity")
	}
	return nil
}

// Login verifies primary credentials, stores the issued token and resolves
// the identity behind it. A login overtaken by a logout or another login
// returns errors.ErrSessionSuperseded and changes nothing.
func (s *Store) Login(ctx context.Context, username, password string) error {
	start := s.currentEpoch()

	tok, err := s.verifier.Login(ctx, username, password)
	if err != nil {
		return errors.Wrap(err, "[Store.Login] verifier.Login")
	}

	epoch, err := s.commitToken(tok, nil, start, "login")
	if err != nil {
		return err
	}
	return s.resolveAndCommit(ctx, tok, epoch)
}

// LoginWithPIN signs in with a floor-staff PIN. The returned token and user
// are committed as-is without profile resolution.
func (s *Store) LoginWithPIN(ctx context.Context, pin string) error {
	start := s.currentEpoch()

	tok, user, err := s.verifier.PINLogin(ctx, pin)
	if err != nil {
		return errors.Wrap(err, "[Store.LoginWithPIN] verifier.PINLogin")
	}

	epoch, err := s.commitToken(tok, user, start, "pin_login")
	if err != nil {
		return err
	}
	if user == nil {
		return s.resolveAndCommit(ctx, tok, epoch)
	}
	return nil
}

// Refresh resolves the identity of the current token again.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	tok, epoch := s.state.Token, s.epoch
	s.mu.RUnlock()
	if tok == "" {
		return apperrors.ErrNotLoggedIn
	}
	return s.resolveAndCommit(ctx, tok, epoch)
}

// Logout clears the token, the identity and their persisted copies. It is
// idempotent: only the call that actually ends a session returns true.
// Any login or resolution still in flight is discarded when it completes.
func (s *Store) Logout() bool {
	return s.clear("logout")
}

func (s *Store) clear(reason string) bool {
	s.mu.Lock()
	ended, changed, user := s.clearLocked()
	s.mu.Unlock()
	s.afterClear(reason, ended, changed, user)
	return ended
}

// discardRestore clears an unusable persisted session unless another
// transition has committed since start.
func (s *Store) discardRestore(start uint64, reason string) {
	s.mu.Lock()
	if s.epoch != start {
		s.mu.Unlock()
		metrics.StaleResults.Inc()
		return
	}
	ended, changed, user := s.clearLocked()
	s.mu.Unlock()
	s.afterClear(reason, ended, changed, user)
}

// clearLocked resets the session and wipes storage. The epoch always moves so
// in-flight work is dropped, but an already cleared store is not wiped again.
// Callers hold s.mu.
func (s *Store) clearLocked() (ended, changed bool, user *users.Identity) {
	s.epoch++
	ended = s.state.Token != "" || s.state.User != nil
	changed = ended || s.state.Loading
	user = s.state.User
	if !changed {
		return ended, changed, user
	}
	s.state = State{}
	if err := s.kv.Delete(storage.KeyToken, storage.KeyUser); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear persisted session")
	}
	return ended, changed, user
}

func (s *Store) afterClear(reason string, ended, changed bool, user *users.Identity) {
	if ended {
		ev := s.logger.Info().Str("reason", reason)
		if user != nil {
			ev = ev.Str("user", user.Username)
		}
		ev.Msg("session ended")
		metrics.SessionTransitions.WithLabelValues("logout").Inc()
	}
	if changed {
		s.notify()
	}
}

func (s *Store) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// finishLoading ends the startup wait. A transition committed since start
// owns the loading flag and is left alone.
func (s *Store) finishLoading(start uint64) {
	s.mu.Lock()
	if s.epoch != start {
		s.mu.Unlock()
		return
	}
	changed := s.state.Loading
	s.state.Loading = false
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// commitToken installs a new token if nothing has changed since expect.
func (s *Store) commitToken(tok string, user *users.Identity, expect uint64, kind string) (uint64, error) {
	s.mu.Lock()
	if s.epoch != expect {
		s.mu.Unlock()
		metrics.StaleResults.Inc()
		s.logger.Debug().Str("kind", kind).Msg("discarding superseded login result")
		return 0, apperrors.ErrSessionSuperseded
	}
	s.epoch++
	epoch := s.epoch
	s.state = State{Token: tok, User: user, Loading: user == nil}

	if user == nil {
		if err := s.kv.Delete(storage.KeyUser); err != nil {
			s.logger.Error().Err(err).Msg("failed to drop cached identity")
		}
		if err := s.kv.Set(map[string]string{storage.KeyToken: tok}); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist token")
		}
	} else {
		s.persist(tok, user)
	}
	s.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(kind).Inc()
	s.notify()
	return epoch, nil
}

// resolveAndCommit resolves the identity for tok and commits it only if the
// session still holds tok at the same epoch.
func (s *Store) resolveAndCommit(ctx context.Context, tok string, epoch uint64) error {
	v, err, _ := s.resolving.Do(tok, func() (interface{}, error) {
		return s.resolve(ctx, tok)
	})

	s.mu.Lock()
	if s.epoch != epoch || s.state.Token != tok {
		s.mu.Unlock()
		metrics.StaleResults.Inc()
		s.logger.Debug().Msg("discarding stale identity resolution")
		return apperrors.ErrSessionSuperseded
	}

	if err != nil {
		// The token itself is unusable, there is nothing to fall back on.
		ended, changed, user := s.clearLocked()
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("session token cannot be decoded")
		s.afterClear("malformed", ended, changed, user)
		return err
	}

	res := v.(Resolution)
	identity := res.Identity(s.defaultRole)
	s.state.User = identity
	s.state.Loading = false
	kind := "resolved"
	if fb, ok := res.(FallbackFromClaims); ok {
		kind = "fallback"
		s.logger.Warn().Err(fb.Cause).Str("user", identity.Username).Str("role", string(identity.Role)).
			Msg("profile lookup failed, using identity from token claims")
	} else {
		s.persist(tok, identity)
	}
	s.mu.Unlock()

	s.logger.Info().Str("user", identity.Username).Str("role", string(identity.Role)).Bool("offline", identity.IsOffline).
		Msg("session identity resolved")
	metrics.SessionTransitions.WithLabelValues(kind).Inc()
	s.notify()
	return nil
}

func (s *Store) resolve(ctx context.Context, tok string) (Resolution, error) {
	claims, err := token.Decode(tok)
	if err != nil {
		return nil, err
	}

	profiles, err := s.verifier.Profiles(ctx)
	if err != nil {
		return FallbackFromClaims{Claims: claims, Cause: err}, nil
	}
	profile, ok := users.FindByUsername(profiles, claims.Subject)
	if !ok {
		return FallbackFromClaims{
			Claims: claims,
			Cause:  apperrors.Wrapf(apperrors.ErrNotFound, "no profile for %q", claims.Subject),
		}, nil
	}
	return ResolvedProfile{Profile: profile}, nil
}

// persist writes the token and identity together. Callers hold s.mu.
func (s *Store) persist(tok string, user *users.Identity) {
	data, err := json.Marshal(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode identity")
		return
	}
	if err := s.kv.Set(map[string]string{
		storage.KeyToken: tok,
		storage.KeyUser:  string(data),
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist session")
	}
}

// cachedIdentity loads the persisted identity if it belongs to subject.
func (s *Store) cachedIdentity(subject string) *users.Identity {
	raw, ok, err := s.kv.Get(storage.KeyUser)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var identity users.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.logger.Debug().Err(err).Msg("ignoring unreadable cached identity")
		return nil
	}
	if identity.Username != subject {
		return nil
	}
	return &identity
}

func (s *Store) notify() {
	st := s.State()
	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
