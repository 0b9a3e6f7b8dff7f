package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/storage"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "password123"
	testPIN      = "4321"
)

var (
	adminProfile   = users.Profile{ID: "u-1", Username: "alice", Role: users.RoleAdmin, FullName: "Alice Admin", IsActive: true}
	cashierProfile = users.Profile{ID: "u-2", Username: "bob", Role: users.RoleCashier, FullName: "Bob Cashier", IsActive: true}
)

// gate blocks a fake call until released, after signalling that it was entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeVerifier struct {
	mu           sync.Mutex
	passwords    map[string]string
	tokens       map[string]string
	pinUsers     map[string]*users.Identity
	profiles     []users.Profile
	profilesErr  error
	profileCalls int

	loginGate    *gate
	profilesGate *gate
}

func (f *fakeVerifier) Login(ctx context.Context, username, password string) (string, error) {
	if err := f.loginGate.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.passwords[username]; !ok || pw != password {
		return "", apperrors.ErrInvalidCredentials
	}
	return f.tokens[username], nil
}

func (f *fakeVerifier) PINLogin(ctx context.Context, pin string) (string, *users.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.pinUsers[pin]
	if !ok {
		return "", nil, apperrors.ErrInvalidPIN
	}
	return f.tokens[user.Username], user, nil
}

func (f *fakeVerifier) Profiles(ctx context.Context) ([]users.Profile, error) {
	if err := f.profilesGate.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profilesErr != nil {
		return nil, f.profilesErr
	}
	return f.profiles, nil
}

func (f *fakeVerifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls
}

func makeToken(t *testing.T, subject string, role users.RoleType, exp time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{"sub": subject, "exp": exp.Unix()}
	if role != "" {
		claims["role"] = string(role)
	}
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return raw
}

// hookedKV wraps a KV so a test can act between reads and count wipes.
type hookedKV struct {
	storage.KV
	mu      sync.Mutex
	onGet   func(key string)
	deletes int
}

func (h *hookedKV) Get(key string) (string, bool, error) {
	h.mu.Lock()
	hook := h.onGet
	h.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return h.KV.Get(key)
}

func (h *hookedKV) Delete(keys ...string) error {
	h.mu.Lock()
	h.deletes++
	h.mu.Unlock()
	return h.KV.Delete(keys...)
}

func (h *hookedKV) deleteCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deletes
}

type testFixture struct {
	verifier *fakeVerifier
	kv       *storage.Memory
	store    *session.Store
}

// setupTestFixture returns an initialized store over an empty memory KV.
// alice (ADMIN) and bob (CASHIER) can log in and both have profiles.
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	v := &fakeVerifier{
		passwords: map[string]string{"alice": testPassword, "bob": testPassword},
		tokens: map[string]string{
			"alice": makeToken(t, "alice", users.RoleAdmin, exp),
			"bob":   makeToken(t, "bob", users.RoleCashier, exp),
		},
		pinUsers: map[string]*users.Identity{
			testPIN: users.IdentityFromProfile(cashierProfile),
		},
		profiles: []users.Profile{adminProfile, cashierProfile},
	}
	kv := storage.NewMemory()
	store, err := session.New(v, kv)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	return &testFixture{verifier: v, kv: kv, store: store}
}

func (f *testFixture) persisted(t *testing.T) (string, *users.Identity) {
	t.Helper()
	tok, _, err := f.kv.Get(storage.KeyToken)
	require.NoError(t, err)
	raw, ok, err := f.kv.Get(storage.KeyUser)
	require.NoError(t, err)
	if !ok {
		return tok, nil
	}
	var identity users.Identity
	require.NoError(t, json.Unmarshal([]byte(raw), &identity))
	return tok, &identity
}

func requireLoggedOut(t *testing.T, f *testFixture) {
	t.Helper()
	st := f.store.State()
	require.Empty(t, st.Token)
	require.Nil(t, st.User)
	require.False(t, st.Loading)
	tok, user := f.persisted(t)
	require.Empty(t, tok)
	require.Nil(t, user)
}

func TestNew(t *testing.T) {
	_, err := session.New(nil, storage.NewMemory())
	require.Error(t, err)
	_, err = session.New(&fakeVerifier{}, nil)
	require.Error(t, err)

	store, err := session.New(&fakeVerifier{}, storage.NewMemory())
	require.NoError(t, err)
	require.True(t, store.State().Loading)
}

func TestStore_Login(t *testing.T) {
	t.Run("valid credentials resolve the profile and persist both keys", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))

		st := f.store.State()
		require.Equal(t, f.verifier.tokens["alice"], st.Token)
		require.False(t, st.Loading)
		require.NotNil(t, st.User)
		require.Equal(t, "u-1", st.User.ID)
		require.Equal(t, users.RoleAdmin, st.User.Role)
		require.Equal(t, "Alice Admin", st.User.FullName)
		require.False(t, st.User.IsOffline)
		require.True(t, st.LoggedIn())

		tok, user := f.persisted(t)
		require.Equal(t, st.Token, tok)
		require.Equal(t, st.User, user)
	})

	t.Run("invalid credentials leave the store logged out", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.store.Login(context.Background(), "alice", "wrong")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		requireLoggedOut(t, f)
	})

	t.Run("no matching profile falls back to claims with the default role", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.passwords["carol"] = testPassword
		f.verifier.tokens["carol"] = makeToken(t, "carol", "", time.Now().Add(time.Hour))

		require.NoError(t, f.store.Login(context.Background(), "carol", testPassword))

		st := f.store.State()
		require.False(t, st.Loading)
		require.NotNil(t, st.User)
		require.True(t, st.User.IsOffline)
		require.Equal(t, "carol", st.User.Username)
		require.Equal(t, "carol", st.User.ID)
		require.Equal(t, users.RoleCashier, st.User.Role)

		// Only authoritative identities are cached.
		tok, user := f.persisted(t)
		require.Equal(t, st.Token, tok)
		require.Nil(t, user)
	})

	t.Run("profile service failure keeps the role from the claims", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.profilesErr = errors.New("connection refused")

		require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))

		st := f.store.State()
		require.True(t, st.User.IsOffline)
		require.Equal(t, users.RoleAdmin, st.User.Role)
		require.True(t, st.User.IsActive)
	})

	t.Run("configured default role applies to fallback identities", func(t *testing.T) {
		v := &fakeVerifier{
			passwords: map[string]string{"dave": testPassword},
			tokens:    map[string]string{"dave": makeToken(t, "dave", "", time.Now().Add(time.Hour))},
		}
		store, err := session.New(v, storage.NewMemory(), session.WithDefaultRole(users.RoleWarehouse))
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))

		require.NoError(t, store.Login(context.Background(), "dave", testPassword))
		require.Equal(t, users.RoleWarehouse, store.State().User.Role)
	})

	t.Run("undecodable token ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.tokens["alice"] = "not-a-token"

		err := f.store.Login(context.Background(), "alice", testPassword)
		require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		requireLoggedOut(t, f)
		require.Zero(t, f.verifier.calls())
	})

	t.Run("a second login replaces the first", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))
		require.NoError(t, f.store.Login(context.Background(), "bob", testPassword))

		st := f.store.State()
		require.Equal(t, "bob", st.User.Username)
		_, user := f.persisted(t)
		require.Equal(t, "bob", user.Username)
	})
}

func TestStore_LoginWithPIN(t *testing.T) {
	f := setupTestFixture(t)

	err := f.store.LoginWithPIN(context.Background(), "0000")
	require.ErrorIs(t, err, apperrors.ErrInvalidPIN)
	requireLoggedOut(t, f)

	require.NoError(t, f.store.LoginWithPIN(context.Background(), testPIN))
	st := f.store.State()
	require.Equal(t, f.verifier.tokens["bob"], st.Token)
	require.Equal(t, "bob", st.User.Username)
	require.False(t, st.Loading)
	require.Zero(t, f.verifier.calls(), "PIN login must not run profile resolution")

	tok, user := f.persisted(t)
	require.Equal(t, st.Token, tok)
	require.Equal(t, "bob", user.Username)
}

func TestStore_Logout(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))

		require.True(t, f.store.Logout())
		first := f.store.State()
		for i := 0; i < 3; i++ {
			require.False(t, f.store.Logout())
			require.Equal(t, first, f.store.State())
		}
		requireLoggedOut(t, f)
	})

	t.Run("an already cleared store is not wiped again", func(t *testing.T) {
		kv := &hookedKV{KV: storage.NewMemory()}
		v := &fakeVerifier{
			passwords: map[string]string{"alice": testPassword},
			tokens:    map[string]string{"alice": makeToken(t, "alice", users.RoleAdmin, time.Now().Add(time.Hour))},
			profiles:  []users.Profile{adminProfile},
		}
		store, err := session.New(v, kv)
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))
		require.NoError(t, store.Login(context.Background(), "alice", testPassword))

		before := kv.deleteCount()
		require.True(t, store.Logout())
		require.Equal(t, before+1, kv.deleteCount())

		require.False(t, store.Logout())
		require.False(t, store.Logout())
		require.Equal(t, before+1, kv.deleteCount())
	})

	t.Run("logout still cancels work started on a cleared store", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.loginGate = newGate()

		done := make(chan error, 1)
		go func() { done <- f.store.Login(context.Background(), "alice", testPassword) }()

		<-f.verifier.loginGate.entered
		require.False(t, f.store.Logout())
		close(f.verifier.loginGate.release)

		require.ErrorIs(t, <-done, apperrors.ErrSessionSuperseded)
		requireLoggedOut(t, f)
	})

	t.Run("concurrent calls produce one transition", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))

		var mu sync.Mutex
		transitions := 0
		unsubscribe := f.store.Subscribe(func(st session.State) {
			mu.Lock()
			defer mu.Unlock()
			transitions++
		})
		defer unsubscribe()

		const callers = 8
		results := make(chan bool, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- f.store.Logout()
			}()
		}
		wg.Wait()
		close(results)

		ended := 0
		for r := range results {
			if r {
				ended++
			}
		}
		require.Equal(t, 1, ended)
		mu.Lock()
		require.Equal(t, 1, transitions)
		mu.Unlock()
		requireLoggedOut(t, f)
	})
}

func TestStore_StaleResults(t *testing.T) {
	t.Run("slow login resolving after logout does not resurrect the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.loginGate = newGate()

		done := make(chan error, 1)
		go func() { done <- f.store.Login(context.Background(), "alice", testPassword) }()

		<-f.verifier.loginGate.entered
		f.store.Logout()
		close(f.verifier.loginGate.release)

		require.ErrorIs(t, <-done, apperrors.ErrSessionSuperseded)
		requireLoggedOut(t, f)
	})

	t.Run("logout during identity resolution discards the result", func(t *testing.T) {
		f := setupTestFixture(t)
		f.verifier.profilesGate = newGate()

		done := make(chan error, 1)
		go func() { done <- f.store.Login(context.Background(), "alice", testPassword) }()

		<-f.verifier.profilesGate.entered
		st := f.store.State()
		require.NotEmpty(t, st.Token)
		require.Nil(t, st.User)
		require.True(t, st.Loading)
		require.False(t, f.store.HasRole(users.AnyRole))

		require.True(t, f.store.Logout())
		close(f.verifier.profilesGate.release)

		require.ErrorIs(t, <-done, apperrors.ErrSessionSuperseded)
		requireLoggedOut(t, f)
	})
}

func TestStore_Initialize(t *testing.T) {
	newStore := func(t *testing.T, v *fakeVerifier, kv storage.KV, now time.Time) *session.Store {
		t.Helper()
		store, err := session.New(v, kv, session.WithNowTime(func() time.Time { return now }))
		require.NoError(t, err)
		return store
	}

	t.Run("no persisted token ends loading", func(t *testing.T) {
		store := newStore(t, &fakeVerifier{}, storage.NewMemory(), time.Now())
		require.NoError(t, store.Initialize(context.Background()))
		st := store.State()
		require.False(t, st.Loading)
		require.False(t, st.LoggedIn())
	})

	t.Run("cached identity is shown until resolution completes", func(t *testing.T) {
		tok := makeToken(t, "alice", users.RoleAdmin, time.Now().Add(time.Hour))
		cached, err := json.Marshal(users.Identity{ID: "u-1", Username: "alice", Role: users.RoleCashier, IsActive: true})
		require.NoError(t, err)
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(map[string]string{storage.KeyToken: tok, storage.KeyUser: string(cached)}))

		v := &fakeVerifier{profiles: []users.Profile{adminProfile}, profilesGate: newGate()}
		store := newStore(t, v, kv, time.Now())

		done := make(chan error, 1)
		go func() { done <- store.Initialize(context.Background()) }()

		<-v.profilesGate.entered
		st := store.State()
		require.True(t, st.Loading)
		require.Equal(t, tok, st.Token)
		require.Equal(t, users.RoleCashier, st.User.Role)

		close(v.profilesGate.release)
		require.NoError(t, <-done)

		st = store.State()
		require.False(t, st.Loading)
		require.Equal(t, users.RoleAdmin, st.User.Role)
	})

	t.Run("cached identity for another subject is ignored", func(t *testing.T) {
		tok := makeToken(t, "alice", users.RoleAdmin, time.Now().Add(time.Hour))
		cached, err := json.Marshal(users.Identity{ID: "u-2", Username: "bob", Role: users.RoleCashier})
		require.NoError(t, err)
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(map[string]string{storage.KeyToken: tok, storage.KeyUser: string(cached)}))

		v := &fakeVerifier{profilesErr: errors.New("offline")}
		store := newStore(t, v, kv, time.Now())
		require.NoError(t, store.Initialize(context.Background()))

		st := store.State()
		require.Equal(t, "alice", st.User.Username)
		require.True(t, st.User.IsOffline)
	})

	t.Run("expired persisted token is discarded", func(t *testing.T) {
		now := time.Now()
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(map[string]string{
			storage.KeyToken: makeToken(t, "alice", users.RoleAdmin, now.Add(-time.Minute)),
			storage.KeyUser:  `{"username":"alice"}`,
		}))
		v := &fakeVerifier{}
		var logs bytes.Buffer
		store, err := session.New(v, kv,
			session.WithNowTime(func() time.Time { return now }),
			session.WithLogger(zerolog.New(&logs)),
		)
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))
		require.Contains(t, logs.String(), apperrors.ErrTokenExpired.Error())

		require.False(t, store.State().LoggedIn())
		require.False(t, store.State().Loading)
		_, ok, _ := kv.Get(storage.KeyToken)
		require.False(t, ok)
		_, ok, _ = kv.Get(storage.KeyUser)
		require.False(t, ok)
		require.Zero(t, v.calls())
	})

	t.Run("logout while restoring wins", func(t *testing.T) {
		kv := &hookedKV{KV: storage.NewMemory()}
		require.NoError(t, kv.Set(map[string]string{storage.KeyToken: makeToken(t, "alice", users.RoleAdmin, time.Now().Add(time.Hour))}))
		v := &fakeVerifier{profiles: []users.Profile{adminProfile}}
		store := newStore(t, v, kv, time.Now())

		kv.onGet = func(key string) {
			if key == storage.KeyUser {
				kv.onGet = nil
				store.Logout()
			}
		}
		require.NoError(t, store.Initialize(context.Background()))

		st := store.State()
		require.Empty(t, st.Token)
		require.Nil(t, st.User)
		require.False(t, st.Loading)
		_, ok, _ := kv.Get(storage.KeyToken)
		require.False(t, ok)
		require.Zero(t, v.calls())
	})

	t.Run("login while restoring wins", func(t *testing.T) {
		exp := time.Now().Add(time.Hour)
		kv := &hookedKV{KV: storage.NewMemory()}
		require.NoError(t, kv.Set(map[string]string{storage.KeyToken: makeToken(t, "alice", users.RoleAdmin, exp)}))
		v := &fakeVerifier{
			passwords: map[string]string{"bob": testPassword},
			tokens:    map[string]string{"bob": makeToken(t, "bob", users.RoleCashier, exp)},
			profiles:  []users.Profile{adminProfile, cashierProfile},
		}
		store := newStore(t, v, kv, time.Now())

		var loginErr error
		kv.onGet = func(key string) {
			if key == storage.KeyUser {
				kv.onGet = nil
				loginErr = store.Login(context.Background(), "bob", testPassword)
			}
		}
		require.NoError(t, store.Initialize(context.Background()))
		require.NoError(t, loginErr)

		st := store.State()
		require.Equal(t, v.tokens["bob"], st.Token)
		require.Equal(t, "bob", st.User.Username)
		require.Equal(t, users.RoleCashier, st.User.Role)
		require.False(t, st.Loading)
		tok, _, _ := kv.Get(storage.KeyToken)
		require.Equal(t, v.tokens["bob"], tok)
	})

	t.Run("malformed persisted token is discarded", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(map[string]string{storage.KeyToken: "garbage"}))
		store := newStore(t, &fakeVerifier{}, kv, time.Now())
		require.NoError(t, store.Initialize(context.Background()))

		require.False(t, store.State().LoggedIn())
		_, ok, _ := kv.Get(storage.KeyToken)
		require.False(t, ok)
	})
}

func TestStore_HasRole(t *testing.T) {
	f := setupTestFixture(t)

	for _, req := range []users.Requirement{users.AnyRole, users.Require(users.RoleAdmin), users.Require(users.RoleAdmin, users.RoleCashier, users.RoleWarehouse)} {
		require.False(t, f.store.HasRole(req), "no user must fail closed for %s", req)
	}

	require.NoError(t, f.store.Login(context.Background(), "bob", testPassword))
	require.True(t, f.store.HasRole(users.AnyRole))
	require.True(t, f.store.HasRole(users.Require(users.RoleCashier)))
	require.True(t, f.store.HasRole(users.Require(users.RoleAdmin, users.RoleCashier)))
	require.False(t, f.store.HasRole(users.Require(users.RoleAdmin)))
	require.False(t, f.store.HasRole(users.Require(users.RoleWarehouse, users.RoleAdmin)))
}

func TestStore_Refresh(t *testing.T) {
	f := setupTestFixture(t)
	require.ErrorIs(t, f.store.Refresh(context.Background()), apperrors.ErrNotLoggedIn)

	f.verifier.profilesErr = errors.New("offline")
	require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))
	require.True(t, f.store.State().User.IsOffline)

	f.verifier.mu.Lock()
	f.verifier.profilesErr = nil
	f.verifier.mu.Unlock()

	require.NoError(t, f.store.Refresh(context.Background()))
	st := f.store.State()
	require.False(t, st.User.IsOffline)
	require.Equal(t, "Alice Admin", st.User.FullName)
	_, user := f.persisted(t)
	require.Equal(t, "u-1", user.ID)
}

func TestStore_Subscribe(t *testing.T) {
	f := setupTestFixture(t)

	var states []session.State
	unsubscribe := f.store.Subscribe(func(st session.State) { states = append(states, st) })

	require.NoError(t, f.store.Login(context.Background(), "alice", testPassword))
	require.Len(t, states, 2)
	require.True(t, states[0].Loading)
	require.Nil(t, states[0].User)
	require.True(t, states[1].LoggedIn())

	unsubscribe()
	f.store.Logout()
	require.Len(t, states, 2)
}
