package gate_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-pos-console/gate"
	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var allRoles = []users.RoleType{users.RoleAdmin, users.RoleCashier, users.RoleWarehouse}

func loggedIn(role users.RoleType) session.State {
	return session.State{Token: "tok", User: &users.Identity{ID: "u-1", Username: "alice", Role: role}}
}

// requirements lists absent, every single role and every pair of roles.
func requirements() []users.Requirement {
	reqs := []users.Requirement{users.AnyRole, users.Require(allRoles...)}
	for i, a := range allRoles {
		reqs = append(reqs, users.Require(a))
		for _, b := range allRoles[i+1:] {
			reqs = append(reqs, users.Require(a, b))
		}
	}
	return reqs
}

func TestEvaluate(t *testing.T) {
	t.Run("loading always waits", func(t *testing.T) {
		states := []session.State{
			{Loading: true},
			{Loading: true, Token: "tok"},
			{Loading: true, Token: "tok", User: &users.Identity{Role: users.RoleAdmin}},
		}
		for _, st := range states {
			for _, req := range requirements() {
				require.Equal(t, gate.Wait, gate.Evaluate(st, req), "state %+v req %s", st, req)
			}
		}
	})

	t.Run("no session redirects to login", func(t *testing.T) {
		for _, req := range requirements() {
			require.Equal(t, gate.RedirectLogin, gate.Evaluate(session.State{}, req))
			require.Equal(t, gate.RedirectLogin, gate.Evaluate(session.State{Token: "tok"}, req))
		}
	})

	t.Run("role membership decides render or unauthorized", func(t *testing.T) {
		for _, role := range allRoles {
			for _, req := range requirements() {
				want := gate.RedirectUnauthorized
				if req.Allows(role) {
					want = gate.Render
				}
				require.Equal(t, want, gate.Evaluate(loggedIn(role), req), "role %s req %s", role, req)
			}
		}
		require.Equal(t, gate.RedirectUnauthorized, gate.Evaluate(loggedIn("MANAGER"), users.Require(users.RoleAdmin)))
		require.Equal(t, gate.Render, gate.Evaluate(loggedIn("MANAGER"), users.AnyRole))
	})
}

func TestInline(t *testing.T) {
	admin := users.Require(users.RoleAdmin)

	require.Equal(t, "delete", gate.Inline(loggedIn(users.RoleAdmin), admin, "delete", "read-only"))
	require.Equal(t, "read-only", gate.Inline(loggedIn(users.RoleCashier), admin, "delete", "read-only"))
	require.Equal(t, "", gate.Inline(loggedIn(users.RoleCashier), admin, "delete", ""))

	// No user renders the fallback, even while loading and for an absent requirement.
	require.Equal(t, "fallback", gate.Inline(session.State{Loading: true}, users.AnyRole, "content", "fallback"))
	require.False(t, gate.Allowed(session.State{}, users.AnyRole))
	require.True(t, gate.Allowed(loggedIn(users.RoleWarehouse), users.AnyRole))
}

type fixedState session.State

func (f fixedState) State() session.State { return session.State(f) }

func TestGuard(t *testing.T) {
	protected := func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("secret")) }

	serve := func(t *testing.T, st session.State, req users.Requirement, logs *bytes.Buffer) *httptest.ResponseRecorder {
		t.Helper()
		g := gate.NewGuard(fixedState(st),
			gate.WithLoginPath("/login"),
			gate.WithUnauthorizedPath("/denied"),
			gate.WithLogger(zerolog.New(logs)),
		)
		rec := httptest.NewRecorder()
		g.Require(req)(protected)(rec, httptest.NewRequest(http.MethodGet, "/admin/users?page=2", nil))
		return rec
	}

	t.Run("loading suspends", func(t *testing.T) {
		var logs bytes.Buffer
		rec := serve(t, session.State{Loading: true, Token: "tok"}, users.Require(users.RoleAdmin), &logs)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "1", rec.Header().Get("Retry-After"))
		require.Empty(t, rec.Header().Get("Location"))
		require.NotContains(t, rec.Body.String(), "secret")
		require.Contains(t, rec.Body.String(), "Loading")
	})

	t.Run("logged out goes to login", func(t *testing.T) {
		var logs bytes.Buffer
		rec := serve(t, session.State{}, users.AnyRole, &logs)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login?next=%2Fadmin%2Fusers%3Fpage%3D2", rec.Header().Get("Location"))
		require.Empty(t, logs.String())
	})

	t.Run("wrong role is redirected and audited", func(t *testing.T) {
		var logs bytes.Buffer
		rec := serve(t, loggedIn(users.RoleCashier), users.Require(users.RoleAdmin, users.RoleWarehouse), &logs)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/denied", rec.Header().Get("Location"))

		out := logs.String()
		require.Contains(t, out, `"level":"warn"`)
		require.Contains(t, out, `"audit":true`)
		require.Contains(t, out, `"user":"alice"`)
		require.Contains(t, out, `"role":"CASHIER"`)
		require.Contains(t, out, `"required":"ADMIN|WAREHOUSE"`)
	})

	t.Run("permitted role renders", func(t *testing.T) {
		var logs bytes.Buffer
		rec := serve(t, loggedIn(users.RoleAdmin), users.Require(users.RoleAdmin), &logs)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "secret", rec.Body.String())
	})
}
