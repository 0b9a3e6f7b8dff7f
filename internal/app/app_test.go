package app_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-pos-console/backend/backendfake"
	"github.com/jrsteele09/go-pos-console/internal/app"
	"github.com/jrsteele09/go-pos-console/internal/config"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) (*backendfake.Backend, string) {
	t.Helper()
	fake := backendfake.New()
	require.NoError(t, backendfake.Seed(fake))
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func TestNew_RestoresSessionAcrossRestarts(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			_, url := setupBackend(t)
			t.Setenv("STORAGE_DRIVER", driver)
			t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "session."+driver))
			t.Setenv("API_BASE_URL", url)
			cfg := config.New()
			ctx := context.Background()

			first, err := app.New(cfg, app.WithLogger(zerolog.Nop()))
			require.NoError(t, err)
			require.NoError(t, first.Session.Initialize(ctx))
			require.NoError(t, first.Session.Login(ctx, "warehouse", "warehouse123"))
			require.NoError(t, first.Close())

			second, err := app.New(cfg, app.WithLogger(zerolog.Nop()))
			require.NoError(t, err)
			defer second.Close()
			require.True(t, second.Session.State().Loading)
			require.NoError(t, second.Session.Initialize(ctx))

			st := second.Session.State()
			require.True(t, st.LoggedIn())
			require.Equal(t, users.RoleWarehouse, st.User.Role)
			require.False(t, st.User.IsOffline)

			products, err := second.Backend.Products(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, products)
		})
	}
}

func TestNew_CollapseIsWired(t *testing.T) {
	fake, url := setupBackend(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	a, err := app.New(config.New(), app.WithAPIBaseURL(url), app.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Session.Initialize(ctx))
	require.NoError(t, a.Session.Login(ctx, "admin", "admin123"))

	fake.RevokeSessions()
	_, err = a.Backend.ListSales(ctx)
	require.Error(t, err)
	require.False(t, a.Session.State().LoggedIn())
}

func TestNew_BadStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "floppy")
	_, err := app.New(config.New())
	require.Error(t, err)
}
