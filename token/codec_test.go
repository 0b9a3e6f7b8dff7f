package token_test

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/token"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return raw
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("reads subject, role and expiry without verifying the signature", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{
			"sub":     "alice",
			"role":    "ADMIN",
			"user_id": float64(7),
			"exp":     exp.Unix(),
		})

		claims, err := token.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, "alice", claims.Subject)
		require.Equal(t, users.RoleAdmin, claims.Role)
		require.Equal(t, "7", claims.UserID)
		require.True(t, claims.ExpiresAt.Equal(exp))
		require.False(t, claims.Expired(time.Now()))
		require.True(t, claims.Expired(exp.Add(time.Second)))
	})

	t.Run("role claim is optional", func(t *testing.T) {
		claims, err := token.Decode(signed(t, jwtlib.MapClaims{"sub": "bob"}))
		require.NoError(t, err)
		require.Empty(t, claims.Role)
		require.True(t, claims.ExpiresAt.IsZero())
		require.False(t, claims.Expired(time.Now()))
	})

	t.Run("tampered signature still decodes", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"sub": "carol"})
		claims, err := token.Decode(raw[:len(raw)-2] + "xx")
		require.NoError(t, err)
		require.Equal(t, "carol", claims.Subject)
	})
}

func TestDecode_Malformed(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	arrayPayload := base64.RawURLEncoding.EncodeToString([]byte(`["sub"]`))
	badSub := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":42}`))
	noSub := base64.RawURLEncoding.EncodeToString([]byte(`{"role":"ADMIN","exp":4102444800}`))
	blankSub := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"  "}`))

	cases := map[string]string{
		"empty":              "",
		"one segment":        "abc",
		"two segments":       "abc.def",
		"four segments":      "a.b.c.d",
		"invalid base64":     header + ".!!!." + "sig",
		"payload not json":   header + "." + notJSON + ".sig",
		"payload not object": header + "." + arrayPayload + ".sig",
		"header not json":    notJSON + "." + badSub + ".sig",
		"subject wrong type": header + "." + badSub + ".sig",
		"subject missing":    header + "." + noSub + ".sig",
		"subject blank":      header + "." + blankSub + ".sig",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var claims *token.Claims
			var err error
			require.NotPanics(t, func() { claims, err = token.Decode(raw) })
			require.Nil(t, claims)

			var decodeErr *token.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		})
	}
}
