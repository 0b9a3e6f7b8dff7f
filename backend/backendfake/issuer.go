package backendfake

import (
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/pkg/errors"
)

const defaultTokenTTL = 8 * time.Hour

// issuer signs and checks HS256 session tokens and tracks which are live.
type issuer struct {
	key     []byte
	ttl     time.Duration
	nowTime func() time.Time

	mu   sync.Mutex
	live map[string]struct{} // jti
}

func newIssuer() *issuer {
	return &issuer{
		key:     []byte(uuid.NewString()),
		ttl:     defaultTokenTTL,
		nowTime: time.Now,
		live:    make(map[string]struct{}),
	}
}

func (i *issuer) issue(p *users.Profile) (string, error) {
	now := i.nowTime()
	jti := uuid.New().String()
	// sub is the username, which clients match against the user listing.
	claims := jwtlib.MapClaims{
		"sub":     p.Username,
		"user_id": p.ID,
		"role":    string(p.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(i.ttl).Unix(),
		"jti":     jti,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", errors.Wrap(err, "[issuer.issue] sign")
	}

	i.mu.Lock()
	i.live[jti] = struct{}{}
	i.mu.Unlock()
	return signed, nil
}

// verify checks signature, expiry and revocation and returns the claims.
func (i *issuer) verify(raw string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	keyFunc := func(*jwtlib.Token) (interface{}, error) { return i.key, nil }
	_, err := jwtlib.ParseWithClaims(raw, claims, keyFunc,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(i.nowTime),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[issuer.verify]")
	}

	jti, _ := claims["jti"].(string)
	i.mu.Lock()
	_, ok := i.live[jti]
	i.mu.Unlock()
	if !ok {
		return nil, errors.New("[issuer.verify] token revoked")
	}
	return claims, nil
}

func (i *issuer) revokeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.live = make(map[string]struct{})
}
