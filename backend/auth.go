package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/transport"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/pkg/errors"
)

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type verifyPINRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

type verifyPINResponse struct {
	Valid bool `json:"valid"`
}

type pinLoginRequest struct {
	PIN string `json:"pin"`
}

// PINLoginResponse is the body of a successful PIN login.
type PINLoginResponse struct {
	AccessToken string          `json:"access_token"`
	User        *users.Identity `json:"user"`
}

// Login exchanges a username and password for a session token. Any non-2xx
// answer means the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(transport.WithoutCollapse(ctx), http.MethodPost, LoginPath,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return "", err
	}

	var out TokenResponse
	if err := c.do(req, &out); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Client.Login] %s", statusErr.Error())
		}
		return "", errors.Wrap(err, "[Client.Login]")
	}
	if out.AccessToken == "" {
		return "", apperrors.Wrapf(apperrors.ErrInternal, "[Client.Login] response carried no access token")
	}
	return out.AccessToken, nil
}

// Profiles lists all user profiles. It needs an authenticated session.
func (c *Client) Profiles(ctx context.Context) ([]users.Profile, error) {
	var out []users.Profile
	if err := c.getJSON(ctx, UsersPath, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.Profiles]")
	}
	return out, nil
}

// ValidatePIN asks the backend whether pin belongs to userID. A non-2xx
// answer is an invalid PIN, not an error. A 401 here never ends the session.
func (c *Client) ValidatePIN(ctx context.Context, userID, pin string) (bool, error) {
	var out verifyPINResponse
	err := c.sendJSON(transport.WithoutCollapse(ctx), http.MethodPost, VerifyPINPath, verifyPINRequest{UserID: userID, PIN: pin}, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return false, nil
		}
		return false, errors.Wrap(err, "[Client.ValidatePIN]")
	}
	return out.Valid, nil
}

// PINLogin exchanges a floor-staff PIN for a session token and its user.
func (c *Client) PINLogin(ctx context.Context, pin string) (string, *users.Identity, error) {
	var out PINLoginResponse
	err := c.sendJSON(transport.WithoutCollapse(ctx), http.MethodPost, PINLoginPath, pinLoginRequest{PIN: pin}, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", nil, apperrors.Wrapf(apperrors.ErrInvalidPIN, "[Client.PINLogin] %s", statusErr.Error())
		}
		return "", nil, errors.Wrap(err, "[Client.PINLogin]")
	}
	if out.AccessToken == "" {
		return "", nil, apperrors.Wrapf(apperrors.ErrInternal, "[Client.PINLogin] response carried no access token")
	}
	return out.AccessToken, out.User, nil
}
