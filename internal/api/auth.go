package api

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoToken is returned when a login response carries no access token.
var ErrNoToken = errors.New("api: login returned no token")

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var resp struct {
		User      User `json:"user_data"`
		TokenData struct {
			AccessToken string `json:"access_token"`
		} `json:"token_data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, PathLogin, nil, creds, &resp); err != nil {
		return nil, err
	}
	if resp.TokenData.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &Session{User: resp.User, Token: resp.TokenData.AccessToken}, nil
}

// Logout revokes the current token upstream.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, PathLogout, nil, nil, nil)
}
