package api

import (
	"context"
	"net/http"
	"net/url"
)

// ListUsers fetches one page of users.
func (c *Client) ListUsers(ctx context.Context, query url.Values) (Page[User], error) {
	return List[User](ctx, c, PathUser, query)
}

// GetUser returns the user with id.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, PathUser+"/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser registers a new user.
func (c *Client) CreateUser(ctx context.Context, in UserCreate) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodPost, PathUser, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser edits the profile fields of the user with id.
func (c *Client) UpdateUser(ctx context.Context, id string, fields map[string]any) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodPut, PathUser+"/"+url.PathEscape(id), nil, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes the user with id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, PathUser+"/"+url.PathEscape(id), nil, nil, nil)
}
