package api

import (
	"context"
	"net/http"
	"net/url"
)

// ListConnections fetches one page of connection configurations.
func (c *Client) ListConnections(ctx context.Context, query url.Values) (Page[Connection], error) {
	return List[Connection](ctx, c, PathConnection, query)
}

// GetConnection returns the connection with key.
func (c *Client) GetConnection(ctx context.Context, key string) (*Connection, error) {
	var out Connection
	if err := c.doJSON(ctx, http.MethodGet, PathConnection+"/"+url.PathEscape(key), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchConnections upserts connection configurations in bulk.
func (c *Client) PatchConnections(ctx context.Context, conns []map[string]any) (BulkResult[Connection], error) {
	var res BulkResult[Connection]
	if err := c.doJSON(ctx, http.MethodPatch, PathConnection, nil, conns, &res); err != nil {
		return res, err
	}
	return res, checkBulk(res)
}

// UpdateConnection patches fields of the connection with key.
func (c *Client) UpdateConnection(ctx context.Context, key string, fields map[string]any) (*Connection, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["key"] = key
	res, err := c.PatchConnections(ctx, []map[string]any{payload})
	if err != nil {
		return nil, err
	}
	if len(res.Succeeded) == 0 {
		return nil, ErrNotFound
	}
	return &res.Succeeded[0], nil
}

// DeleteConnection removes the connection with key.
func (c *Client) DeleteConnection(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, PathConnection+"/"+url.PathEscape(key), nil, nil, nil)
}

// ListConnectionTypes fetches the connector catalogue.
func (c *Client) ListConnectionTypes(ctx context.Context, query url.Values) (Page[ConnectionType], error) {
	return List[ConnectionType](ctx, c, PathConnectionType, query)
}
