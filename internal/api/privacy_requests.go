package api

import (
	"context"
	"net/http"
	"net/url"
)

// ListPrivacyRequests fetches one page of privacy requests.
func (c *Client) ListPrivacyRequests(ctx context.Context, query url.Values) (Page[PrivacyRequest], error) {
	return List[PrivacyRequest](ctx, c, PathPrivacyRequest, query)
}

// GetPrivacyRequest looks a request up by id. The upstream exposes no point
// endpoint, so this filters the list by request_id.
func (c *Client) GetPrivacyRequest(ctx context.Context, id string) (*PrivacyRequest, error) {
	q := url.Values{}
	q.Set("request_id", id)
	q.Set("include_identities", "true")
	page, err := c.ListPrivacyRequests(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if page.Items[i].ID == id {
			return &page.Items[i], nil
		}
	}
	return nil, ErrNotFound
}

// UpdatePrivacyRequest patches editable fields of a request.
func (c *Client) UpdatePrivacyRequest(ctx context.Context, id string, fields map[string]any) (*PrivacyRequest, error) {
	var out PrivacyRequest
	if err := c.doJSON(ctx, http.MethodPatch, PathPrivacyRequest+"/"+url.PathEscape(id), nil, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApprovePrivacyRequests approves ids in bulk.
func (c *Client) ApprovePrivacyRequests(ctx context.Context, ids []string) (BulkResult[PrivacyRequest], error) {
	body := map[string]any{"request_ids": ids}
	return c.administrate(ctx, "approve", body)
}

// DenyPrivacyRequests denies ids in bulk with an optional reason.
func (c *Client) DenyPrivacyRequests(ctx context.Context, ids []string, reason string) (BulkResult[PrivacyRequest], error) {
	body := map[string]any{"request_ids": ids}
	if reason != "" {
		body["reason"] = reason
	}
	return c.administrate(ctx, "deny", body)
}

func (c *Client) administrate(ctx context.Context, verb string, body map[string]any) (BulkResult[PrivacyRequest], error) {
	var res BulkResult[PrivacyRequest]
	if err := c.doJSON(ctx, http.MethodPatch, PathPrivacyRequest+"/administrate/"+verb, nil, body, &res); err != nil {
		return res, err
	}
	return res, checkBulk(res)
}
