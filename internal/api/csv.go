package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DownloadCSV requests the CSV rendition of a list. The caller closes the
// returned reader. The file name comes from Content-Disposition and falls
// back to "<resource>.csv".
func (c *Client) DownloadCSV(ctx context.Context, resourcePath string, query url.Values) (io.ReadCloser, string, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("download_csv", "true")

	req, err := c.newRequest(ctx, http.MethodGet, resourcePath, q, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, "", parseAPIError(resp.StatusCode, body)
	}
	return resp.Body, attachmentName(resp.Header.Get("Content-Disposition"), resourcePath), nil
}

func attachmentName(disposition, resourcePath string) string {
	fallback := strings.Trim(path.Base(resourcePath), "/") + ".csv"
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	name := path.Base(strings.ReplaceAll(params["filename"], "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
