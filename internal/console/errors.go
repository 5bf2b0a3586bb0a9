package console

import (
	"errors"
	"net/http"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/platform/httpx"
	"github.com/privacyops/console/internal/workspace"
)

// ErrExportsDisabled is returned when no job queue is configured.
var ErrExportsDisabled = errors.New("console: asynchronous exports disabled")

// classify maps domain and upstream errors to a response status and a
// user-facing message.
func classify(err error) error {
	var apiErr *api.APIError
	var partial *api.PartialFailureError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workspace.ErrUnknownResource), errors.Is(err, api.ErrNotFound):
		return httpx.WithStatus(http.StatusNotFound, "Not found.", err)
	case errors.Is(err, filter.ErrInvalidAction), errors.Is(err, collection.ErrFieldNotEditable), errors.Is(err, httpx.ErrValidation):
		return httpx.WithStatus(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, collection.ErrReadOnly):
		return httpx.WithStatus(http.StatusMethodNotAllowed, "This resource cannot be edited.", err)
	case errors.Is(err, ErrExportsDisabled):
		return httpx.WithStatus(http.StatusServiceUnavailable, "Background exports are not available.", err)
	case errors.As(err, &partial):
		return httpx.WithStatus(http.StatusConflict, api.Message(err), err)
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status >= http.StatusInternalServerError || status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return httpx.WithStatus(status, api.Message(err), err)
	default:
		return httpx.WithStatus(http.StatusBadGateway, api.DefaultMessage, err)
	}
}

// statusOf returns the response status of a classified error.
func statusOf(err error) int {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return http.StatusInternalServerError
}

// messageOf returns the user-facing text of a classified error.
func messageOf(err error) string {
	var se *httpx.StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return api.DefaultMessage
}
