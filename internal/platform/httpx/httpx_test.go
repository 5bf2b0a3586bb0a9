package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestRespondErrorSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrConflict, http.StatusConflict},
		{ErrUpstream, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, tc.status, decodeProblem(t, rr).Status)
	}
}

func TestRespondErrorStatusError(t *testing.T) {
	rr := httptest.NewRecorder()
	err := fmt.Errorf("edit: %w", WithStatus(http.StatusUnprocessableEntity, "name: field required", errors.New("HTTP 422")))
	RespondError(rr, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "Unprocessable Entity", p.Title)
	assert.Equal(t, "name: field required", p.Detail)
}

func TestStatusErrorUnwraps(t *testing.T) {
	err := WithStatus(http.StatusNotFound, "missing", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrNotFound.Error(), err.Error())
}

func TestWantsJSON(t *testing.T) {
	cases := map[string]bool{
		"":                                  false,
		"text/html,application/xhtml+xml":   false,
		"application/json":                  true,
		"application/json, text/plain, */*": true,
		"text/html;q=0.9, application/json": false,
	}
	for accept, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Accept", accept)
		assert.Equal(t, want, WantsJSON(req), accept)
	}

	req := httptest.NewRequest(http.MethodGet, "/users?format=json", nil)
	assert.True(t, WantsJSON(req))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.True(t, IsJSON(req))
	assert.ErrorIs(t, DecodeJSON(req, &target), ErrValidation)
}
