package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/console/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderLoginWithFlash(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusUnauthorized, "pages/login", TemplateData{
		Title:     "Sign in",
		CSRFToken: "tok",
		Flash:     &shared.FlashMessage{Kind: shared.FlashError, Message: "Invalid username or password."},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `name="csrf_token" value="tok"`)
	assert.Contains(t, body, "flash-error")
	assert.Contains(t, body, "Invalid username or password.")
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/missing", TemplateData{})
	assert.Error(t, err)
	assert.Empty(t, rr.Body.String())
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/home", TemplateData{}))
}
