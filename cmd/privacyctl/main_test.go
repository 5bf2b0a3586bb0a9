package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"detail":"Incorrect password."}`)
				return
			}
			_, _ = io.WriteString(w, `{"user_data":{"id":"usr_1","username":"alice"},"token_data":{"access_token":"tok_cli"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/privacy-request":
			if r.Header.Get("Authorization") != "Bearer tok_cli" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)
				return
			}
			id := r.URL.Query().Get("request_id")
			if id == "" {
				id = "pri_1"
			}
			_, _ = io.WriteString(w, `{"items":[{"id":"`+id+`","status":"`+r.URL.Query().Get("status")+`","identity":{"email":"subject@example.com"},"policy":{"name":"Access"}}],"total":1,"page":1,"size":25}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Not found"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfilesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.toml")

	cfg, err := loadProfiles(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)

	cfg.Active = "staging"
	cfg.Profiles["staging"] = Profile{URL: "https://staging.example.com/api/v1", Username: "alice", Token: "tok"}
	require.NoError(t, saveProfiles(path, cfg))

	loaded, err := loadProfiles(path)
	require.NoError(t, err)
	name, prof, err := loaded.resolve("")
	require.NoError(t, err)
	assert.Equal(t, "staging", name)
	assert.Equal(t, "tok", prof.Token)

	_, _, err = loaded.resolve("prod")
	assert.Error(t, err)
}

func TestListValuesMapsFlags(t *testing.T) {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	addFilterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"-q", "pri_", "-s", "pending,approved", "--facet", "system_type=saas",
		"--page", "2", "--sort", "created_at", "--desc", "--reveal",
	}))

	v, err := listValues(flags)
	require.NoError(t, err)
	assert.Equal(t, "pri_", v.Get("search"))
	assert.Equal(t, []string{"pending", "approved"}, v["status"])
	assert.Equal(t, "saas", v.Get("system_type"))
	assert.Equal(t, "2", v.Get("page"))
	assert.False(t, v.Has("size"))
	assert.Equal(t, "created_at", v.Get("sort_field"))
	assert.Equal(t, "desc", v.Get("sort_direction"))
	assert.Equal(t, "true", v.Get("reveal"))

	bad := pflag.NewFlagSet("list", pflag.ContinueOnError)
	addFilterFlags(bad)
	require.NoError(t, bad.Parse([]string{"--facet", "saas"}))
	_, err = listValues(bad)
	assert.Error(t, err)
}

func TestRunListPrintsTable(t *testing.T) {
	srv := upstreamServer(t)
	ws, err := openWorkspace(Profile{URL: srv.URL, Token: "tok_cli"})
	require.NoError(t, err)
	defer ws.Reset()

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), &out, ws, "privacy-requests", map[string][]string{"status": {"pending"}}))
	text := out.String()
	assert.Contains(t, text, "REQUEST ID")
	assert.Contains(t, text, "pri_1")
	assert.Contains(t, text, "pending")
	assert.Contains(t, text, "********")
	assert.Contains(t, text, "Showing 1 to 1 of 1 results")
}

func TestRunListUnknownResource(t *testing.T) {
	srv := upstreamServer(t)
	ws, err := openWorkspace(Profile{URL: srv.URL, Token: "tok_cli"})
	require.NoError(t, err)
	defer ws.Reset()

	err = runList(context.Background(), io.Discard, ws, "invoices", nil)
	assert.Error(t, err)
}

func TestRunShowJSON(t *testing.T) {
	srv := upstreamServer(t)
	ws, err := openWorkspace(Profile{URL: srv.URL, Token: "tok_cli"})
	require.NoError(t, err)
	defer ws.Reset()

	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	var out bytes.Buffer
	require.NoError(t, runShow(context.Background(), &out, ws, "privacy-requests", "pri_42"))
	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "pri_42", record["id"])
}

func TestOpenWorkspaceRequiresToken(t *testing.T) {
	_, err := openWorkspace(Profile{URL: "http://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestLoginStoresToken(t *testing.T) {
	srv := upstreamServer(t)
	path := filepath.Join(t.TempDir(), "profiles.toml")

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader("secret\n"))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"--config", path, "login", "--url", srv.URL, "-u", "alice"})
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Signed in as alice")

	cfg, err := loadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, defaultProfile, cfg.Active)
	assert.Equal(t, "tok_cli", cfg.Profiles[defaultProfile].Token)
	assert.Equal(t, srv.URL, cfg.Profiles[defaultProfile].URL)
}
