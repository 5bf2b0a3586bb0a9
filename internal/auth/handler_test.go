package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/auth"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/view"
	_ "github.com/privacyops/console/testing"
)

type fakeUpstream struct {
	mu      sync.Mutex
	logins  int
	logouts []string
}

func (f *fakeUpstream) Login(ctx context.Context, creds api.Credentials) (*api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if creds.Password != "correct horse" {
		return nil, &api.APIError{StatusCode: http.StatusUnauthorized, Detail: "Incorrect password."}
	}
	return &api.Session{User: api.User{ID: "usr_1", Username: creds.Username}, Token: "tok_1"}, nil
}

func (f *fakeUpstream) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, token)
	return nil
}

type fakeWorkspaces struct {
	opened  map[string]string
	dropped []string
}

func (f *fakeWorkspaces) Open(sessionID, token string, snapshot []byte) error {
	if f.opened == nil {
		f.opened = make(map[string]string)
	}
	f.opened[sessionID] = token
	return nil
}

func (f *fakeWorkspaces) Drop(sessionID string) { f.dropped = append(f.dropped, sessionID) }

type fixture struct {
	handler    *auth.Handler
	sessions   *shared.SessionManager
	csrf       *shared.CSRFManager
	upstream   *fakeUpstream
	workspaces *fakeWorkspaces
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	upstream := &fakeUpstream{}
	workspaces := &fakeWorkspaces{}
	service := auth.NewService(upstream, workspaces, nil)
	return &fixture{
		handler:    auth.NewHandler(nil, service, templates, sessionManager, csrfManager),
		sessions:   sessionManager,
		csrf:       csrfManager,
		upstream:   upstream,
		workspaces: workspaces,
	}
}

// serve runs req through the auth routes with the session loaded and
// committed around it.
func (f *fixture) serve(t *testing.T, req *http.Request, sessionID string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sessionID})
	}
	sess, err := f.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	router := chi.NewRouter()
	router.Route("/auth", f.handler.MountRoutes)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if err := f.sessions.Commit(ctx, res, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func (f *fixture) primeSession(t *testing.T) (string, string) {
	t.Helper()
	res, sess := f.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	token := sess.Get(shared.CSRFSessionKey)
	if token == "" {
		t.Fatalf("csrf token not set")
	}
	return sess.ID, token
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t)
	f.primeSession(t)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	sessionID, token := f.primeSession(t)

	res, sess := f.serve(t, postForm("/auth/login", url.Values{
		"username":   {"operator"},
		"password":   {"wrong"},
		"csrf_token": {token},
	}), sessionID)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password.") {
		t.Fatalf("expected error message in response")
	}
	if !strings.Contains(res.Body.String(), `value="operator"`) {
		t.Fatalf("expected username to be kept in the form")
	}
	if sess.Token() != "" {
		t.Fatalf("token must not be stored on failure")
	}
	if len(f.workspaces.opened) != 0 {
		t.Fatalf("workspace opened on failed login")
	}
}

func TestLoginMissingFieldsSkipsUpstream(t *testing.T) {
	f := newFixture(t)
	sessionID, token := f.primeSession(t)

	res, _ := f.serve(t, postForm("/auth/login", url.Values{"username": {"operator"}, "csrf_token": {token}}), sessionID)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if f.upstream.logins != 0 {
		t.Fatalf("upstream called with incomplete credentials")
	}
}

func TestLoginStoresTokenAndOpensWorkspace(t *testing.T) {
	f := newFixture(t)
	sessionID, token := f.primeSession(t)

	res, sess := f.serve(t, postForm("/auth/login", url.Values{
		"username":   {"operator"},
		"password":   {"correct horse"},
		"csrf_token": {token},
	}), sessionID)

	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", res.Code, res.Header().Get("Location"))
	}
	if sess.Token() != "tok_1" || sess.User() != "usr_1" || sess.Username() != "operator" {
		t.Fatalf("session not signed in: %q %q %q", sess.Token(), sess.User(), sess.Username())
	}
	if f.workspaces.opened[sessionID] != "tok_1" {
		t.Fatalf("workspace not opened for session: %v", f.workspaces.opened)
	}

	// The signed-in session survives a reload from redis.
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sessionID})
	reloaded, err := f.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Token() != "tok_1" {
		t.Fatalf("token not persisted")
	}
	flash := reloaded.PopFlash()
	if flash == nil || flash.Kind != shared.FlashSuccess {
		t.Fatalf("expected welcome flash, got %+v", flash)
	}
}

func TestLogoutRevokesAndDropsWorkspace(t *testing.T) {
	f := newFixture(t)
	sessionID, token := f.primeSession(t)
	f.serve(t, postForm("/auth/login", url.Values{
		"username":   {"operator"},
		"password":   {"correct horse"},
		"csrf_token": {token},
	}), sessionID)

	res, _ := f.serve(t, postForm("/auth/logout", url.Values{"csrf_token": {token}}), sessionID)

	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login, got %d", res.Code)
	}
	if len(f.upstream.logouts) != 1 || f.upstream.logouts[0] != "tok_1" {
		t.Fatalf("upstream logout not called with token: %v", f.upstream.logouts)
	}
	if len(f.workspaces.dropped) != 1 || f.workspaces.dropped[0] != sessionID {
		t.Fatalf("workspace not dropped: %v", f.workspaces.dropped)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sessionID})
	reloaded, err := f.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Token() != "" {
		t.Fatalf("session survived logout")
	}
}

func TestAPIUpstreamLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.PathLogin:
			if r.Header.Get("Authorization") != "" {
				t.Errorf("login must be anonymous")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_data":  map[string]any{"id": "usr_9", "username": "root"},
				"token_data": map[string]any{"access_token": "tok_9"},
			})
		case api.PathLogout:
			if r.Header.Get("Authorization") != "Bearer tok_9" {
				t.Errorf("logout without bearer: %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	upstream := auth.NewAPIUpstream(api.NewClient(srv.URL, api.StaticToken("stale"), time.Second))
	sess, err := upstream.Login(context.Background(), api.Credentials{Username: "root", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token != "tok_9" || sess.User.ID != "usr_9" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if err := upstream.Logout(context.Background(), "tok_9"); err != nil {
		t.Fatalf("logout: %v", err)
	}
}
