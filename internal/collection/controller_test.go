package collection

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/debounce"
	"github.com/privacyops/console/internal/debounce/debouncetest"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/querycache"
)

type upstream struct {
	mu       sync.Mutex
	lists    []string
	patches  int
	failList bool
	failEdit bool
	status   string
}

func (u *upstream) listCalls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.lists...)
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/privacy-request":
		u.lists = append(u.lists, r.URL.RawQuery)
		if u.failList {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"detail":"upstream unavailable"}`)
			return
		}
		status := u.status
		if status == "" {
			status = "pending"
		}
		id := r.URL.Query().Get("request_id")
		if id == "" {
			id = "pri_1"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id": id, "status": status,
				"identity": map[string]string{"email": "subject@example.com"},
				"policy":   map[string]string{"name": "Access", "key": "access"},
			}},
			"total": 30,
			"page":  1,
			"size":  25,
		})
	case r.Method == http.MethodPatch:
		u.patches++
		if u.failEdit {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"detail":[{"loc":["body","external_id"],"msg":"already used","type":"value_error"}]}`)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = "pri_1"
		_ = json.NewEncoder(w).Encode(body)
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	up    *upstream
	clock *debouncetest.Clock
	cache *querycache.Cache
	ctrl  *Controller[api.PrivacyRequest]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := &upstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	clock := debouncetest.New()
	cache := querycache.New(querycache.NewMemoryStore(), querycache.Options{PointTTL: time.Minute})
	ctrl := New(PrivacyRequestResource(), Deps{
		Client: api.NewClient(srv.URL, api.StaticToken("tok"), 0),
		Cache:  cache,
	}, Options{Delay: debounce.DefaultDelay, Clock: clock})
	t.Cleanup(ctrl.Close)
	return &fixture{up: up, clock: clock, cache: cache, ctrl: ctrl}
}

func TestControllerDebouncesIntoOneFetch(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Dispatch(filter.SetSearch{Term: "pri_a"})
	f.clock.Advance(100 * time.Millisecond)
	f.ctrl.Dispatch(filter.SetSearch{Term: "pri_b"})
	f.clock.Advance(100 * time.Millisecond)
	f.ctrl.Dispatch(filter.SetSearch{Term: "pri_c"})
	assert.Empty(t, f.up.listCalls())
	assert.True(t, f.ctrl.Pending())

	f.clock.Advance(debounce.DefaultDelay)
	calls := f.up.listCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "request_id=pri_c")

	v := f.ctrl.View(context.Background())
	require.NoError(t, v.Err)
	assert.Equal(t, querycache.StatusSuccess, v.Status)
	assert.Equal(t, "pri_c", v.Items[0].ID)
	assert.Len(t, f.up.listCalls(), 1, "view reads the prefetched entry")
}

func TestControllerViewFooterAndMasking(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Dispatch(filter.SetPage{N: 2})
	f.ctrl.Flush()

	v := f.ctrl.View(context.Background())
	require.NoError(t, v.Err)
	assert.Equal(t, "Showing 26 to 30 of 30 results", v.Footer.Summary())
	assert.False(t, v.Footer.HasNext)
	assert.Equal(t, masked, v.Items[0].Identity.Email)

	f.ctrl.Dispatch(filter.SetRevealSensitive{Reveal: true})
	f.ctrl.Flush()
	v = f.ctrl.View(context.Background())
	assert.Equal(t, "subject@example.com", v.Items[0].Identity.Email)
	assert.Equal(t, 2, v.Filter.Page)
	assert.Len(t, f.up.listCalls(), 1, "reveal does not change the query")

	listing := f.ctrl.Listing(context.Background())
	require.Len(t, listing.Rows, 1)
	assert.Equal(t, "pri_1", listing.Rows[0].ID)
	assert.Len(t, listing.Rows[0].Cells, len(f.ctrl.Columns()))
}

func TestControllerErrorKeepsLastResultStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.ctrl.View(ctx)
	require.NoError(t, first.Err)

	f.up.mu.Lock()
	f.up.failList = true
	f.up.mu.Unlock()
	f.ctrl.Dispatch(filter.SetStatuses{Values: []string{"error"}})
	f.ctrl.Flush()

	v := f.ctrl.View(ctx)
	require.Error(t, v.Err)
	assert.Equal(t, "upstream unavailable", api.Message(v.Err))
	assert.Equal(t, querycache.StatusError, v.Status)
	assert.True(t, v.Stale)
	assert.Equal(t, first.Items, v.Items)
	assert.Equal(t, []string{"error"}, v.Filter.Statuses)
}

func TestControllerEditRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ctrl.Dispatch(filter.SetRevealSensitive{Reveal: true})
	f.ctrl.Flush()

	before, err := f.ctrl.Record(ctx, "pri_1")
	require.NoError(t, err)

	f.up.mu.Lock()
	f.up.failEdit = true
	f.up.mu.Unlock()
	err = f.ctrl.Edit(ctx, "pri_1", map[string]any{"external_id": "ext-9"})
	require.Error(t, err)
	assert.Equal(t, "external_id: already used", api.Message(err))

	after, err := f.ctrl.Record(ctx, "pri_1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.up.listCalls(), 2, "one list prefetch and one point lookup")
}

func TestControllerEditSuccessInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.View(ctx).Err)
	_, err := f.ctrl.Record(ctx, "pri_1")
	require.NoError(t, err)
	before := len(f.up.listCalls())

	require.NoError(t, f.ctrl.Edit(ctx, "pri_1", map[string]any{"external_id": "ext-1"}))
	require.NoError(t, f.ctrl.View(ctx).Err)
	_, err = f.ctrl.Record(ctx, "pri_1")
	require.NoError(t, err)
	assert.Len(t, f.up.listCalls(), before+2)
}

func TestControllerEditGuards(t *testing.T) {
	f := newFixture(t)
	err := f.ctrl.Edit(context.Background(), "pri_1", map[string]any{"status": "approved"})
	assert.ErrorIs(t, err, ErrFieldNotEditable)

	types := New(ConnectionTypeResource(), Deps{Cache: f.cache}, Options{Clock: f.clock})
	defer types.Close()
	assert.False(t, types.Editable())
	assert.ErrorIs(t, types.Edit(context.Background(), "postgres", map[string]any{"x": 1}), ErrReadOnly)
	assert.Equal(t, 100, types.State().Size)
}

func TestControllerApplyInvalidatesOnPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.View(ctx).Err)

	err := f.ctrl.Apply(ctx, func(context.Context, *api.Client) error {
		return &api.PartialFailureError{Succeeded: 1, Failed: []api.Failure{{Message: "nope"}}}
	})
	require.Error(t, err)
	require.NoError(t, f.ctrl.View(ctx).Err)
	assert.Len(t, f.up.listCalls(), 2)
}

func TestControllerExportParamsAndHydrate(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	f.ctrl.Hydrate(filter.State{Page: 3, Size: 50, Search: "pri_9", From: &from})

	assert.Equal(t, 3, f.ctrl.Committed().Page)
	params := f.ctrl.ExportParams()
	assert.Empty(t, params.Get("page"))
	assert.Empty(t, params.Get("size"))
	assert.Equal(t, "pri_9", params.Get("request_id"))
	assert.Equal(t, "2024-03-01T00:00:00.000Z", params.Get("created_gt"))
	assert.Equal(t, "true", params.Get("include_identities"))
}

func TestCatalogBuildsEveryResource(t *testing.T) {
	cache := querycache.New(querycache.NewMemoryStore(), querycache.Options{})
	for _, name := range Names() {
		c := Catalog[name](Deps{Cache: cache}, Options{Clock: debouncetest.New(), DefaultSize: 10})
		assert.Equal(t, name, c.Name())
		assert.NotEmpty(t, c.Title())
		assert.NotEmpty(t, c.Columns())
		c.Close()
	}
	assert.Equal(t, []string{ConnectionTypes, Connections, PrivacyRequests, Users}, Names())
}
