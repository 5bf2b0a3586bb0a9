// Package console serves the collection views of the privacy console over
// HTTP: filtered lists, single records, edits, bulk review and exports.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/platform/httpx"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/view"
	"github.com/privacyops/console/internal/workspace"
	"github.com/privacyops/console/jobs"
)

// ExportQueue accepts asynchronous CSV exports.
type ExportQueue interface {
	EnqueueExport(ctx context.Context, payload jobs.ExportPayload) (string, error)
}

// Handler wires the collection endpoints.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	registry  *workspace.Registry
	csrf      *shared.CSRFManager
	exports   ExportQueue
	parser    *filter.Parser
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs a Handler. exports may be nil, which disables
// asynchronous exports.
func NewHandler(logger *slog.Logger, templates *view.Engine, registry *workspace.Registry, csrf *shared.CSRFManager, exports ExportQueue) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		registry:  registry,
		csrf:      csrf,
		exports:   exports,
		parser:    filter.NewParser(),
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers the console routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.RequireWorkspace)
		r.Get("/", h.home)
		r.Route("/{resource}", func(r chi.Router) {
			r.Get("/", h.list)
			r.Post("/filters", h.applyFilter)
			r.Get("/export", h.download)
			r.Post("/export", h.enqueueExport)
			r.Post("/approve", h.review(true))
			r.Post("/deny", h.review(false))
			r.Get("/{id}", h.show)
			r.Patch("/{id}", h.edit)
			r.Post("/{id}", h.edit)
		})
	})
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"resources": collection.Names()})
		return
	}
	h.render(w, r, http.StatusOK, "pages/home", "Privacy Console", "", nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	actions, err := h.parser.ParseValues(r.URL.Query(), coll.Rules())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if len(actions) > 0 {
		coll.Dispatch(actions...)
	}
	coll.Flush()
	listing := coll.Listing(r.Context())

	if httpx.WantsJSON(r) {
		if listing.Err != nil && !listing.Stale {
			h.fail(w, r, listing.Err, "")
			return
		}
		out := struct {
			collection.Listing
			Error string `json:"error,omitempty"`
		}{Listing: listing}
		if listing.Err != nil {
			out.Error = messageOf(classify(listing.Err))
		}
		httpx.JSON(w, http.StatusOK, out)
		return
	}

	status := http.StatusOK
	if listing.Err != nil {
		h.logger.Warn("list view", slog.String("resource", coll.Name()), slog.Any("error", listing.Err))
		if !listing.Stale {
			status = statusOf(classify(listing.Err))
		}
	}
	h.render(w, r, status, "pages/collection", coll.Title(), coll.Name(), newListPage(coll, listing))
}

type filterResponse struct {
	Filter    filter.State `json:"filter"`
	Committed filter.State `json:"committed"`
	Pending   bool         `json:"pending"`
}

func (h *Handler) applyFilter(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	var in filter.Input
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			h.fail(w, r, err, "")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrValidation, err), "")
			return
		}
		in = formInput(r)
	}
	action, err := h.parser.Parse(in, coll.Rules())
	if err != nil {
		h.fail(w, r, err, "/"+coll.Name())
		return
	}
	state := coll.Dispatch(action)
	if !httpx.WantsJSON(r) && !httpx.IsJSON(r) {
		http.Redirect(w, r, "/"+coll.Name(), http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusAccepted, filterResponse{Filter: state, Committed: coll.Committed(), Pending: coll.Pending()})
}

func formInput(r *http.Request) filter.Input {
	in := filter.Input{
		Name:      r.PostFormValue("action"),
		Term:      r.PostFormValue("term"),
		Values:    r.PostForm["values"],
		Date:      r.PostFormValue("date"),
		Key:       r.PostFormValue("key"),
		Field:     r.PostFormValue("field"),
		Direction: r.PostFormValue("direction"),
	}
	in.Page, _ = strconv.Atoi(r.PostFormValue("page"))
	in.Size, _ = strconv.Atoi(r.PostFormValue("size"))
	in.Reveal, _ = strconv.ParseBool(r.PostFormValue("reveal"))
	return in
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	record, err := coll.Lookup(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, record)
		return
	}
	page, err := newRecordPage(coll, id, record)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	h.render(w, r, http.StatusOK, "pages/record", coll.Title(), coll.Name(), page)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	back := "/" + coll.Name() + "/" + id

	fields, err := h.editFields(r, coll, id)
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	if len(fields) == 0 {
		h.fail(w, r, fmt.Errorf("%w: no fields to update", httpx.ErrValidation), back)
		return
	}
	if err := coll.Edit(r.Context(), id, fields); err != nil {
		h.fail(w, r, err, back)
		return
	}
	h.logger.Info("record updated",
		slog.String("resource", coll.Name()),
		slog.String("id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if httpx.WantsJSON(r) || httpx.IsJSON(r) {
		record, err := coll.Lookup(r.Context(), id)
		if err != nil {
			httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
			return
		}
		httpx.JSON(w, http.StatusOK, record)
		return
	}
	flash(r, shared.FlashSuccess, "Saved.")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// editFields reads the submitted fields. Form values for fields that are
// booleans on the current record are converted back to booleans.
func (h *Handler) editFields(r *http.Request, coll collection.Collection, id string) (map[string]any, error) {
	if httpx.IsJSON(r) {
		fields := map[string]any{}
		if err := httpx.DecodeJSON(r, &fields); err != nil {
			return nil, err
		}
		return fields, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	current := map[string]any{}
	if record, err := coll.Lookup(r.Context(), id); err == nil {
		current, _ = recordFields(record)
	}
	fields := map[string]any{}
	for _, name := range coll.Fields() {
		if _, ok := r.PostForm[name]; !ok {
			continue
		}
		raw := strings.TrimSpace(r.PostFormValue(name))
		if _, isBool := current[name].(bool); isBool {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be true or false", httpx.ErrValidation, name)
			}
			fields[name] = b
			continue
		}
		fields[name] = raw
	}
	return fields, nil
}

type reviewInput struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=64"`
	Reason string   `json:"reason" validate:"max=500"`
}

type reviewResponse struct {
	Succeeded int           `json:"succeeded"`
	Failed    []api.Failure `json:"failed"`
}

// review approves or denies the selected privacy requests.
func (h *Handler) review(approve bool) http.HandlerFunc {
	verb, past := "deny", "Denied"
	if approve {
		verb, past = "approve", "Approved"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		coll, ok := h.collection(w, r)
		if !ok {
			return
		}
		back := "/" + coll.Name()
		if coll.Name() != collection.PrivacyRequests {
			h.fail(w, r, fmt.Errorf("%w: %s", api.ErrNotFound, verb), "")
			return
		}
		var in reviewInput
		if httpx.IsJSON(r) {
			if err := httpx.DecodeJSON(r, &in); err != nil {
				h.fail(w, r, err, back)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrValidation, err), back)
				return
			}
			in = reviewInput{IDs: r.PostForm["id"], Reason: r.PostFormValue("reason")}
		}
		if err := h.validator.Struct(in); err != nil {
			h.fail(w, r, fmt.Errorf("%w: select at least one request", httpx.ErrValidation), back)
			return
		}

		var succeeded int
		err := coll.Apply(r.Context(), func(ctx context.Context, c *api.Client) error {
			var res api.BulkResult[api.PrivacyRequest]
			var err error
			if approve {
				res, err = c.ApprovePrivacyRequests(ctx, in.IDs)
			} else {
				res, err = c.DenyPrivacyRequests(ctx, in.IDs, in.Reason)
			}
			succeeded = len(res.Succeeded)
			return err
		})

		var partial *api.PartialFailureError
		switch {
		case err == nil:
			h.logger.Info("privacy requests reviewed", slog.String("action", verb), slog.Int("count", succeeded))
			if httpx.WantsJSON(r) || httpx.IsJSON(r) {
				httpx.JSON(w, http.StatusOK, reviewResponse{Succeeded: succeeded, Failed: []api.Failure{}})
				return
			}
			flash(r, shared.FlashSuccess, fmt.Sprintf("%s %d %s.", past, succeeded, plural(succeeded, "request", "requests")))
			http.Redirect(w, r, back, http.StatusSeeOther)
		case errors.As(err, &partial):
			h.logger.Warn("privacy requests partially reviewed", slog.String("action", verb), slog.Int("failed", len(partial.Failed)))
			if httpx.WantsJSON(r) || httpx.IsJSON(r) {
				httpx.JSON(w, http.StatusOK, reviewResponse{Succeeded: partial.Succeeded, Failed: partial.Failed})
				return
			}
			if partial.Succeeded > 0 {
				flash(r, shared.FlashSuccess, fmt.Sprintf("%s %d %s.", past, partial.Succeeded, plural(partial.Succeeded, "request", "requests")))
			}
			flash(r, shared.FlashError, api.Message(err))
			http.Redirect(w, r, back, http.StatusSeeOther)
		default:
			h.fail(w, r, err, back)
		}
	}
}

// download streams the CSV of the current filters. It never touches the
// query cache.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	body, name, err := coll.Download(r.Context())
	if err != nil {
		h.fail(w, r, err, "/"+coll.Name())
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream csv", slog.String("resource", coll.Name()), slog.Any("error", err))
	}
}

type exportResponse struct {
	RequestID string `json:"request_id"`
	TaskID    string `json:"task_id"`
	FileName  string `json:"file_name"`
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	back := "/" + coll.Name()
	if h.exports == nil {
		h.fail(w, r, ErrExportsDisabled, back)
		return
	}
	ws := WorkspaceFromContext(r.Context())
	payload := jobs.ExportPayload{
		RequestID: uuid.NewString(),
		Resource:  coll.Name(),
		Path:      coll.Path(),
		Query:     coll.ExportParams(),
		Token:     ws.Token(),
		FileName:  fmt.Sprintf("%s-%s.csv", coll.Name(), h.now().UTC().Format("20060102-150405")),
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		payload.RequestedBy = sess.Username()
	}
	taskID, err := h.exports.EnqueueExport(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue export", slog.String("resource", coll.Name()), slog.Any("error", err))
		h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrUpstream, err), back)
		return
	}
	h.logger.Info("export queued", slog.String("request_id", payload.RequestID), slog.String("resource", coll.Name()))

	if httpx.WantsJSON(r) || httpx.IsJSON(r) {
		httpx.JSON(w, http.StatusAccepted, exportResponse{RequestID: payload.RequestID, TaskID: taskID, FileName: payload.FileName})
		return
	}
	flash(r, shared.FlashInfo, "Export queued as "+payload.FileName+".")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// collection resolves the {resource} parameter in the request's workspace.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (collection.Collection, bool) {
	ws := WorkspaceFromContext(r.Context())
	if ws == nil {
		h.unauthenticated(w, r, "")
		return nil, false
	}
	coll, err := ws.Collection(chi.URLParam(r, "resource"))
	if err != nil {
		h.fail(w, r, err, "")
		return nil, false
	}
	return coll, true
}

// fail reports err. JSON clients get problem details; browsers get a flash
// and a redirect to back, or an error page when back is empty.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	classified := classify(err)
	status := statusOf(classified)
	if status >= http.StatusInternalServerError {
		h.logger.Error("console request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		h.logger.Debug("console request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if httpx.WantsJSON(r) || httpx.IsJSON(r) {
		httpx.RespondError(w, classified)
		return
	}
	if back != "" {
		flash(r, shared.FlashError, messageOf(classified))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	h.render(w, r, status, "pages/error", http.StatusText(status), "", messageOf(classified))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title, active string, data any) {
	sess := shared.SessionFromContext(r.Context())
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   h.csrf.EnsureToken(sess),
		CurrentPath: r.URL.Path,
		Nav:         navItems(active),
		Data:        data,
	}
	if sess != nil {
		td.Flash = sess.PopFlash()
		td.Username = sess.Username()
	}
	if err := h.templates.RenderStatus(w, status, name, td); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(kind, message)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
