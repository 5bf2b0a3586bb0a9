package console

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/privacyops/console/internal/platform/httpx"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/workspace"
)

// RequireWorkspace binds the signed-in session's workspace to the request
// and saves its filter snapshot into the session before the response starts.
// Anonymous or expired sessions are sent to the login page.
func (h *Handler) RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.Token() == "" {
			h.unauthenticated(w, r, "")
			return
		}
		ws, err := h.registry.Open(sess.ID, sess.Token(), sess.Workspace())
		if errors.Is(err, workspace.ErrExpired) {
			h.logger.Info("session token expired", slog.String("session", sess.ID))
			sess.SignOut()
			h.unauthenticated(w, r, "Your session has expired. Please sign in again.")
			return
		}
		if err != nil {
			h.logger.Error("open workspace", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}

		sw := &snapshotWriter{ResponseWriter: w, save: func() {
			data, err := ws.Snapshot()
			if err != nil {
				h.logger.Warn("snapshot workspace", slog.Any("error", err))
				return
			}
			sess.SetWorkspace(data)
		}}
		next.ServeHTTP(sw, r.WithContext(contextWithWorkspace(r.Context(), ws)))
		sw.once.Do(sw.save)
	})
}

func (h *Handler) unauthenticated(w http.ResponseWriter, r *http.Request, message string) {
	if httpx.WantsJSON(r) {
		detail := message
		if detail == "" {
			detail = shared.ErrUnauthenticated.Error()
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashInfo, message)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// snapshotWriter runs save once, right before the first byte of the response.
type snapshotWriter struct {
	http.ResponseWriter
	save func()
	once sync.Once
}

func (w *snapshotWriter) WriteHeader(code int) {
	w.once.Do(w.save)
	w.ResponseWriter.WriteHeader(code)
}

func (w *snapshotWriter) Write(b []byte) (int, error) {
	w.once.Do(w.save)
	return w.ResponseWriter.Write(b)
}

func (w *snapshotWriter) Flush() {
	w.once.Do(w.save)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *snapshotWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
