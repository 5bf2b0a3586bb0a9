package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Username string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.Token() != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{}, nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	creds := api.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Username: creds.Username}

	if err := h.validator.Struct(creds); err != nil {
		flash := &shared.FlashMessage{Kind: shared.FlashError, Message: "Username and password are required."}
		h.renderLogin(w, r, http.StatusBadRequest, data, flash)
		return
	}

	user, err := h.service.SignIn(r.Context(), sess, creds)
	switch {
	case err == nil:
		h.logger.Info("user signed in", slog.String("user", user.ID), slog.String("request_id", middleware.GetReqID(r.Context())))
		sess.AddFlash(shared.FlashSuccess, "Welcome back, "+sess.Username()+".")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, ErrInvalidCredentials):
		flash := &shared.FlashMessage{Kind: shared.FlashError, Message: "Invalid username or password."}
		h.renderLogin(w, r, http.StatusUnauthorized, data, flash)
	default:
		h.logger.Error("sign in", slog.Any("error", err))
		flash := &shared.FlashMessage{Kind: shared.FlashError, Message: api.Message(err)}
		h.renderLogin(w, r, http.StatusBadGateway, data, flash)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.service.SignOut(r.Context(), sess)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData, flash *shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	if flash == nil && sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   h.csrfManager.EnsureToken(sess),
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/login", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
