package handler

import (
	"context"
	"errors"
	"net/http"

	"meetly/internal/conferencing"
	confErrors "meetly/internal/conferencing/errors"
	apperrors "meetly/pkg/errors"
	httputil "meetly/pkg/http"
	"meetly/pkg/logger"
	"meetly/pkg/middleware"
	"meetly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AccountResolver returns the account with id, or the first configured
// account when id is empty.
type AccountResolver interface {
	Resolve(ctx context.Context, id string) (*model.ConferencingAccount, error)
}

type Provider interface {
	Authenticate(ctx context.Context, account *model.ConferencingAccount) error
	GetSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*conferencing.RemoteSession, error)
	ListSessions(ctx context.Context, account *model.ConferencingAccount) (*conferencing.SessionList, error)
	GetSessionSummary(ctx context.Context, account *model.ConferencingAccount, sessionUUID string) (*conferencing.SessionSummary, error)
	GetPastSessionDetails(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*conferencing.PastSessionDetails, error)
	GetRecordings(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*conferencing.Recordings, error)
}

// ProviderHandler exposes read-only provider calls for operators. Every
// route takes an optional account_id query parameter.
type ProviderHandler struct {
	accounts AccountResolver
	provider Provider
	log      *logger.Logger
}

func NewProviderHandler(accounts AccountResolver, provider Provider, log *logger.Logger) *ProviderHandler {
	return &ProviderHandler{
		accounts: accounts,
		provider: provider,
		log:      log,
	}
}

func (h *ProviderHandler) Authenticate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	account, ok := h.account(w, r, "Authenticate")
	if !ok {
		return
	}

	if err := h.provider.Authenticate(r.Context(), account); err != nil {
		h.writeError(w, "Authenticate", translate(err, "authenticate"))
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{"account_id": account.ID, "authenticated": true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Authenticate", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ProviderHandler) ListSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	account, ok := h.account(w, r, "ListSessions")
	if !ok {
		return
	}

	sessions, err := h.provider.ListSessions(r.Context(), account)
	h.respond(w, "ListSessions", sessions, err)
}

func (h *ProviderHandler) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account, ok := h.account(w, r, "GetSession")
	if !ok {
		return
	}

	session, err := h.provider.GetSession(r.Context(), account, ps.ByName("session_id"))
	h.respond(w, "GetSession", session, err)
}

func (h *ProviderHandler) GetPastSessionDetails(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account, ok := h.account(w, r, "GetPastSessionDetails")
	if !ok {
		return
	}

	details, err := h.provider.GetPastSessionDetails(r.Context(), account, ps.ByName("session_id"))
	h.respond(w, "GetPastSessionDetails", details, err)
}

func (h *ProviderHandler) GetRecordings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account, ok := h.account(w, r, "GetRecordings")
	if !ok {
		return
	}

	recordings, err := h.provider.GetRecordings(r.Context(), account, ps.ByName("session_id"))
	h.respond(w, "GetRecordings", recordings, err)
}

// GetSummary takes the session UUID as a query parameter; provider UUIDs may
// contain slashes.
func (h *ProviderHandler) GetSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sessionUUID := r.URL.Query().Get("uuid")
	if sessionUUID == "" {
		h.writeError(w, "GetSummary", apperrors.InvalidInput("uuid parameter is required"))
		return
	}

	account, ok := h.account(w, r, "GetSummary")
	if !ok {
		return
	}

	summary, err := h.provider.GetSessionSummary(r.Context(), account, sessionUUID)
	h.respond(w, "GetSummary", summary, err)
}

func (h *ProviderHandler) account(w http.ResponseWriter, r *http.Request, handler string) (*model.ConferencingAccount, bool) {
	account, err := h.accounts.Resolve(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		h.writeError(w, handler, err)
		return nil, false
	}
	return account, true
}

func (h *ProviderHandler) respond(w http.ResponseWriter, handler string, data any, err error) {
	if err != nil {
		h.log.Warn("Provider call failed", "handler", handler, "error", err)
		h.writeError(w, handler, translate(err, handler))
		return
	}
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func translate(err error, operation string) error {
	var remote *confErrors.RemoteError
	switch {
	case confErrors.IsNotFound(err):
		return apperrors.NotFound("Conferencing session")
	case errors.Is(err, confErrors.ErrCredentialsMissing):
		return apperrors.ProviderUnconfigured("The conferencing account has incomplete credentials")
	case errors.As(err, &remote):
		return apperrors.RemoteFailure("Conferencing provider rejected "+operation, err)
	}
	return apperrors.RemoteFailure("Conferencing provider unavailable", err)
}

func (h *ProviderHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ProviderHandler) RegisterRoutes(router *httprouter.Router) {
	manage := func(next httprouter.Handle) httprouter.Handle {
		return middleware.RequirePermission(middleware.PermissionManageSettings, next)
	}

	router.POST("/api/v1/conferencing/authenticate", manage(h.Authenticate))
	router.GET("/api/v1/conferencing/sessions", manage(h.ListSessions))
	router.GET("/api/v1/conferencing/sessions/:session_id", manage(h.GetSession))
	router.GET("/api/v1/conferencing/sessions/:session_id/past", manage(h.GetPastSessionDetails))
	router.GET("/api/v1/conferencing/sessions/:session_id/recordings", manage(h.GetRecordings))
	router.GET("/api/v1/conferencing/summary", manage(h.GetSummary))
}
