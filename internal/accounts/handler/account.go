package handler

import (
	"encoding/json"
	"net/http"

	"meetly/internal/accounts/service"
	httputil "meetly/pkg/http"
	"meetly/pkg/logger"
	"meetly/pkg/middleware"
	"meetly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AccountHandler manages conferencing credentials. Every route requires the
// settings permission; secrets never leave the service.
type AccountHandler struct {
	service service.AccountService
	log     *logger.Logger
}

func NewAccountHandler(service service.AccountService, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		log:     log,
	}
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.ConferencingAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteBadRequest", "error", writeErr)
		}
		return
	}

	account, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, account); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *AccountHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, account); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AccountHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	accounts, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, accounts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.ConferencingAccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteBadRequest", "error", writeErr)
		}
		return
	}

	account, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, account); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	_ = httputil.WriteNoContent(w)
}

func (h *AccountHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AccountHandler) RegisterRoutes(router *httprouter.Router) {
	manage := func(next httprouter.Handle) httprouter.Handle {
		return middleware.RequirePermission(middleware.PermissionManageSettings, next)
	}

	router.GET("/api/v1/conferencing/accounts", manage(h.GetAll))
	router.GET("/api/v1/conferencing/accounts/id/:id", manage(h.GetByID))
	router.POST("/api/v1/conferencing/accounts", manage(h.Create))
	router.PATCH("/api/v1/conferencing/accounts/id/:id", manage(h.Update))
	router.DELETE("/api/v1/conferencing/accounts/id/:id", manage(h.Delete))
}
