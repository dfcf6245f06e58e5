package handler

import (
	"encoding/json"
	"net/http"

	"meetly/internal/meetings/service"
	apperrors "meetly/pkg/errors"
	httputil "meetly/pkg/http"
	"meetly/pkg/logger"
	"meetly/pkg/middleware"
	"meetly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MeetingHandler struct {
	service service.MeetingService
	log     *logger.Logger
}

func NewMeetingHandler(service service.MeetingService, log *logger.Logger) *MeetingHandler {
	return &MeetingHandler{
		service: service,
		log:     log,
	}
}

type inviteRequest struct {
	UserID string `json:"user_id"`
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var input model.MeetingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeBadRequest(w, "Create")
		return
	}

	meeting, err := h.service.Create(r.Context(), principal.UserID, &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, meeting); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *MeetingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, principal, ok := h.authorize(w, r, ps.ByName("id"), "GetByID", canView)
	if !ok {
		return
	}

	redact(principal, meeting)
	if err := httputil.WriteSuccess(w, meeting); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// GetAll lists meetings. Callers without the view permission only see the
// meetings they organize.
func (h *MeetingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "GetAll", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}
	if !principal.Can(middleware.PermissionViewMeetings) {
		filter.OrganizerID = principal.UserID
	}

	meetings, total, err := h.service.GetAll(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	redact(principal, meetings...)
	if err := httputil.WritePaginated(w, meetings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *MeetingHandler) Calendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Calendar", apperrors.Unauthorized("Authentication required"))
		return
	}

	start, err := httputil.ParseTimeParam(r, "start")
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}
	end, err := httputil.ParseTimeParam(r, "end")
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}
	if start == nil || end == nil {
		h.writeError(w, "Calendar", apperrors.InvalidInput("start and end are required"))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}
	if !principal.Can(middleware.PermissionViewMeetings) {
		filter.OrganizerID = principal.UserID
	}

	meetings, err := h.service.Calendar(r.Context(), *start, *end, filter)
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}

	redact(principal, meetings...)
	if err := httputil.WriteSuccess(w, meetings); err != nil {
		h.log.Error("failed to write success response", "handler", "Calendar", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.MeetingUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeBadRequest(w, "Update")
		return
	}

	_, principal, ok := h.authorize(w, r, ps.ByName("id"), "Update", canEdit)
	if !ok {
		return
	}

	meeting, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		if meeting != nil && apperrors.HasCode(err, apperrors.CodeRemoteFailure) {
			// The local update was committed; report it alongside the failure.
			redact(principal, meeting)
			err = apperrors.AsAppError(err).WithDetails(map[string]any{
				"meeting":       meeting,
				"local_changes": "saved",
			})
		}
		h.writeError(w, "Update", err)
		return
	}

	redact(principal, meeting)
	if err := httputil.WriteSuccess(w, meeting); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, _, ok := h.authorize(w, r, ps.ByName("id"), "Delete", canDelete); !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	_ = httputil.WriteNoContent(w)
}

func (h *MeetingHandler) ListParticipants(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, _, ok := h.authorize(w, r, ps.ByName("id"), "ListParticipants", canView); !ok {
		return
	}

	participants, err := h.service.ListParticipants(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ListParticipants", err)
		return
	}

	if err := httputil.WriteSuccess(w, participants); err != nil {
		h.log.Error("failed to write success response", "handler", "ListParticipants", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) Invite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		h.writeBadRequest(w, "Invite")
		return
	}

	_, principal, ok := h.authorize(w, r, ps.ByName("id"), "Invite", canEdit)
	if !ok {
		return
	}

	meeting, err := h.service.Invite(r.Context(), ps.ByName("id"), req.UserID)
	if err != nil {
		h.writeError(w, "Invite", err)
		return
	}

	redact(principal, meeting)
	if err := httputil.WriteSuccess(w, meeting); err != nil {
		h.log.Error("failed to write success response", "handler", "Invite", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, principal, ok := h.authorize(w, r, ps.ByName("id"), "RemoveParticipant", canEdit)
	if !ok {
		return
	}

	meeting, err := h.service.RemoveParticipant(r.Context(), ps.ByName("id"), ps.ByName("user_id"))
	if err != nil {
		h.writeError(w, "RemoveParticipant", err)
		return
	}

	redact(principal, meeting)
	if err := httputil.WriteSuccess(w, meeting); err != nil {
		h.log.Error("failed to write success response", "handler", "RemoveParticipant", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) Sync(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, principal, ok := h.authorize(w, r, ps.ByName("id"), "Sync", canEdit)
	if !ok {
		return
	}

	meeting, err := h.service.SyncSession(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Sync", err)
		return
	}

	redact(principal, meeting)
	if err := httputil.WriteSuccess(w, meeting); err != nil {
		h.log.Error("failed to write success response", "handler", "Sync", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) ListAttendances(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, _, ok := h.authorize(w, r, ps.ByName("id"), "ListAttendances", canViewAttendance); !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAttendances", err)
		return
	}

	attendances, total, err := h.service.ListAttendances(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListAttendances", err)
		return
	}

	if err := httputil.WritePaginated(w, attendances, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAttendances", "operation", "WritePaginated", "error", err)
	}
}

// authorize loads the meeting and applies allowed to the caller. On failure
// the response is already written.
func (h *MeetingHandler) authorize(w http.ResponseWriter, r *http.Request, id, handler string, allowed func(*middleware.Principal, *model.Meeting) bool) (*model.Meeting, *middleware.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return nil, nil, false
	}

	meeting, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, handler, err)
		return nil, nil, false
	}
	if !allowed(principal, meeting) {
		h.log.Warn("Meeting access denied", "handler", handler, "meeting_id", id, "user_id", principal.UserID)
		h.writeError(w, handler, apperrors.Forbidden("You are not allowed to perform this action on the meeting"))
		return nil, nil, false
	}
	return meeting, principal, true
}

func parseFilter(r *http.Request) (model.MeetingFilter, error) {
	query := r.URL.Query()
	filter := model.MeetingFilter{
		Topic:      query.Get("topic"),
		LocationID: query.Get("location_id"),
	}

	if raw := query.Get("type"); raw != "" {
		t, err := model.ParseMeetingType(raw)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid type parameter: " + raw)
		}
		filter.Type = t
	}
	if raw := query.Get("status"); raw != "" {
		s, err := model.ParseMeetingStatus(raw)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid status parameter: " + raw)
		}
		filter.Status = s
	}

	day, err := httputil.ParseTimeParam(r, "day")
	if err != nil {
		return filter, err
	}
	filter.Day = day
	return filter, nil
}

func (h *MeetingHandler) writeBadRequest(w http.ResponseWriter, handler string) {
	if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteBadRequest", "error", writeErr)
	}
}

func (h *MeetingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MeetingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/meetings", h.GetAll)
	router.GET("/api/v1/meetings/calendar", h.Calendar)
	router.POST("/api/v1/meetings", middleware.RequirePermission(middleware.PermissionCreateMeetings, h.Create))
	router.GET("/api/v1/meetings/id/:id", h.GetByID)
	router.PATCH("/api/v1/meetings/id/:id", h.Update)
	router.DELETE("/api/v1/meetings/id/:id", h.Delete)
	router.POST("/api/v1/meetings/id/:id/sync", h.Sync)
	router.GET("/api/v1/meetings/id/:id/participants", h.ListParticipants)
	router.POST("/api/v1/meetings/id/:id/participants", h.Invite)
	router.DELETE("/api/v1/meetings/id/:id/participants/:user_id", h.RemoveParticipant)
	router.GET("/api/v1/meetings/id/:id/attendances", h.ListAttendances)
}
