package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"meetly/internal/meetings/service"
	apperrors "meetly/pkg/errors"
	httputil "meetly/pkg/http"
	"meetly/pkg/logger"
	"meetly/pkg/model"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	PublicPrefix = "/api/v1/public"

	qrSize = 256
)

// PublicHandler serves the unauthenticated check-in flow.
type PublicHandler struct {
	service service.MeetingService
	baseURL string
	log     *logger.Logger
}

func NewPublicHandler(service service.MeetingService, baseURL string, log *logger.Logger) *PublicHandler {
	return &PublicHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// publicMeeting is what anyone holding the meeting UUID may see.
type publicMeeting struct {
	UUID      string              `json:"uuid"`
	Topic     string              `json:"topic"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Type      model.MeetingType   `json:"type"`
	Status    model.MeetingStatus `json:"status"`
	Location  string              `json:"location,omitempty"`
}

func (h *PublicHandler) GetMeeting(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.GetByUUID(r.Context(), ps.ByName("uuid"))
	if err != nil {
		h.writeError(w, "GetMeeting", err)
		return
	}

	view := publicMeeting{
		UUID:      meeting.UUID,
		Topic:     meeting.Topic,
		StartTime: meeting.StartTime,
		EndTime:   meeting.EndTime,
		Type:      meeting.Type,
		Status:    meeting.Status,
	}
	if meeting.Location != nil {
		view.Location = meeting.Location.Name
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetMeeting", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PublicHandler) CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var input model.AttendanceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CheckIn", "operation", "WriteBadRequest", "error", writeErr)
		}
		return
	}

	attendance, err := h.service.RecordAttendance(r.Context(), ps.ByName("uuid"), "", &input)
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}

	if err := httputil.WriteCreated(w, attendance); err != nil {
		h.log.Error("failed to write created response", "handler", "CheckIn", "operation", "WriteCreated", "error", err)
	}
}

// QRCode renders a PNG pointing at the check-in page of the meeting.
func (h *PublicHandler) QRCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.GetByUUID(r.Context(), ps.ByName("uuid"))
	if err != nil {
		h.writeError(w, "QRCode", err)
		return
	}

	png, err := qrcode.Encode(h.CheckInURL(meeting.UUID), qrcode.Medium, qrSize)
	if err != nil {
		h.writeError(w, "QRCode", apperrors.Internal("Failed to render QR code", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error("failed to write QR code", "handler", "QRCode", "error", err)
	}
}

func (h *PublicHandler) CheckInURL(uuid string) string {
	return h.baseURL + "/attendance/" + uuid
}

func (h *PublicHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PublicHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET(PublicPrefix+"/meetings/:uuid", h.GetMeeting)
	router.POST(PublicPrefix+"/meetings/:uuid/attendances", h.CheckIn)
	router.GET(PublicPrefix+"/meetings/:uuid/qrcode", h.QRCode)
}
