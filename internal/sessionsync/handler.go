// Package sessionsync applies provider session status changes, delivered on a
// Kafka topic, to the meetings that own those sessions.
package sessionsync

import (
	"context"
	"strings"

	apperrors "meetly/pkg/errors"
	"meetly/pkg/kafka"
	"meetly/pkg/logger"
	"meetly/pkg/model"
)

// StatusApplier is the part of the meeting service the consumer drives.
type StatusApplier interface {
	ApplyRemoteStatus(ctx context.Context, providerSessionID string, status string) error
}

type Handler struct {
	meetings StatusApplier
	log      *logger.Logger
}

func NewHandler(meetings StatusApplier, log *logger.Logger) *Handler {
	return &Handler{
		meetings: meetings,
		log:      log,
	}
}

// Handle is a kafka.MessageHandler. Undecodable payloads and unknown sessions
// are permanent failures; everything else is retried.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.SessionStatusEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("invalid session status payload", err)
	}

	event.ProviderSessionID = strings.TrimSpace(event.ProviderSessionID)
	event.Status = strings.ToLower(strings.TrimSpace(event.Status))
	if event.ProviderSessionID == "" {
		event.ProviderSessionID = msg.Key
	}
	if event.ProviderSessionID == "" || event.Status == "" {
		return kafka.NewPermanentError("session status event is missing provider_session_id or status", kafka.ErrInvalidMessage)
	}

	err := h.meetings.ApplyRemoteStatus(ctx, event.ProviderSessionID, event.Status)
	switch {
	case err == nil:
		h.log.Info("Applied session status",
			"provider_session_id", event.ProviderSessionID,
			"status", event.Status,
			"event_id", msg.GetEventID(),
		)
		return nil
	case apperrors.HasCode(err, apperrors.CodeNotFound):
		return kafka.NewPermanentError("no meeting owns session "+event.ProviderSessionID, err)
	case apperrors.HasCode(err, apperrors.CodeValidation), apperrors.HasCode(err, apperrors.CodeInvalidInput):
		return kafka.NewPermanentError("session status rejected", err)
	default:
		return kafka.NewTransientError("failed to apply session status", err)
	}
}
