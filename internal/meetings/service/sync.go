package service

import (
	"context"
	"errors"

	confErrors "meetly/internal/conferencing/errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/metrics"
	"meetly/pkg/model"
)

// SyncSession refreshes the session mirror from the provider, including
// recordings and summary, and reflects the remote status on the meeting.
func (s *meetingService) SyncSession(ctx context.Context, id string) (*model.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFoundWithID("Conferencing session", id)
	}

	account, err := s.resolveSessionAccount(ctx, session)
	if err != nil {
		return nil, err
	}

	refreshed, err := s.gateway.RefreshSession(ctx, account, session)
	if err != nil {
		if confErrors.IsNotFound(err) {
			return nil, apperrors.NotFoundWithID("Conferencing session", session.ProviderID)
		}
		s.metrics.Count(metrics.RemoteFailure, map[string]string{"operation": "sync"})
		return nil, apperrors.RemoteFailure("Failed to refresh the conferencing session", err)
	}

	if err := s.applyStatus(ctx, meeting, refreshed.Status); err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// ApplyRemoteStatus reflects a provider status change on the owning meeting.
// Statuses without a local counterpart and disallowed transitions are ignored.
func (s *meetingService) ApplyRemoteStatus(ctx context.Context, providerSessionID string, status string) error {
	session, err := s.sessions.FindByProviderID(ctx, providerSessionID)
	if err != nil {
		if errors.Is(err, confErrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Conferencing session", providerSessionID)
		}
		return apperrors.Internal("Failed to load conferencing session", err)
	}

	meeting, err := s.find(ctx, session.MeetingID)
	if err != nil {
		return err
	}
	return s.applyStatus(ctx, meeting, status)
}

func (s *meetingService) applyStatus(ctx context.Context, meeting *model.Meeting, remoteStatus string) error {
	next, ok := model.MeetingStatusFromProvider(remoteStatus)
	if !ok || next == meeting.Status {
		return nil
	}
	if !meeting.Status.CanTransitionTo(next) {
		s.cfg.Log.Info("Ignoring remote status change",
			"meeting_id", meeting.ID,
			"status", meeting.Status,
			"remote_status", remoteStatus,
		)
		return nil
	}

	if err := s.repo.SetStatus(ctx, meeting.ID, next); err != nil {
		return s.translate(err, meeting.ID, "Failed to update meeting status")
	}
	s.cfg.Log.Info("Meeting status synced from provider",
		"meeting_id", meeting.ID,
		"from", meeting.Status,
		"to", next,
	)
	meeting.Status = next
	s.publish(ctx, model.EventMeetingUpdated, meeting)
	return nil
}
