package service

import (
	"context"
	"errors"
	"strings"

	"meetly/internal/conferencing"
	confErrors "meetly/internal/conferencing/errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/metrics"
	"meetly/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// Create books a meeting. Online and hybrid meetings get a remote session on
// the first account with spare capacity; a failure anywhere leaves nothing
// behind locally.
func (s *meetingService) Create(ctx context.Context, organizerID string, input *model.MeetingInput) (*model.Meeting, error) {
	if organizerID == "" {
		return nil, apperrors.Unauthorized("An organizer is required to create a meeting")
	}
	if err := s.validator.ValidateInput(input); err != nil {
		return nil, s.validationError(err)
	}

	meetingType, _ := model.ParseMeetingType(input.Type)
	meeting := &model.Meeting{
		UUID:        uuid.NewString(),
		OrganizerID: organizerID,
		Topic:       strings.TrimSpace(input.Topic),
		Description: input.Description,
		StartTime:   input.StartTime,
		Duration:    input.Duration,
		Type:        meetingType,
		Status:      model.MeetingStatusScheduled,
		Notes:       input.Notes,
	}
	meeting.ComputeEndTime()

	if meetingType.RequiresLocation() {
		location, err := s.loadLocation(ctx, input.LocationID)
		if err != nil {
			return nil, err
		}
		meeting.LocationID = location.ID
		meeting.Location = location
	}

	participants, err := s.resolveRoster(ctx, organizerID, input.Participants)
	if err != nil {
		return nil, err
	}
	meeting.Participants = participants

	if err := s.checkLocation(ctx, meeting); err != nil {
		return nil, err
	}

	lock, err := s.acquireCreationLock(ctx)
	if err != nil {
		return nil, err
	}
	defer lock.release(ctx)

	var session *model.ConferencingSession
	var account *model.ConferencingAccount
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if session != nil {
			s.discardSession(ctx, account, session)
			session, account = nil, nil
		}
		meeting.ID = ""

		if err := s.checkLocation(sessCtx, meeting); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, meeting); err != nil {
			return apperrors.Internal("Failed to create meeting", err)
		}
		if !meeting.Type.RequiresSession() {
			return nil
		}

		created, selected, err := s.createSession(sessCtx, meeting, input.Password, input.Settings)
		if err != nil {
			return err
		}
		session, account = created, selected
		return lock.verify(ctx)
	})
	if err != nil {
		if session != nil {
			s.discardSession(ctx, account, session)
		}
		s.cfg.Log.Error("Failed to create meeting", "organizer_id", organizerID, "error", err)
		return nil, s.translate(err, "", "Failed to create meeting")
	}

	meeting.Session = session
	if account != nil {
		meeting.HostKey = account.HostKey
	}
	meeting.Organizer = s.loadOrganizer(ctx, organizerID)

	s.metrics.Count(metrics.MeetingCreated, map[string]string{"type": string(meeting.Type)})
	s.cfg.Log.Info("Meeting created",
		"meeting_id", meeting.ID,
		"type", meeting.Type,
		"location_id", meeting.LocationID,
		"start_time", meeting.StartTime,
		"end_time", meeting.EndTime,
	)
	s.publish(ctx, model.EventMeetingCreated, meeting)
	return meeting, nil
}

// Update applies a partial update. Type changes allocate or tear down the
// remote session inside the transaction. Pushing changed fields to an
// existing session happens after commit; when that push fails the updated
// meeting is returned together with a RemoteFailure.
func (s *meetingService) Update(ctx context.Context, id string, updates *model.MeetingUpdate) (*model.Meeting, error) {
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, s.validationError(err)
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, err := s.mergeUpdate(ctx, existing, updates)
	if err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	needsSession := merged.Type.RequiresSession()
	allocate := needsSession && session == nil
	teardown := !needsSession && session != nil
	push := needsSession && session != nil && (sessionFieldsChanged(existing, merged) || updates.Settings != nil)

	if err := s.checkLocation(ctx, merged); err != nil {
		return nil, err
	}

	var lock *creationLock
	if allocate {
		lock, err = s.acquireCreationLock(ctx)
		if err != nil {
			return nil, err
		}
		defer lock.release(ctx)
	}

	var sessionAccount *model.ConferencingAccount
	if teardown || push {
		sessionAccount, err = s.resolveSessionAccount(ctx, session)
		if err != nil {
			return nil, err
		}
	}

	var created *model.ConferencingSession
	var createdAccount *model.ConferencingAccount
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if created != nil {
			s.discardSession(ctx, createdAccount, created)
			created, createdAccount = nil, nil
		}

		if allocate {
			if err := s.checkLocation(sessCtx, merged); err != nil {
				return err
			}
		}
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return s.translate(err, id, "Failed to update meeting")
		}

		switch {
		case allocate:
			newSession, account, err := s.createSession(sessCtx, merged, "", updates.Settings)
			if err != nil {
				return err
			}
			created, createdAccount = newSession, account
			if err := lock.verify(ctx); err != nil {
				return err
			}
		case teardown:
			if err := s.sessions.DeleteByMeetingID(sessCtx, id); err != nil && !errors.Is(err, confErrors.ErrNotFound) {
				return apperrors.Internal("Failed to delete conferencing session", err)
			}
			if err := s.gateway.DeleteSession(sessCtx, sessionAccount, session.ProviderID); err != nil && !confErrors.IsNotFound(err) {
				s.metrics.Count(metrics.RemoteFailure, map[string]string{"operation": "delete"})
				return apperrors.RemoteFailure("Failed to delete the conferencing session", err)
			}
		}
		return nil
	})
	if err != nil {
		if created != nil {
			s.discardSession(ctx, createdAccount, created)
		}
		s.cfg.Log.Error("Failed to update meeting", "meeting_id", id, "error", err)
		return nil, s.translate(err, id, "Failed to update meeting")
	}

	var remoteErr error
	if push {
		params := conferencing.NewSessionParams(merged, s.gateway.Timezone(), "", updates.Settings)
		if err := s.gateway.UpdateSession(ctx, sessionAccount, session.ProviderID, params); err != nil {
			s.metrics.Count(metrics.RemoteFailure, map[string]string{"operation": "update"})
			s.cfg.Log.Error("Failed to update conferencing session",
				"meeting_id", id,
				"provider_id", session.ProviderID,
				"error", err,
			)
			remoteErr = apperrors.RemoteFailure("Meeting updated but the conferencing session could not be updated", err)
		}
	}

	if err := s.attachRelations(ctx, merged); err != nil {
		return nil, err
	}

	s.metrics.Count(metrics.MeetingUpdated, map[string]string{"type": string(merged.Type)})
	s.cfg.Log.Info("Meeting updated",
		"meeting_id", id,
		"type", merged.Type,
		"status", merged.Status,
		"session_allocated", allocate,
		"session_removed", teardown,
	)
	s.publish(ctx, model.EventMeetingUpdated, merged)

	if remoteErr != nil {
		return merged, remoteErr
	}
	return merged, nil
}

// Delete tears down the remote session best-effort, then removes the meeting
// with its session mirror and attendance records.
func (s *meetingService) Delete(ctx context.Context, id string) error {
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	session, err := s.findSession(ctx, id)
	if err != nil {
		return err
	}
	if session != nil {
		s.deleteRemoteSession(ctx, session)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return s.translate(err, id, "Failed to delete meeting")
		}
		if err := s.sessions.DeleteByMeetingID(sessCtx, id); err != nil && !errors.Is(err, confErrors.ErrNotFound) {
			return apperrors.Internal("Failed to delete conferencing session", err)
		}
		if err := s.attendances.DeleteByMeeting(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete attendances", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete meeting", "meeting_id", id, "error", err)
		return s.translate(err, id, "Failed to delete meeting")
	}

	existing.Session = session
	s.metrics.Count(metrics.MeetingDeleted, map[string]string{"type": string(existing.Type)})
	s.cfg.Log.Info("Meeting deleted", "meeting_id", id)
	s.publish(ctx, model.EventMeetingDeleted, existing)
	return nil
}

// deleteRemoteSession never fails: the local delete proceeds regardless.
func (s *meetingService) deleteRemoteSession(ctx context.Context, session *model.ConferencingSession) {
	account, err := s.resolveSessionAccount(ctx, session)
	if err != nil {
		s.cfg.Log.Warn("No account to delete conferencing session with",
			"provider_id", session.ProviderID,
			"error", err,
		)
		return
	}

	if err := s.gateway.DeleteSession(ctx, account, session.ProviderID); err != nil && !confErrors.IsNotFound(err) {
		s.metrics.Count(metrics.RemoteFailure, map[string]string{"operation": "delete"})
		s.cfg.Log.Error("Failed to delete conferencing session, deleting meeting anyway",
			"meeting_id", session.MeetingID,
			"provider_id", session.ProviderID,
			"account_id", account.ID,
			"error", err,
		)
	}
}

// mergeUpdate returns a copy of existing with updates applied and derived
// fields recomputed.
func (s *meetingService) mergeUpdate(ctx context.Context, existing *model.Meeting, updates *model.MeetingUpdate) (*model.Meeting, error) {
	merged := *existing
	merged.Participants = append([]string(nil), existing.Participants...)
	merged.Location, merged.Session, merged.Organizer, merged.HostKey = nil, nil, nil, ""

	if updates.Topic != nil {
		merged.Topic = strings.TrimSpace(*updates.Topic)
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.Duration != nil {
		merged.Duration = *updates.Duration
	}
	if updates.Notes != nil {
		merged.Notes = *updates.Notes
	}
	if updates.Type != nil {
		merged.Type, _ = model.ParseMeetingType(*updates.Type)
	}
	if updates.LocationID != nil {
		merged.LocationID = *updates.LocationID
	}
	if updates.Status != nil {
		status, _ := model.ParseMeetingStatus(*updates.Status)
		if !existing.Status.CanTransitionTo(status) {
			return nil, apperrors.FieldValidation("status",
				"A "+string(existing.Status)+" meeting cannot become "+string(status))
		}
		merged.Status = status
	}
	merged.ComputeEndTime()

	if !merged.Type.RequiresLocation() {
		merged.LocationID = ""
	} else {
		if merged.LocationID == "" {
			return nil, apperrors.FieldValidation(apperrors.FieldLocationID, "location_id is required for offline and hybrid meetings")
		}
		if merged.LocationID != existing.LocationID {
			if _, err := s.loadLocation(ctx, merged.LocationID); err != nil {
				return nil, err
			}
		}
	}

	if updates.Participants != nil {
		participants, err := s.resolveRoster(ctx, existing.OrganizerID, *updates.Participants)
		if err != nil {
			return nil, err
		}
		merged.Participants = participants
	}
	return &merged, nil
}

// sessionFieldsChanged reports whether any field mirrored on the remote
// session differs.
func sessionFieldsChanged(before, after *model.Meeting) bool {
	return before.Topic != after.Topic ||
		before.Description != after.Description ||
		!before.StartTime.Equal(after.StartTime) ||
		before.Duration != after.Duration ||
		before.Type != after.Type
}
