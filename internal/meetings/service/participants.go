package service

import (
	"context"
	"errors"

	userserrors "meetly/internal/users/errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/model"
)

const fieldParticipants = "participants"

// resolveRoster dedupes ids, drops the organizer and rejects users that do not
// exist or were removed.
func (s *meetingService) resolveRoster(ctx context.Context, organizerID string, ids []string) ([]string, error) {
	roster := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" || id == organizerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		roster = append(roster, id)
	}
	if len(roster) == 0 {
		return roster, nil
	}

	users, err := s.users.FindByIDs(ctx, roster)
	if err != nil {
		return nil, apperrors.Internal("Failed to load participants", err)
	}
	for _, id := range roster {
		user, ok := users[id]
		if !ok || user.IsDeleted() {
			return nil, apperrors.FieldValidation(fieldParticipants, "Participant "+id+" does not exist").
				WithDetails(map[string]any{"user_id": id})
		}
	}
	return roster, nil
}

func (s *meetingService) ListParticipants(ctx context.Context, id string) ([]*model.User, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	users, err := s.users.FindByIDs(ctx, meeting.Participants)
	if err != nil {
		return nil, apperrors.Internal("Failed to load participants", err)
	}

	participants := make([]*model.User, 0, len(meeting.Participants))
	for _, userID := range meeting.Participants {
		if user, ok := users[userID]; ok {
			participants = append(participants, user)
		}
	}
	return participants, nil
}

// Invite adds userID to the roster. Inviting someone already on it is a no-op.
func (s *meetingService) Invite(ctx context.Context, id string, userID string) (*model.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == meeting.OrganizerID {
		return nil, apperrors.FieldValidation("user_id", "The organizer already belongs to the meeting")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.FieldValidation("user_id", "The selected user does not exist")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	if user.IsDeleted() {
		return nil, apperrors.FieldValidation("user_id", "The selected user does not exist")
	}

	if !meeting.HasParticipant(userID) {
		meeting.Participants = append(meeting.Participants, userID)
		if err := s.repo.SetParticipants(ctx, id, meeting.Participants); err != nil {
			return nil, s.translate(err, id, "Failed to invite participant")
		}
		s.cfg.Log.Info("Participant invited", "meeting_id", id, "user_id", userID)
		s.publish(ctx, model.EventMeetingUpdated, meeting)
	}

	if err := s.attachRelations(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (s *meetingService) RemoveParticipant(ctx context.Context, id string, userID string) (*model.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !meeting.HasParticipant(userID) {
		return nil, apperrors.NotFoundWithID("Participant", userID)
	}

	roster := make([]string, 0, len(meeting.Participants)-1)
	for _, p := range meeting.Participants {
		if p != userID {
			roster = append(roster, p)
		}
	}
	if err := s.repo.SetParticipants(ctx, id, roster); err != nil {
		return nil, s.translate(err, id, "Failed to remove participant")
	}
	meeting.Participants = roster
	s.cfg.Log.Info("Participant removed", "meeting_id", id, "user_id", userID)
	s.publish(ctx, model.EventMeetingUpdated, meeting)

	if err := s.attachRelations(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}
