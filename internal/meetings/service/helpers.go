package service

import (
	"context"
	"errors"
	"time"

	accountserrors "meetly/internal/accounts/errors"
	"meetly/internal/conferencing"
	confErrors "meetly/internal/conferencing/errors"
	locationserrors "meetly/internal/locations/errors"
	meetingserrors "meetly/internal/meetings/errors"
	"meetly/internal/scheduler"
	userserrors "meetly/internal/users/errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/kafka"
	"meetly/pkg/metrics"
	"meetly/pkg/model"
	"meetly/pkg/validation"
)

const releaseTimeout = 5 * time.Second

func (s *meetingService) find(ctx context.Context, id string) (*model.Meeting, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Meeting ID cannot be empty")
	}

	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve meeting")
	}
	return meeting, nil
}

func (s *meetingService) translate(err error, id, message string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, meetingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Meeting", id)
	case errors.Is(err, meetingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid meeting ID format")
	}
	return apperrors.Internal(message, err)
}

func (s *meetingService) validationError(err error) error {
	s.cfg.Log.Warn("Meeting validation failed", "error", err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.AppError("Meeting validation failed")
	}
	return apperrors.Validation("Meeting validation failed", map[string]any{"error": err.Error()})
}

// loadLocation resolves a location id given on input. An unknown id is a
// validation failure on location_id.
func (s *meetingService) loadLocation(ctx context.Context, id string) (*model.MeetingLocation, error) {
	location, err := s.locations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, locationserrors.ErrNotFound) || errors.Is(err, locationserrors.ErrInvalidID) {
			return nil, apperrors.FieldValidation(apperrors.FieldLocationID, "The selected location does not exist")
		}
		return nil, apperrors.Internal("Failed to load meeting location", err)
	}
	return location, nil
}

// checkLocation rejects an interval overlapping another booking of the location.
func (s *meetingService) checkLocation(ctx context.Context, meeting *model.Meeting) error {
	if !meeting.Type.RequiresLocation() {
		return nil
	}

	conflict, err := s.checker.HasConflict(ctx, scheduler.ResourceLocation, meeting.LocationID, meeting.StartTime, meeting.EndTime, meeting.ID)
	if err != nil {
		return apperrors.Internal("Failed to check location availability", err)
	}
	if conflict {
		s.metrics.Count(metrics.LocationConflict, nil)
		s.cfg.Log.Info("Location conflict detected",
			"location_id", meeting.LocationID,
			"start_time", meeting.StartTime,
			"end_time", meeting.EndTime,
			"exclude_meeting_id", meeting.ID,
		)
		return apperrors.SchedulingConflict(apperrors.FieldStartTime, "The selected location is already booked for this time").
			WithDetails(map[string]any{apperrors.FieldLocationID: meeting.LocationID})
	}
	return nil
}

// allocate picks the account that will host a new session for meeting.
func (s *meetingService) allocate(ctx context.Context, meeting *model.Meeting) (*model.ConferencingAccount, error) {
	account, err := s.allocator.SelectAccount(ctx, meeting.StartTime, meeting.EndTime, meeting.ID)
	switch {
	case err == nil:
		s.metrics.Count(metrics.AccountAllocated, map[string]string{"account": account.ID})
		return account, nil
	case errors.Is(err, scheduler.ErrProviderUnconfigured):
		s.metrics.Count(metrics.ProviderUnconfigured, nil)
		return nil, apperrors.ProviderUnconfigured("No conferencing account is configured")
	case errors.Is(err, scheduler.ErrCapacityExhausted):
		s.metrics.Count(metrics.CapacityExhausted, nil)
		s.cfg.Log.Info("Conferencing capacity exhausted", "start_time", meeting.StartTime, "end_time", meeting.EndTime)
		return nil, apperrors.CapacityExhausted("Every conferencing account is at its concurrent session limit for this time")
	}
	return nil, apperrors.Internal("Failed to allocate conferencing account", err)
}

// createSession allocates an account and creates the remote session bound to
// meeting. It must run inside the creation lock.
func (s *meetingService) createSession(ctx context.Context, meeting *model.Meeting, password string, settings map[string]any) (*model.ConferencingSession, *model.ConferencingAccount, error) {
	account, err := s.allocate(ctx, meeting)
	if err != nil {
		return nil, nil, err
	}

	params := conferencing.NewSessionParams(meeting, s.gateway.Timezone(), password, settings)
	session, err := s.gateway.CreateSession(ctx, account, params, meeting.ID)
	if err != nil {
		s.metrics.Count(metrics.RemoteFailure, map[string]string{"operation": "create"})
		s.cfg.Log.Error("Failed to create conferencing session",
			"meeting_id", meeting.ID,
			"account_id", account.ID,
			"error", err,
		)
		return nil, nil, apperrors.RemoteFailure("Failed to create the conferencing session", err)
	}
	return session, account, nil
}

// discardSession removes a remote session whose local transaction did not commit.
func (s *meetingService) discardSession(ctx context.Context, account *model.ConferencingAccount, session *model.ConferencingSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ConferencingTimeout)
	defer cancel()

	if err := s.gateway.DeleteSession(ctx, account, session.ProviderID); err != nil {
		s.cfg.Log.Error("Failed to discard orphaned conferencing session",
			"provider_id", session.ProviderID,
			"account_id", account.ID,
			"error", err,
		)
	}
}

// resolveSessionAccount returns the account that hosts session, falling back
// to the first configured account when it is unknown or gone.
func (s *meetingService) resolveSessionAccount(ctx context.Context, session *model.ConferencingSession) (*model.ConferencingAccount, error) {
	if session.AccountID != "" {
		account, err := s.accounts.FindByID(ctx, session.AccountID)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, accountserrors.ErrNotFound) && !errors.Is(err, accountserrors.ErrInvalidID) {
			return nil, apperrors.Internal("Failed to load conferencing account", err)
		}
	}

	accounts, err := s.accounts.ListOrdered(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list conferencing accounts", err)
	}
	if len(accounts) == 0 {
		return nil, apperrors.ProviderUnconfigured("No conferencing account is configured")
	}
	return accounts[0], nil
}

func (s *meetingService) findSession(ctx context.Context, meetingID string) (*model.ConferencingSession, error) {
	session, err := s.sessions.FindByMeetingID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, confErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to load conferencing session", err)
	}
	return session, nil
}

// creationLock is a held creation lease. verify must pass before a
// transaction that allocated a session commits.
type creationLock struct {
	service *meetingService
	lease   scheduler.Lease
	start   time.Time
}

func (l *creationLock) verify(ctx context.Context) error {
	err := l.lease.Held(context.WithoutCancel(ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, scheduler.ErrLeaseLost) {
		l.service.metrics.Count(metrics.LockTimeout, nil)
		l.service.cfg.Log.Warn("Meeting creation lock expired before commit", "held_ms", time.Since(l.start).Milliseconds())
		return apperrors.LockTimeout("The scheduler is busy, please retry")
	}
	return apperrors.Internal("Failed to verify meeting creation lock", err)
}

func (l *creationLock) release(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := l.lease.Release(releaseCtx); err != nil {
		l.service.cfg.Log.Warn("Failed to release meeting creation lock", "error", err)
	}
}

// acquireCreationLock serializes allocation and session creation.
func (s *meetingService) acquireCreationLock(ctx context.Context) (*creationLock, error) {
	start := time.Now()
	lease, err := s.locker.Acquire(ctx, scheduler.CreationLockName)
	s.metrics.Duration(metrics.LockWait, time.Since(start), nil)
	if err != nil {
		if errors.Is(err, scheduler.ErrLockTimeout) {
			s.metrics.Count(metrics.LockTimeout, nil)
			s.cfg.Log.Warn("Timed out waiting for meeting creation lock", "waited_ms", time.Since(start).Milliseconds())
			return nil, apperrors.LockTimeout("The scheduler is busy, please retry")
		}
		if ctx.Err() != nil {
			return nil, apperrors.Timeout("Request cancelled while waiting for the scheduler")
		}
		return nil, apperrors.Internal("Failed to acquire meeting creation lock", err)
	}
	return &creationLock{service: s, lease: lease, start: time.Now()}, nil
}

func (s *meetingService) attachRelations(ctx context.Context, meeting *model.Meeting) error {
	return s.attachRelationsBatch(ctx, []*model.Meeting{meeting})
}

// attachRelationsBatch fills Location, Session, Organizer and HostKey. The
// host key is attached unconditionally; callers redact it.
func (s *meetingService) attachRelationsBatch(ctx context.Context, meetings []*model.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}

	var locationIDs, meetingIDs, userIDs []string
	for _, m := range meetings {
		if m.LocationID != "" {
			locationIDs = append(locationIDs, m.LocationID)
		}
		meetingIDs = append(meetingIDs, m.ID)
		userIDs = append(userIDs, m.OrganizerID)
	}

	locations, err := s.locations.FindByIDs(ctx, locationIDs)
	if err != nil {
		return apperrors.Internal("Failed to load meeting locations", err)
	}
	sessions, err := s.sessions.FindByMeetingIDs(ctx, meetingIDs)
	if err != nil {
		return apperrors.Internal("Failed to load conferencing sessions", err)
	}
	organizers, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return apperrors.Internal("Failed to load organizers", err)
	}

	var hostKeys map[string]string
	if len(sessions) > 0 {
		accounts, err := s.accounts.ListOrdered(ctx)
		if err != nil {
			return apperrors.Internal("Failed to load conferencing accounts", err)
		}
		hostKeys = make(map[string]string, len(accounts))
		for _, a := range accounts {
			hostKeys[a.ID] = a.HostKey
		}
	}

	for _, m := range meetings {
		m.Location = locations[m.LocationID]
		m.Session = sessions[m.ID]
		m.Organizer = organizers[m.OrganizerID]
		if m.Session != nil {
			m.HostKey = hostKeys[m.Session.AccountID]
		}
	}
	return nil
}

func (s *meetingService) loadOrganizer(ctx context.Context, id string) *model.User {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, userserrors.ErrNotFound) && !errors.Is(err, userserrors.ErrInvalidID) {
			s.cfg.Log.Warn("Failed to load organizer", "organizer_id", id, "error", err)
		}
		return nil
	}
	return user
}

// publish emits a lifecycle event. Failures are logged, never returned.
func (s *meetingService) publish(ctx context.Context, eventType string, meeting *model.Meeting) {
	if s.publisher == nil {
		return
	}

	event := model.MeetingEvent{
		Type:        eventType,
		MeetingID:   meeting.ID,
		UUID:        meeting.UUID,
		OrganizerID: meeting.OrganizerID,
		MeetingType: meeting.Type,
		Status:      meeting.Status,
		StartTime:   meeting.StartTime,
		EndTime:     meeting.EndTime,
		LocationID:  meeting.LocationID,
		OccurredAt:  time.Now().UTC(),
	}
	if meeting.Session != nil {
		event.AccountID = meeting.Session.AccountID
	}

	msg, err := kafka.NewMessage().
		WithKey(meeting.ID).
		WithValue(event).
		WithEventType(eventType).
		WithSource(s.cfg.ServiceName).
		Build()
	if err != nil {
		s.cfg.Log.Error("Failed to build meeting event", "type", eventType, "meeting_id", meeting.ID, "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, msg); err != nil {
		s.metrics.Count(metrics.EventPublishFailed, map[string]string{"type": eventType})
		s.cfg.Log.Warn("Failed to publish meeting event", "type", eventType, "meeting_id", meeting.ID, "error", err)
		return
	}
	s.metrics.Count(metrics.EventPublished, map[string]string{"type": eventType})
}
