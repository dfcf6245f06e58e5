package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"meetly/internal/meetings/validator"
	"meetly/internal/scheduler"
	"meetly/pkg/config"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/logger"
	"meetly/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	db        *memoryDB
	meetings  *memoryMeetings
	gateway   *fakeGateway
	publisher *recordingPublisher
	organizer *model.User
	svc       MeetingService
}

func newHarness(t *testing.T, opts ...func(*Dependencies)) *harness {
	t.Helper()

	log := logger.Discard()
	cfg := &config.Config{
		ServiceName:           "meetings-test",
		Log:                   log,
		MaxConcurrentSessions: 2,
		ConferencingTimeout:   time.Second,
		ReadTimeout:           time.Second,
		WriteTimeout:          time.Second,
	}

	db := newMemoryDB()
	sessions := &memorySessions{db: db}
	meetings := &memoryMeetings{db: db}
	h := &harness{
		db:        db,
		meetings:  meetings,
		gateway:   newFakeGateway(sessions),
		publisher: &recordingPublisher{},
		organizer: db.addUser("organizer"),
	}

	deps := Dependencies{
		Meetings:    meetings,
		Attendances: &memoryAttendances{db: db},
		Sessions:    sessions,
		Accounts:    &memoryAccounts{db: db},
		Locations:   &memoryLocations{db: db},
		Users:       &memoryUsers{db: db},
		Gateway:     h.gateway,
		Locker:      scheduler.NewLocalLocker(time.Second, 5*time.Second),
		Publisher:   h.publisher,
		Validator:   validator.NewMeetingValidator(log),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewMeetingService(deps, cfg)
	return h
}

func (h *harness) create(t *testing.T, input *model.MeetingInput) *model.Meeting {
	t.Helper()
	meeting, err := h.svc.Create(context.Background(), h.organizer.ID, input)
	require.NoError(t, err)
	return meeting
}

func onlineInput(start time.Time, minutes int) *model.MeetingInput {
	return &model.MeetingInput{Topic: "Weekly sync", StartTime: start, Duration: minutes, Type: "online"}
}

func offlineInput(locationID string, start time.Time, minutes int) *model.MeetingInput {
	return &model.MeetingInput{Topic: "Planning", StartTime: start, Duration: minutes, Type: "offline", LocationID: locationID}
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
	return appErr
}

func strPtr(s string) *string { return &s }

func TestCreate_LocationConflicts(t *testing.T) {
	h := newHarness(t)
	l1 := h.db.addLocation("Room A")
	l2 := h.db.addLocation("Room B")

	h.create(t, offlineInput(l1.ID, base, 60))

	_, err := h.svc.Create(context.Background(), h.organizer.ID, offlineInput(l1.ID, base.Add(30*time.Minute), 60))
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, apperrors.FieldStartTime, appErr.Field())
	assert.Equal(t, 422, appErr.StatusCode())
	assert.Equal(t, 1, h.db.meetingCount())

	adjacent := h.create(t, offlineInput(l1.ID, base.Add(time.Hour), 60))
	assert.Equal(t, l1.ID, adjacent.Location.ID)

	h.create(t, offlineInput(l2.ID, base.Add(30*time.Minute), 60))
	assert.Equal(t, 3, h.db.meetingCount())
}

func TestCreate_HybridChecksLocationAndAllocates(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	account := h.db.addAccount("primary", "")

	h.create(t, offlineInput(room.ID, base, 60))

	input := offlineInput(room.ID, base, 60)
	input.Type = "hybrid"
	_, err := h.svc.Create(context.Background(), h.organizer.ID, input)
	requireCode(t, err, apperrors.CodeConflict)
	assert.Empty(t, h.gateway.created, "no remote session for a rejected meeting")

	input.StartTime = base.Add(time.Hour)
	meeting := h.create(t, input)
	require.NotNil(t, meeting.Session)
	assert.Equal(t, account.ID, meeting.Session.AccountID)
	assert.Equal(t, room.ID, meeting.LocationID)
}

func TestCreate_OfflineRequiresLocation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), h.organizer.ID, offlineInput("", base, 30))
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "location_id", appErr.Field())

	_, err = h.svc.Create(context.Background(), h.organizer.ID, offlineInput(newID(), base, 30))
	appErr = requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "location_id", appErr.Field())
}

func TestCreate_FirstFitAllocation(t *testing.T) {
	h := newHarness(t)
	first := h.db.addAccount("first", "")
	second := h.db.addAccount("second", "")

	var accounts []string
	for i := 0; i < 4; i++ {
		meeting := h.create(t, onlineInput(base, 60))
		require.NotNil(t, meeting.Session)
		accounts = append(accounts, meeting.Session.AccountID)
	}
	assert.Equal(t, []string{first.ID, first.ID, second.ID, second.ID}, accounts)

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base.Add(15*time.Minute), 30))
	appErr := requireCode(t, err, apperrors.CodeCapacityExhausted)
	assert.Equal(t, apperrors.FieldConferencingAccount, appErr.Field())
	assert.Equal(t, 4, h.db.meetingCount())
	assert.Equal(t, 4, h.gateway.remoteCount())

	adjacent := h.create(t, onlineInput(base.Add(time.Hour), 30))
	assert.Equal(t, first.ID, adjacent.Session.AccountID, "back-to-back sessions do not count against the cap")
}

func TestCreate_ProviderUnconfigured(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
	requireCode(t, err, apperrors.CodeProviderUnconfigured)
	assert.Equal(t, 0, h.db.meetingCount())
}

func TestCreate_RemoteFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	h.gateway.createErr = errProvider

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
	appErr := requireCode(t, err, apperrors.CodeRemoteFailure)
	assert.Equal(t, apperrors.FieldConferencingSession, appErr.Field())
	assert.Equal(t, 0, h.db.meetingCount())
	assert.Empty(t, h.db.sessions)
}

func TestCreate_FailedCommitDiscardsRemoteSession(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	h.meetings.commitErr = errors.New("write conflict")

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
	requireCode(t, err, apperrors.CodeInternal)

	assert.Equal(t, 0, h.db.meetingCount())
	require.Len(t, h.gateway.created, 1)
	assert.Equal(t, h.gateway.created, h.gateway.deleted)
	assert.Equal(t, 0, h.gateway.remoteCount())
}

func TestCreate_AttachesHostKeyAndOrganizer(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "123456")

	meeting := h.create(t, onlineInput(base, 45))

	assert.Equal(t, "123456", meeting.HostKey)
	assert.Equal(t, h.organizer.ID, meeting.Organizer.ID)
	assert.Equal(t, model.MeetingStatusScheduled, meeting.Status)
	assert.Equal(t, base.Add(45*time.Minute), meeting.EndTime)
	assert.NotEmpty(t, meeting.UUID)

	stored, ok := h.db.storedMeeting(meeting.ID)
	require.True(t, ok)
	assert.Empty(t, stored.HostKey)
}

func TestCreate_LockTimeoutIsRetryable(t *testing.T) {
	h := newHarness(t, func(d *Dependencies) {
		d.Locker = stubLocker{err: scheduler.ErrLockTimeout}
	})
	h.db.addAccount("primary", "")

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
	appErr := requireCode(t, err, apperrors.CodeLockTimeout)
	assert.True(t, appErr.Retryable)
	assert.Equal(t, 0, h.db.meetingCount())
}

func expiringLock(hold time.Duration) func(*Dependencies) {
	return func(d *Dependencies) {
		d.Locker = scheduler.NewLocalLocker(time.Second, hold)
	}
}

func TestCreate_LeaseExpiredBeforeCommit(t *testing.T) {
	h := newHarness(t, expiringLock(30*time.Millisecond))
	h.db.addAccount("primary", "")
	h.gateway.createDelay = 80 * time.Millisecond

	_, err := h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
	appErr := requireCode(t, err, apperrors.CodeLockTimeout)
	assert.True(t, appErr.Retryable)

	assert.Equal(t, 0, h.db.meetingCount())
	require.Len(t, h.gateway.created, 1)
	assert.Equal(t, h.gateway.created, h.gateway.deleted)
	assert.Equal(t, 0, h.gateway.remoteCount())
}

func TestCreate_ConcurrentExpiredLeasesDoNotOversubscribe(t *testing.T) {
	h := newHarness(t, expiringLock(30*time.Millisecond))
	h.db.addAccount("primary", "")
	h.gateway.createDelay = 80 * time.Millisecond

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Create(context.Background(), h.organizer.ID, onlineInput(base, 60))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		code := apperrors.AsAppError(err).Code
		assert.Contains(t, []string{apperrors.CodeLockTimeout, apperrors.CodeCapacityExhausted}, code, "unexpected error: %v", err)
	}
	assert.Equal(t, 0, h.gateway.remoteCount())
}

func TestCreate_Participants(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	alice := h.db.addUser("alice")
	bob := h.db.addUser("bob")

	input := offlineInput(room.ID, base, 30)
	input.Participants = []string{alice.ID, h.organizer.ID, alice.ID, bob.ID}
	meeting := h.create(t, input)
	assert.Equal(t, []string{alice.ID, bob.ID}, meeting.Participants)

	input = offlineInput(room.ID, base.Add(time.Hour), 30)
	input.Participants = []string{newID()}
	_, err := h.svc.Create(context.Background(), h.organizer.ID, input)
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "participants", appErr.Field())
}

func TestUpdate_OfflineToOnlineAllocatesSession(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	account := h.db.addAccount("primary", "")
	meeting := h.create(t, offlineInput(room.ID, base, 60))

	updated, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Type: strPtr("online")})
	require.NoError(t, err)

	require.NotNil(t, updated.Session)
	assert.Equal(t, account.ID, updated.Session.AccountID)
	assert.Empty(t, updated.LocationID)
	assert.Len(t, h.gateway.created, 1)
	assert.Empty(t, h.gateway.updated)
}

func TestUpdate_AllocationLeaseExpiredBeforeCommit(t *testing.T) {
	h := newHarness(t, expiringLock(30*time.Millisecond))
	room := h.db.addLocation("Room A")
	h.db.addAccount("primary", "")
	meeting := h.create(t, offlineInput(room.ID, base, 60))
	h.gateway.createDelay = 80 * time.Millisecond

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Type: strPtr("online")})
	requireCode(t, err, apperrors.CodeLockTimeout)

	stored, ok := h.db.storedMeeting(meeting.ID)
	require.True(t, ok)
	assert.Equal(t, model.MeetingTypeOffline, stored.Type)
	assert.Equal(t, room.ID, stored.LocationID)
	assert.Equal(t, 0, h.gateway.remoteCount())
}

func TestUpdate_OnlineToOfflineDeletesSession(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	providerID := meeting.Session.ProviderID

	updated, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{
		Type:       strPtr("offline"),
		LocationID: strPtr(room.ID),
		Topic:      strPtr("Moved on site"),
	})
	require.NoError(t, err)

	assert.Nil(t, updated.Session)
	assert.Equal(t, room.ID, updated.LocationID)
	_, ok := h.db.sessionFor(meeting.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{providerID}, h.gateway.deleted)
	assert.Empty(t, h.gateway.updated, "no remote update after teardown")
}

func TestUpdate_TeardownFailureKeepsMeetingOnline(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	h.gateway.deleteErr = errProvider

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{
		Type:       strPtr("offline"),
		LocationID: strPtr(room.ID),
	})
	requireCode(t, err, apperrors.CodeRemoteFailure)

	stored, _ := h.db.storedMeeting(meeting.ID)
	assert.Equal(t, model.MeetingTypeOnline, stored.Type)
	_, ok := h.db.sessionFor(meeting.ID)
	assert.True(t, ok)
}

func TestUpdate_PushesChangesToSession(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Notes: strPtr("minutes")})
	require.NoError(t, err)
	assert.Empty(t, h.gateway.updated, "notes are not mirrored remotely")

	start := base.Add(2 * time.Hour)
	updated, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, []string{meeting.Session.ProviderID}, h.gateway.updated)
	assert.Equal(t, start.Add(time.Hour), updated.EndTime)
}

func TestUpdate_RemotePushFailureKeepsLocalChanges(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	h.gateway.updateErr = errProvider

	updated, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Topic: strPtr("Renamed")})
	requireCode(t, err, apperrors.CodeRemoteFailure)
	require.NotNil(t, updated)
	assert.Equal(t, "Renamed", updated.Topic)

	stored, _ := h.db.storedMeeting(meeting.ID)
	assert.Equal(t, "Renamed", stored.Topic)
}

func TestUpdate_RescheduleIntoLocationConflict(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	h.create(t, offlineInput(room.ID, base, 60))
	later := h.create(t, offlineInput(room.ID, base.Add(2*time.Hour), 60))

	start := base.Add(30 * time.Minute)
	_, err := h.svc.Update(context.Background(), later.ID, &model.MeetingUpdate{StartTime: &start})
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, apperrors.FieldStartTime, appErr.Field())

	start = base.Add(time.Hour)
	_, err = h.svc.Update(context.Background(), later.ID, &model.MeetingUpdate{StartTime: &start})
	require.NoError(t, err)

	duration := 90
	_, err = h.svc.Update(context.Background(), later.ID, &model.MeetingUpdate{Duration: &duration})
	require.NoError(t, err, "a meeting never conflicts with itself")
}

func TestUpdate_StatusTransitions(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	meeting := h.create(t, offlineInput(room.ID, base, 60))

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Status: strPtr("finished")})
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "status", appErr.Field())

	updated, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Status: strPtr("started")})
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusStarted, updated.Status)

	updated, err = h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Status: strPtr("canceled")})
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusCanceled, updated.Status)

	_, err = h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Status: strPtr("scheduled")})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestUpdate_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Update(context.Background(), newID(), &model.MeetingUpdate{Topic: strPtr("x")})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.svc.Update(context.Background(), "not-an-id", &model.MeetingUpdate{Topic: strPtr("x")})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestDelete_RemoteFailureStillDeletesLocally(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	_, err := h.svc.RecordAttendance(context.Background(), meeting.UUID, "", &model.AttendanceInput{Name: "Guest"})
	require.NoError(t, err)
	h.gateway.deleteErr = errProvider

	require.NoError(t, h.svc.Delete(context.Background(), meeting.ID))

	assert.Equal(t, 0, h.db.meetingCount())
	_, ok := h.db.sessionFor(meeting.ID)
	assert.False(t, ok)
	assert.Empty(t, h.db.attendances)
	assert.Equal(t, []string{meeting.Session.ProviderID}, h.gateway.deleted)
}

func TestDelete_FallsBackToFirstAccount(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("first", "")
	h.db.addAccount("second", "")
	meeting := h.create(t, onlineInput(base, 60))

	h.db.mu.Lock()
	h.db.accounts = h.db.accounts[1:]
	h.db.mu.Unlock()

	require.NoError(t, h.svc.Delete(context.Background(), meeting.ID))
	assert.Equal(t, []string{meeting.Session.ProviderID}, h.gateway.deleted)
	assert.Equal(t, 0, h.gateway.remoteCount())
}

func TestDelete_NotFound(t *testing.T) {
	h := newHarness(t)
	requireCode(t, h.svc.Delete(context.Background(), newID()), apperrors.CodeNotFound)
}

func TestGetByID_OrganizerSoftDeleted(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	meeting := h.create(t, offlineInput(room.ID, base, 60))

	deletedAt := time.Now()
	h.db.mu.Lock()
	h.organizer.DeletedAt = &deletedAt
	h.db.mu.Unlock()

	found, err := h.svc.GetByID(context.Background(), meeting.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Organizer)
	assert.True(t, found.Organizer.IsDeleted())
	assert.Equal(t, room.ID, found.Location.ID)
}

func TestCalendar(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	h.create(t, offlineInput(room.ID, base, 60))
	h.create(t, offlineInput(room.ID, base.Add(24*time.Hour), 60))

	meetings, err := h.svc.Calendar(context.Background(), base.Add(-time.Hour), base.Add(time.Hour), model.MeetingFilter{})
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, room.ID, meetings[0].Location.ID)

	_, err = h.svc.Calendar(context.Background(), base, base, model.MeetingFilter{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.svc.Calendar(context.Background(), base, base.AddDate(2, 0, 0), model.MeetingFilter{})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestParticipants_InviteAndRemove(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	alice := h.db.addUser("alice")
	meeting := h.create(t, offlineInput(room.ID, base, 60))

	_, err := h.svc.Invite(context.Background(), meeting.ID, h.organizer.ID)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.svc.Invite(context.Background(), meeting.ID, newID())
	requireCode(t, err, apperrors.CodeValidation)

	updated, err := h.svc.Invite(context.Background(), meeting.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, updated.Participants)

	updated, err = h.svc.Invite(context.Background(), meeting.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, updated.Participants)

	participants, err := h.svc.ListParticipants(context.Background(), meeting.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].Name)

	updated, err = h.svc.RemoveParticipant(context.Background(), meeting.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Participants)

	_, err = h.svc.RemoveParticipant(context.Background(), meeting.ID, alice.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestApplyRemoteStatus(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	providerID := meeting.Session.ProviderID

	require.NoError(t, h.svc.ApplyRemoteStatus(context.Background(), providerID, model.SessionStatusWaiting))
	stored, _ := h.db.storedMeeting(meeting.ID)
	assert.Equal(t, model.MeetingStatusScheduled, stored.Status)

	require.NoError(t, h.svc.ApplyRemoteStatus(context.Background(), providerID, model.SessionStatusStarted))
	stored, _ = h.db.storedMeeting(meeting.ID)
	assert.Equal(t, model.MeetingStatusStarted, stored.Status)

	require.NoError(t, h.svc.ApplyRemoteStatus(context.Background(), providerID, model.SessionStatusEnded))
	stored, _ = h.db.storedMeeting(meeting.ID)
	assert.Equal(t, model.MeetingStatusFinished, stored.Status)

	requireCode(t, h.svc.ApplyRemoteStatus(context.Background(), "999", model.SessionStatusStarted), apperrors.CodeNotFound)
}

func TestApplyRemoteStatus_IgnoresCanceledMeetings(t *testing.T) {
	h := newHarness(t)
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Status: strPtr("canceled")})
	require.NoError(t, err)

	require.NoError(t, h.svc.ApplyRemoteStatus(context.Background(), meeting.Session.ProviderID, model.SessionStatusStarted))
	stored, _ := h.db.storedMeeting(meeting.ID)
	assert.Equal(t, model.MeetingStatusCanceled, stored.Status)
}

func TestSyncSession(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	h.db.addAccount("primary", "")
	meeting := h.create(t, onlineInput(base, 60))
	h.gateway.status = model.SessionStatusStarted

	synced, err := h.svc.SyncSession(context.Background(), meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusStarted, synced.Status)
	require.NotNil(t, synced.Session)
	assert.NotEmpty(t, synced.Session.RecordingPlayURL)

	offline := h.create(t, offlineInput(room.ID, base, 60))
	_, err = h.svc.SyncSession(context.Background(), offline.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAttendance(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	meeting := h.create(t, offlineInput(room.ID, base, 60))
	ctx := context.Background()

	_, err := h.svc.RecordAttendance(ctx, meeting.UUID, "", &model.AttendanceInput{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	_, err = h.svc.RecordAttendance(ctx, meeting.UUID, "", &model.AttendanceInput{Name: "Ann again", Email: "Ann@Example.com"})
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "email", appErr.Field())

	for i := 0; i < 2; i++ {
		_, err = h.svc.RecordAttendance(ctx, meeting.UUID, "", &model.AttendanceInput{Name: "Walk-in"})
		require.NoError(t, err)
	}

	_, err = h.svc.RecordAttendance(ctx, meeting.UUID, "", &model.AttendanceInput{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.svc.RecordAttendance(ctx, "missing", "", &model.AttendanceInput{Name: "Nobody"})
	requireCode(t, err, apperrors.CodeNotFound)

	attendances, total, err := h.svc.ListAttendances(ctx, meeting.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, attendances, 3)
}

func TestLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	meeting := h.create(t, offlineInput(room.ID, base, 60))

	_, err := h.svc.Update(context.Background(), meeting.ID, &model.MeetingUpdate{Topic: strPtr("Renamed")})
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(context.Background(), meeting.ID))

	assert.Equal(t, []string{
		model.EventMeetingCreated,
		model.EventMeetingUpdated,
		model.EventMeetingDeleted,
	}, h.publisher.types())
}

func TestGetAll(t *testing.T) {
	h := newHarness(t)
	room := h.db.addLocation("Room A")
	for i := 0; i < 3; i++ {
		h.create(t, offlineInput(room.ID, base.Add(time.Duration(i)*time.Hour), 30))
	}

	meetings, total, err := h.svc.GetAll(context.Background(), model.MeetingFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, meetings, 2)
	assert.True(t, meetings[0].StartTime.Before(meetings[1].StartTime))
	assert.Equal(t, h.organizer.ID, meetings[0].Organizer.ID)
}
