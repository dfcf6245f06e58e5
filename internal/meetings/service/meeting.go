// Package service is the meeting scheduler: it owns the create, update and
// delete sequences that span the meeting record, its roster, its location
// booking and its remote conferencing session.
package service

import (
	"context"
	"sync"
	"time"

	"meetly/internal/conferencing"
	"meetly/internal/meetings/repository"
	"meetly/internal/meetings/validator"
	"meetly/internal/scheduler"
	userrepo "meetly/internal/users/repository"
	"meetly/pkg/config"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/kafka"
	"meetly/pkg/metrics"
	"meetly/pkg/model"
)

type MeetingService interface {
	Create(ctx context.Context, organizerID string, input *model.MeetingInput) (*model.Meeting, error)
	GetByID(ctx context.Context, id string) (*model.Meeting, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Meeting, error)
	GetAll(ctx context.Context, filter model.MeetingFilter, limit int, offset int64) ([]*model.Meeting, int64, error)
	Calendar(ctx context.Context, from, to time.Time, filter model.MeetingFilter) ([]*model.Meeting, error)
	Update(ctx context.Context, id string, updates *model.MeetingUpdate) (*model.Meeting, error)
	Delete(ctx context.Context, id string) error

	ListParticipants(ctx context.Context, id string) ([]*model.User, error)
	Invite(ctx context.Context, id string, userID string) (*model.Meeting, error)
	RemoveParticipant(ctx context.Context, id string, userID string) (*model.Meeting, error)

	SyncSession(ctx context.Context, id string) (*model.Meeting, error)
	ApplyRemoteStatus(ctx context.Context, providerSessionID string, status string) error

	RecordAttendance(ctx context.Context, meetingUUID string, userID string, input *model.AttendanceInput) (*model.Attendance, error)
	ListAttendances(ctx context.Context, meetingID string, limit int, offset int64) ([]*model.Attendance, int64, error)
}

// Gateway is the conferencing provider as seen by the scheduler.
type Gateway interface {
	Timezone() string
	CreateSession(ctx context.Context, account *model.ConferencingAccount, params conferencing.SessionParams, meetingID string) (*model.ConferencingSession, error)
	UpdateSession(ctx context.Context, account *model.ConferencingAccount, remoteID string, params conferencing.SessionParams) error
	DeleteSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) error
	RefreshSession(ctx context.Context, account *model.ConferencingAccount, existing *model.ConferencingSession) (*model.ConferencingSession, error)
}

type SessionStore interface {
	Upsert(ctx context.Context, session *model.ConferencingSession) error
	FindByMeetingID(ctx context.Context, meetingID string) (*model.ConferencingSession, error)
	FindByMeetingIDs(ctx context.Context, meetingIDs []string) (map[string]*model.ConferencingSession, error)
	FindByProviderID(ctx context.Context, providerID string) (*model.ConferencingSession, error)
	DeleteByMeetingID(ctx context.Context, meetingID string) error
}

type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.ConferencingAccount, error)
	ListOrdered(ctx context.Context) ([]*model.ConferencingAccount, error)
}

type LocationStore interface {
	FindByID(ctx context.Context, id string) (*model.MeetingLocation, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.MeetingLocation, error)
}

type Dependencies struct {
	Meetings    repository.MeetingRepository
	Attendances repository.AttendanceRepository
	Sessions    SessionStore
	Accounts    AccountStore
	Locations   LocationStore
	Users       userrepo.UserRepository
	Gateway     Gateway
	Locker      scheduler.Locker
	Publisher   kafka.Publisher
	Metrics     metrics.Recorder
	Validator   *validator.MeetingValidator
}

type meetingService struct {
	repo        repository.MeetingRepository
	attendances repository.AttendanceRepository
	sessions    SessionStore
	accounts    AccountStore
	locations   LocationStore
	users       userrepo.UserRepository
	gateway     Gateway
	locker      scheduler.Locker
	publisher   kafka.Publisher
	metrics     metrics.Recorder
	validator   *validator.MeetingValidator
	checker     *scheduler.ConflictChecker
	allocator   *scheduler.AccountAllocator
	cfg         *config.Config
}

func NewMeetingService(deps Dependencies, cfg *config.Config) MeetingService {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}
	checker := scheduler.NewConflictChecker(deps.Meetings)

	return &meetingService{
		repo:        deps.Meetings,
		attendances: deps.Attendances,
		sessions:    deps.Sessions,
		accounts:    deps.Accounts,
		locations:   deps.Locations,
		users:       deps.Users,
		gateway:     deps.Gateway,
		locker:      deps.Locker,
		publisher:   deps.Publisher,
		metrics:     rec,
		validator:   deps.Validator,
		checker:     checker,
		allocator:   scheduler.NewAccountAllocator(deps.Accounts, checker, cfg.MaxConcurrentSessions),
		cfg:         cfg,
	}
}

func (s *meetingService) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (s *meetingService) GetByUUID(ctx context.Context, uuid string) (*model.Meeting, error) {
	if uuid == "" {
		return nil, apperrors.InvalidInput("Meeting UUID cannot be empty")
	}

	meeting, err := s.repo.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, s.translate(err, uuid, "Failed to retrieve meeting")
	}
	if err := s.attachRelations(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (s *meetingService) GetAll(ctx context.Context, filter model.MeetingFilter, limit int, offset int64) ([]*model.Meeting, int64, error) {
	var count int64
	var meetings []*model.Meeting
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count meetings", "error", errCount)
			errCount = apperrors.Internal("Failed to count meetings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		meetings, errFind = s.repo.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list meetings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve meetings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	if err := s.attachRelationsBatch(ctx, meetings); err != nil {
		return nil, 0, err
	}
	return meetings, count, nil
}

// Calendar lists every meeting overlapping [from,to).
func (s *meetingService) Calendar(ctx context.Context, from, to time.Time, filter model.MeetingFilter) ([]*model.Meeting, error) {
	if !from.Before(to) {
		return nil, apperrors.FieldValidation("end", "end must be after start")
	}
	if to.Sub(from) > 366*24*time.Hour {
		return nil, apperrors.FieldValidation("end", "calendar range cannot exceed one year")
	}

	filter.From = &from
	filter.To = &to
	meetings, err := s.repo.FindAll(ctx, filter, 0, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to list calendar meetings", "error", err)
		return nil, apperrors.Internal("Failed to retrieve meetings", err)
	}
	if err := s.attachRelationsBatch(ctx, meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}
