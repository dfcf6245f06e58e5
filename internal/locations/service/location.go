package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	locationserrors "meetly/internal/locations/errors"
	"meetly/internal/locations/repository"
	"meetly/internal/locations/validator"
	"meetly/pkg/config"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/model"
	"meetly/pkg/sanitizer"
	"meetly/pkg/validation"
)

type LocationService interface {
	Create(ctx context.Context, location *model.MeetingLocation) error
	GetByID(ctx context.Context, id string) (*model.MeetingLocation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.MeetingLocation, int64, error)
	Update(ctx context.Context, id string, updates *model.MeetingLocationUpdate) (*model.MeetingLocation, error)
	Delete(ctx context.Context, id string) error
}

// MeetingCounter reports how many meetings reference a location.
type MeetingCounter interface {
	CountByLocation(ctx context.Context, locationID string) (int64, error)
}

type locationService struct {
	repo      repository.LocationRepository
	meetings  MeetingCounter
	validator *validator.LocationValidator
	cfg       *config.Config
}

func NewLocationService(
	repo repository.LocationRepository,
	meetings MeetingCounter,
	validator *validator.LocationValidator,
	cfg *config.Config,
) LocationService {
	return &locationService{
		repo:      repo,
		meetings:  meetings,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *locationService) Create(ctx context.Context, location *model.MeetingLocation) error {
	s.sanitize(location)
	if err := s.validate(location); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, location); err != nil {
		s.cfg.Log.Error("Failed to create meeting location", "error", err)
		return apperrors.Internal("Failed to create meeting location", err)
	}

	s.cfg.Log.Info("Meeting location created successfully", "id", location.ID, "name", location.Name)
	return nil
}

func (s *locationService) GetByID(ctx context.Context, id string) (*model.MeetingLocation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Location ID cannot be empty")
	}

	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve meeting location")
	}
	return location, nil
}

func (s *locationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.MeetingLocation, int64, error) {
	var count int64
	var locations []*model.MeetingLocation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count meeting locations", "error", errCount)
			errCount = apperrors.Internal("Failed to count meeting locations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		locations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list meeting locations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve meeting locations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return locations, count, nil
}

func (s *locationService) Update(ctx context.Context, id string, updates *model.MeetingLocationUpdate) (*model.MeetingLocation, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, s.validationError(err)
	}

	merged := *existing
	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Address != nil {
		merged.Address = *updates.Address
	}
	if updates.RoomName != nil {
		merged.RoomName = *updates.RoomName
	}
	if updates.Capacity != nil {
		merged.Capacity = updates.Capacity
	}
	s.sanitize(&merged)
	if err := s.validate(&merged); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, &merged); err != nil {
		return nil, s.translate(err, id, "Failed to update meeting location")
	}

	s.cfg.Log.Info("Meeting location updated successfully", "id", id)
	return &merged, nil
}

// Delete refuses to remove a location that meetings still reference.
func (s *locationService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	inUse, err := s.meetings.CountByLocation(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to check meeting location usage", err)
	}
	if inUse > 0 {
		return apperrors.Conflict(fmt.Sprintf("Meeting location is used by %d meeting(s)", inUse)).
			WithDetails(map[string]any{"field": apperrors.FieldLocationID, "meetings": inUse})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, id, "Failed to delete meeting location")
	}

	s.cfg.Log.Info("Meeting location deleted successfully", "id", id)
	return nil
}

func (s *locationService) sanitize(l *model.MeetingLocation) {
	l.Name = sanitizer.TrimAndNormalize(l.Name)
	l.Address = sanitizer.NormalizeText(l.Address)
	l.RoomName = sanitizer.TrimAndNormalize(l.RoomName)
}

func (s *locationService) validate(l *model.MeetingLocation) error {
	if err := s.validator.Validate(l); err != nil {
		return s.validationError(err)
	}
	return nil
}

func (s *locationService) validationError(err error) error {
	s.cfg.Log.Warn("Meeting location validation failed", "error", err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.AppError("Meeting location validation failed")
	}
	return apperrors.Validation("Meeting location validation failed", map[string]any{"error": err.Error()})
}

func (s *locationService) translate(err error, id, message string) error {
	switch {
	case errors.Is(err, locationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Meeting location", id)
	case errors.Is(err, locationserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid meeting location ID format")
	}
	return apperrors.Internal(message, err)
}
