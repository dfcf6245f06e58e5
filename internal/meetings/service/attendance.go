package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	meetingserrors "meetly/internal/meetings/errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/model"
)

// RecordAttendance is the public check-in. userID is set when the caller is
// authenticated and empty otherwise.
func (s *meetingService) RecordAttendance(ctx context.Context, meetingUUID string, userID string, input *model.AttendanceInput) (*model.Attendance, error) {
	if err := s.validator.ValidateAttendance(input); err != nil {
		return nil, s.validationError(err)
	}
	if meetingUUID == "" {
		return nil, apperrors.InvalidInput("Meeting UUID cannot be empty")
	}

	meeting, err := s.repo.FindByUUID(ctx, meetingUUID)
	if err != nil {
		return nil, s.translate(err, meetingUUID, "Failed to retrieve meeting")
	}

	attendance := &model.Attendance{
		MeetingID: meeting.ID,
		UserID:    userID,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Agency:    strings.TrimSpace(input.Agency),
	}
	if err := s.attendances.Create(ctx, attendance); err != nil {
		if errors.Is(err, meetingserrors.ErrDuplicateAttendance) {
			return nil, apperrors.FieldValidation("email", "This email has already checked in to the meeting")
		}
		s.cfg.Log.Error("Failed to record attendance", "meeting_id", meeting.ID, "error", err)
		return nil, apperrors.Internal("Failed to record attendance", err)
	}

	s.cfg.Log.Info("Attendance recorded", "meeting_id", meeting.ID, "attendance_id", attendance.ID)
	return attendance, nil
}

func (s *meetingService) ListAttendances(ctx context.Context, meetingID string, limit int, offset int64) ([]*model.Attendance, int64, error) {
	if _, err := s.find(ctx, meetingID); err != nil {
		return nil, 0, err
	}

	var count int64
	var attendances []*model.Attendance
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.attendances.CountByMeeting(ctx, meetingID)
	}()

	go func() {
		defer wg.Done()
		attendances, errFind = s.attendances.FindByMeeting(ctx, meetingID, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count attendances", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve attendances", errFind)
	}
	return attendances, count, nil
}
