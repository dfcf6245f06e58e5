package errors

import "errors"

var (
	ErrNotFound = errors.New("meeting not found")

	ErrInvalidID = errors.New("invalid meeting ID format")

	ErrDuplicateAttendance = errors.New("attendance already recorded for this email")
)
