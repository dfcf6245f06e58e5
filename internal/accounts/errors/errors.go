package errors

import "errors"

var (
	ErrNotFound = errors.New("conferencing account not found")

	ErrInvalidID = errors.New("invalid conferencing account ID format")
)
