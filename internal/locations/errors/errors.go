package errors

import "errors"

var (
	ErrNotFound = errors.New("meeting location not found")

	ErrInvalidID = errors.New("invalid meeting location ID format")
)
