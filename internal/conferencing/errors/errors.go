package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("conferencing session not found")

	ErrInvalidID = errors.New("invalid conferencing session ID format")

	ErrCredentialsMissing = errors.New("conferencing credentials not configured")
)

// RemoteError is a non-2xx answer from the provider.
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 404
}
