package scheduler

import "errors"

var (
	// ErrProviderUnconfigured means no conferencing account exists at all.
	ErrProviderUnconfigured = errors.New("no conferencing account configured")
	// ErrCapacityExhausted means every account is at its concurrency cap.
	ErrCapacityExhausted = errors.New("all conferencing accounts are at capacity")
	// ErrLockTimeout means the creation lock was not acquired within the wait bound.
	ErrLockTimeout = errors.New("timed out waiting for scheduling lock")
	// ErrLeaseLost means the lease expired or was taken over while held.
	ErrLeaseLost = errors.New("lease expired or was taken over")
	ErrUnknownResource = errors.New("unknown resource kind")
)
