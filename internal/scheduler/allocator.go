package scheduler

import (
	"context"
	"fmt"
	"meetly/pkg/model"
	"time"
)

// MaxConcurrentSessions is the provider's cap on simultaneous sessions per account.
const MaxConcurrentSessions = 2

// AccountSource lists accounts in allocation order: creation time, then id.
type AccountSource interface {
	ListOrdered(ctx context.Context) ([]*model.ConferencingAccount, error)
}

// AccountAllocator picks the first account with spare concurrency.
type AccountAllocator struct {
	accounts      AccountSource
	checker       *ConflictChecker
	maxConcurrent int
}

func NewAccountAllocator(accounts AccountSource, checker *ConflictChecker, maxConcurrent int) *AccountAllocator {
	if maxConcurrent <= 0 {
		maxConcurrent = MaxConcurrentSessions
	}
	return &AccountAllocator{
		accounts:      accounts,
		checker:       checker,
		maxConcurrent: maxConcurrent,
	}
}

// SelectAccount returns the first account, in stable order, whose overlapping
// session count during [start,end) is below the cap. excludeMeetingID keeps a
// meeting from counting against itself when it is being rescheduled.
func (a *AccountAllocator) SelectAccount(ctx context.Context, start, end time.Time, excludeMeetingID string) (*model.ConferencingAccount, error) {
	accounts, err := a.accounts.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conferencing accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrProviderUnconfigured
	}

	for _, account := range accounts {
		n, err := a.checker.CountOverlapping(ctx, ResourceConferencingAccount, account.ID, start, end, excludeMeetingID)
		if err != nil {
			return nil, err
		}
		if n < a.maxConcurrent {
			return account, nil
		}
	}

	return nil, ErrCapacityExhausted
}
