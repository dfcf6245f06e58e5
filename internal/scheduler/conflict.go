// Package scheduler holds the resource booking rules shared by the meeting
// service: interval overlap, conferencing account allocation and the
// creation lock.
package scheduler

import (
	"context"
	"fmt"
	"time"
)

type ResourceKind string

const (
	ResourceLocation            ResourceKind = "location"
	ResourceConferencingAccount ResourceKind = "conferencing_account"
)

// Interval is one booking of a resource by a meeting. End is exclusive.
type Interval struct {
	MeetingID string    `bson:"_id"`
	Start     time.Time `bson:"start_time"`
	End       time.Time `bson:"end_time"`
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching intervals
// do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// CountOverlapping counts bookings intersecting [start,end), ignoring exclude.
func CountOverlapping(bookings []Interval, start, end time.Time, exclude string) int {
	n := 0
	for _, b := range bookings {
		if exclude != "" && b.MeetingID == exclude {
			continue
		}
		if Overlaps(start, end, b.Start, b.End) {
			n++
		}
	}
	return n
}

// BookingSource lists the bookings of a resource that may intersect
// [start,end). Implementations may over-fetch; results are re-checked.
type BookingSource interface {
	LocationBookings(ctx context.Context, locationID string, start, end time.Time, excludeMeetingID string) ([]Interval, error)
	AccountBookings(ctx context.Context, accountID string, start, end time.Time, excludeMeetingID string) ([]Interval, error)
}

// ConflictChecker answers overlap questions for a resource. It has no side effects.
type ConflictChecker struct {
	source BookingSource
}

func NewConflictChecker(source BookingSource) *ConflictChecker {
	return &ConflictChecker{source: source}
}

// HasConflict reports whether any other meeting books resourceID during [start,end).
func (c *ConflictChecker) HasConflict(ctx context.Context, kind ResourceKind, resourceID string, start, end time.Time, excludeMeetingID string) (bool, error) {
	n, err := c.CountOverlapping(ctx, kind, resourceID, start, end, excludeMeetingID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountOverlapping returns how many meetings book resourceID during [start,end).
func (c *ConflictChecker) CountOverlapping(ctx context.Context, kind ResourceKind, resourceID string, start, end time.Time, excludeMeetingID string) (int, error) {
	if resourceID == "" || !start.Before(end) {
		return 0, nil
	}

	var (
		bookings []Interval
		err      error
	)
	switch kind {
	case ResourceLocation:
		bookings, err = c.source.LocationBookings(ctx, resourceID, start, end, excludeMeetingID)
	case ResourceConferencingAccount:
		bookings, err = c.source.AccountBookings(ctx, resourceID, start, end, excludeMeetingID)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s bookings: %w", kind, err)
	}

	return CountOverlapping(bookings, start, end, excludeMeetingID), nil
}
