package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

type fakeBookings struct {
	locations map[string][]Interval
	accounts  map[string][]Interval
	err       error
}

func (f *fakeBookings) LocationBookings(_ context.Context, id string, _, _ time.Time, _ string) ([]Interval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations[id], nil
}

func (f *fakeBookings) AccountBookings(_ context.Context, id string, _, _ time.Time, _ string) ([]Interval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[id], nil
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		s1, e1   time.Time
		s2, e2   time.Time
		expected bool
	}{
		{"identical", at(0), at(60), at(0), at(60), true},
		{"partial start", at(0), at(60), at(30), at(90), true},
		{"partial end", at(30), at(90), at(0), at(60), true},
		{"contained", at(0), at(120), at(30), at(60), true},
		{"adjacent after", at(0), at(60), at(60), at(120), false},
		{"adjacent before", at(60), at(120), at(0), at(60), false},
		{"disjoint", at(0), at(30), at(90), at(120), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			assert.Equal(t, tt.expected, Overlaps(tt.s2, tt.e2, tt.s1, tt.e1), "overlap must be symmetric")
		})
	}
}

func TestCountOverlapping_ExcludesSelf(t *testing.T) {
	bookings := []Interval{
		{MeetingID: "a", Start: at(0), End: at(60)},
		{MeetingID: "b", Start: at(30), End: at(90)},
		{MeetingID: "c", Start: at(90), End: at(120)},
	}

	assert.Equal(t, 2, CountOverlapping(bookings, at(45), at(75), ""))
	assert.Equal(t, 1, CountOverlapping(bookings, at(45), at(75), "a"))
	assert.Equal(t, 0, CountOverlapping(bookings, at(120), at(150), ""))
}

func TestConflictChecker_Location(t *testing.T) {
	source := &fakeBookings{locations: map[string][]Interval{
		"room-1": {{MeetingID: "m1", Start: at(0), End: at(60)}},
	}}
	checker := NewConflictChecker(source)
	ctx := context.Background()

	conflict, err := checker.HasConflict(ctx, ResourceLocation, "room-1", at(30), at(90), "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = checker.HasConflict(ctx, ResourceLocation, "room-1", at(60), at(120), "")
	require.NoError(t, err)
	assert.False(t, conflict, "back-to-back meetings share a room")

	conflict, err = checker.HasConflict(ctx, ResourceLocation, "room-1", at(30), at(90), "m1")
	require.NoError(t, err)
	assert.False(t, conflict, "a meeting never conflicts with itself")

	conflict, err = checker.HasConflict(ctx, ResourceLocation, "room-2", at(0), at(60), "")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestConflictChecker_EmptyResourceOrInterval(t *testing.T) {
	checker := NewConflictChecker(&fakeBookings{err: errors.New("should not be called")})

	n, err := checker.CountOverlapping(context.Background(), ResourceLocation, "", at(0), at(60), "")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = checker.CountOverlapping(context.Background(), ResourceLocation, "room-1", at(60), at(60), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConflictChecker_Errors(t *testing.T) {
	boom := errors.New("boom")
	checker := NewConflictChecker(&fakeBookings{err: boom})

	_, err := checker.CountOverlapping(context.Background(), ResourceConferencingAccount, "acc", at(0), at(60), "")
	assert.ErrorIs(t, err, boom)

	_, err = checker.CountOverlapping(context.Background(), ResourceKind("printer"), "p", at(0), at(60), "")
	assert.ErrorIs(t, err, ErrUnknownResource)
}
