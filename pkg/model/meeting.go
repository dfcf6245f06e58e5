package model

import (
	"fmt"
	"strings"
	"time"
)

type MeetingType string

const (
	MeetingTypeOnline  MeetingType = "online"
	MeetingTypeOffline MeetingType = "offline"
	MeetingTypeHybrid  MeetingType = "hybrid"
)

// ParseMeetingType normalises raw input into a MeetingType.
func ParseMeetingType(raw string) (MeetingType, error) {
	t := MeetingType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown meeting type %q", raw)
	}
	return t, nil
}

func (t MeetingType) Valid() bool {
	switch t {
	case MeetingTypeOnline, MeetingTypeOffline, MeetingTypeHybrid:
		return true
	}
	return false
}

// RequiresLocation reports whether meetings of this type occupy a physical location.
func (t MeetingType) RequiresLocation() bool {
	return t == MeetingTypeOffline || t == MeetingTypeHybrid
}

// RequiresSession reports whether meetings of this type need a conferencing session.
func (t MeetingType) RequiresSession() bool {
	return t == MeetingTypeOnline || t == MeetingTypeHybrid
}

type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusStarted   MeetingStatus = "started"
	MeetingStatusFinished  MeetingStatus = "finished"
	MeetingStatusCanceled  MeetingStatus = "canceled"
)

func ParseMeetingStatus(raw string) (MeetingStatus, error) {
	s := MeetingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown meeting status %q", raw)
	}
	return s, nil
}

func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingStatusScheduled, MeetingStatusStarted, MeetingStatusFinished, MeetingStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Staying in the same status is always allowed.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case MeetingStatusScheduled:
		return next == MeetingStatusStarted || next == MeetingStatusCanceled
	case MeetingStatusStarted:
		return next == MeetingStatusFinished || next == MeetingStatusCanceled
	}
	return false
}

type Meeting struct {
	ID           string        `json:"id,omitempty" bson:"_id,omitempty"`
	UUID         string        `json:"uuid" bson:"uuid"`
	OrganizerID  string        `json:"organizer_id" bson:"organizer_id"`
	Topic        string        `json:"topic" bson:"topic"`
	Description  string        `json:"description,omitempty" bson:"description,omitempty"`
	StartTime    time.Time     `json:"start_time" bson:"start_time"`
	Duration     int           `json:"duration" bson:"duration"`
	EndTime      time.Time     `json:"end_time" bson:"end_time"`
	Type         MeetingType   `json:"type" bson:"type"`
	Status       MeetingStatus `json:"status" bson:"status"`
	LocationID   string        `json:"location_id,omitempty" bson:"location_id,omitempty"`
	Notes        string        `json:"notes,omitempty" bson:"notes,omitempty"`
	Participants []string      `json:"participants" bson:"participants"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at"`

	Location  *MeetingLocation     `json:"location,omitempty" bson:"-"`
	Session   *ConferencingSession `json:"conferencing_session,omitempty" bson:"-"`
	Organizer *User                `json:"organizer,omitempty" bson:"-"`
	HostKey   string               `json:"host_key,omitempty" bson:"-"`
}

// ComputeEndTime derives EndTime from StartTime and Duration.
func (m *Meeting) ComputeEndTime() {
	m.StartTime = m.StartTime.UTC()
	m.EndTime = m.StartTime.Add(time.Duration(m.Duration) * time.Minute)
}

// HasParticipant reports whether userID is on the roster.
func (m *Meeting) HasParticipant(userID string) bool {
	for _, id := range m.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// MeetingInput is the create request. Pointer fields on MeetingUpdate mark
// overrides; here every field is taken as given.
type MeetingInput struct {
	Topic        string         `json:"topic" validate:"required,max=255"`
	Description  string         `json:"description,omitempty" validate:"omitempty,max=5000"`
	StartTime    time.Time      `json:"start_time" validate:"required"`
	Duration     int            `json:"duration" validate:"required,min=1,max=1440"`
	Type         string         `json:"type" validate:"required,meeting_type"`
	LocationID   string         `json:"location_id,omitempty" validate:"omitempty,mongodb"`
	Notes        string         `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Password     string         `json:"password,omitempty" validate:"omitempty,max=10"`
	Settings     map[string]any `json:"settings,omitempty"`
	Participants []string       `json:"participants,omitempty" validate:"omitempty,dive,mongodb"`
}

type MeetingUpdate struct {
	Topic        *string        `json:"topic,omitempty" validate:"omitempty,min=1,max=255"`
	Description  *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	StartTime    *time.Time     `json:"start_time,omitempty"`
	Duration     *int           `json:"duration,omitempty" validate:"omitempty,min=1,max=1440"`
	Type         *string        `json:"type,omitempty" validate:"omitempty,meeting_type"`
	Status       *string        `json:"status,omitempty" validate:"omitempty,meeting_status"`
	LocationID   *string        `json:"location_id,omitempty" validate:"omitempty,mongodb"`
	Notes        *string        `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Settings     map[string]any `json:"settings,omitempty"`
	Participants *[]string      `json:"participants,omitempty" validate:"omitempty,dive,mongodb"`
}

// MeetingFilter narrows list queries. Zero values are ignored.
type MeetingFilter struct {
	Topic       string
	Type        MeetingType
	Status      MeetingStatus
	LocationID  string
	Day         *time.Time
	From        *time.Time
	To          *time.Time
	OrganizerID string
}
