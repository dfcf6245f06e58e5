package model

import "time"

const (
	EventMeetingCreated = "meeting.created"
	EventMeetingUpdated = "meeting.updated"
	EventMeetingDeleted = "meeting.deleted"
)

// MeetingEvent is the payload published for meeting lifecycle changes.
type MeetingEvent struct {
	Type        string        `json:"type"`
	MeetingID   string        `json:"meeting_id"`
	UUID        string        `json:"uuid,omitempty"`
	OrganizerID string        `json:"organizer_id,omitempty"`
	MeetingType MeetingType   `json:"meeting_type,omitempty"`
	Status      MeetingStatus `json:"status,omitempty"`
	StartTime   time.Time     `json:"start_time,omitempty"`
	EndTime     time.Time     `json:"end_time,omitempty"`
	LocationID  string        `json:"location_id,omitempty"`
	AccountID   string        `json:"account_id,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// SessionStatusEvent is consumed from the provider status topic.
type SessionStatusEvent struct {
	ProviderSessionID string    `json:"provider_session_id"`
	Status            string    `json:"status"`
	OccurredAt        time.Time `json:"occurred_at"`
}
