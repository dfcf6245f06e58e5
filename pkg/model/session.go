package model

import "time"

// Provider session statuses.
const (
	SessionStatusWaiting  = "waiting"
	SessionStatusStarted  = "started"
	SessionStatusFinished = "finished"
	SessionStatusEnded    = "ended"
)

// ConferencingSession mirrors a provider-side session. Exactly one per meeting.
type ConferencingSession struct {
	ID                string         `json:"id,omitempty" bson:"_id,omitempty"`
	MeetingID         string         `json:"meeting_id" bson:"meeting_id"`
	AccountID         string         `json:"account_id" bson:"account_id"`
	ProviderID        string         `json:"provider_id" bson:"provider_id"`
	ProviderUUID      string         `json:"provider_uuid,omitempty" bson:"provider_uuid,omitempty"`
	HostID            string         `json:"host_id,omitempty" bson:"host_id,omitempty"`
	HostEmail         string         `json:"host_email,omitempty" bson:"host_email,omitempty"`
	Type              int            `json:"type,omitempty" bson:"type,omitempty"`
	Status            string         `json:"status,omitempty" bson:"status,omitempty"`
	StartTime         time.Time      `json:"start_time" bson:"start_time"`
	Duration          int            `json:"duration" bson:"duration"`
	Timezone          string         `json:"timezone,omitempty" bson:"timezone,omitempty"`
	CreatedAtProvider *time.Time     `json:"created_at_provider,omitempty" bson:"created_at_provider,omitempty"`
	StartURL          string         `json:"start_url,omitempty" bson:"start_url,omitempty"`
	JoinURL           string         `json:"join_url" bson:"join_url"`
	Password          string         `json:"password,omitempty" bson:"password,omitempty"`
	Settings          map[string]any `json:"settings,omitempty" bson:"settings,omitempty"`
	RecordingPlayURL  string         `json:"recording_play_url,omitempty" bson:"recording_play_url,omitempty"`
	RecordingPasscode string         `json:"recording_passcode,omitempty" bson:"recording_passcode,omitempty"`
	SummaryContent    string         `json:"summary_content,omitempty" bson:"summary_content,omitempty"`
	CreatedAt         time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" bson:"updated_at"`
}

// MeetingStatusFromProvider maps a provider status to the local lifecycle.
// ok is false when the provider status carries no transition.
func MeetingStatusFromProvider(status string) (MeetingStatus, bool) {
	switch status {
	case SessionStatusStarted:
		return MeetingStatusStarted, true
	case SessionStatusFinished, SessionStatusEnded:
		return MeetingStatusFinished, true
	}
	return "", false
}
