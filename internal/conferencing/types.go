package conferencing

import (
	"encoding/json"
	"strings"
	"time"

	"meetly/pkg/model"
)

// ScheduledSessionType is the provider's code for a one-off scheduled session.
const ScheduledSessionType = 2

// DefaultSettings applied to every new session unless overridden.
func DefaultSettings() map[string]any {
	return map[string]any{
		"host_video":        true,
		"participant_video": true,
		"join_before_host":  true,
		"mute_upon_entry":   true,
		"waiting_room":      false,
	}
}

// SessionParams is the request body for creating or patching a remote session.
type SessionParams struct {
	Topic     string         `json:"topic,omitempty"`
	Type      int            `json:"type,omitempty"`
	StartTime string         `json:"start_time,omitempty"`
	Duration  int            `json:"duration,omitempty"`
	Timezone  string         `json:"timezone,omitempty"`
	Agenda    string         `json:"agenda,omitempty"`
	Password  string         `json:"password,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// NewSessionParams builds create parameters for a meeting. overrides are
// merged on top of DefaultSettings.
func NewSessionParams(meeting *model.Meeting, timezone, password string, overrides map[string]any) SessionParams {
	settings := DefaultSettings()
	for k, v := range overrides {
		settings[k] = v
	}
	return SessionParams{
		Topic:     meeting.Topic,
		Type:      ScheduledSessionType,
		StartTime: meeting.StartTime.UTC().Format(time.RFC3339),
		Duration:  meeting.Duration,
		Timezone:  timezone,
		Agenda:    meeting.Description,
		Password:  password,
		Settings:  settings,
	}
}

// RemoteSession is the provider's representation of a session.
type RemoteSession struct {
	ID        json.Number    `json:"id"`
	UUID      string         `json:"uuid"`
	HostID    string         `json:"host_id"`
	HostEmail string         `json:"host_email"`
	Topic     string         `json:"topic"`
	Type      int            `json:"type"`
	Status    string         `json:"status"`
	StartTime string         `json:"start_time"`
	Duration  int            `json:"duration"`
	Timezone  string         `json:"timezone"`
	CreatedAt string         `json:"created_at"`
	StartURL  string         `json:"start_url"`
	JoinURL   string         `json:"join_url"`
	Password  string         `json:"password"`
	Settings  map[string]any `json:"settings"`
}

// ApplyTo copies the provider fields onto a local mirror row.
func (r *RemoteSession) ApplyTo(s *model.ConferencingSession) {
	s.ProviderID = r.ID.String()
	s.ProviderUUID = r.UUID
	s.HostID = r.HostID
	s.HostEmail = r.HostEmail
	s.Type = r.Type
	s.Status = r.Status
	if t, ok := parseTime(r.StartTime); ok {
		s.StartTime = t
	}
	s.Duration = r.Duration
	s.Timezone = r.Timezone
	if t, ok := parseTime(r.CreatedAt); ok {
		s.CreatedAtProvider = &t
	}
	s.StartURL = r.StartURL
	s.JoinURL = r.JoinURL
	s.Password = r.Password
	s.Settings = r.Settings
}

// ToModel builds a new mirror row bound to a meeting and the account it runs on.
func (r *RemoteSession) ToModel(meetingID, accountID string) *model.ConferencingSession {
	s := &model.ConferencingSession{
		MeetingID: meetingID,
		AccountID: accountID,
	}
	r.ApplyTo(s)
	return s
}

type SessionList struct {
	PageSize      int             `json:"page_size"`
	TotalRecords  int             `json:"total_records"`
	NextPageToken string          `json:"next_page_token"`
	Sessions      []RemoteSession `json:"meetings"`
}

type SummaryDetail struct {
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

type SessionSummary struct {
	MeetingUUID     string          `json:"meeting_uuid"`
	SummaryTitle    string          `json:"summary_title"`
	SummaryOverview string          `json:"summary_overview"`
	SummaryDetails  []SummaryDetail `json:"summary_details"`
	NextSteps       []string        `json:"next_steps"`
}

// Content flattens the summary into plain text for storage.
func (s *SessionSummary) Content() string {
	var b strings.Builder
	if s.SummaryOverview != "" {
		b.WriteString(s.SummaryOverview)
	}
	for _, d := range s.SummaryDetails {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if d.Label != "" {
			b.WriteString(d.Label)
			b.WriteString(": ")
		}
		b.WriteString(d.Summary)
	}
	if len(s.NextSteps) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Next steps:")
		for _, step := range s.NextSteps {
			b.WriteString("\n- ")
			b.WriteString(step)
		}
	}
	return b.String()
}

type PastSessionDetails struct {
	ID                json.Number `json:"id"`
	UUID              string      `json:"uuid"`
	Topic             string      `json:"topic"`
	StartTime         string      `json:"start_time"`
	EndTime           string      `json:"end_time"`
	Duration          int         `json:"duration"`
	TotalMinutes      int         `json:"total_minutes"`
	ParticipantsCount int         `json:"participants_count"`
}

type RecordingFile struct {
	ID            string `json:"id"`
	FileType      string `json:"file_type"`
	RecordingType string `json:"recording_type"`
	PlayURL       string `json:"play_url"`
	Status        string `json:"status"`
}

type Recordings struct {
	UUID                  string          `json:"uuid"`
	ShareURL              string          `json:"share_url"`
	Password              string          `json:"password"`
	RecordingPlayPasscode string          `json:"recording_play_passcode"`
	RecordingFiles        []RecordingFile `json:"recording_files"`
}

// PlayURL prefers the shareable link, then the first video file.
func (r *Recordings) PlayURL() string {
	if r.ShareURL != "" {
		return r.ShareURL
	}
	for _, f := range r.RecordingFiles {
		if f.FileType == "MP4" && f.PlayURL != "" {
			return f.PlayURL
		}
	}
	for _, f := range r.RecordingFiles {
		if f.PlayURL != "" {
			return f.PlayURL
		}
	}
	return ""
}

// Passcode returns the play passcode, falling back to the share password.
func (r *Recordings) Passcode() string {
	if r.RecordingPlayPasscode != "" {
		return r.RecordingPlayPasscode
	}
	return r.Password
}

func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
