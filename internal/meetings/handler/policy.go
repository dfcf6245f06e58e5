package handler

import (
	"meetly/pkg/middleware"
	"meetly/pkg/model"
)

func isOrganizer(p *middleware.Principal, m *model.Meeting) bool {
	return p != nil && p.UserID == m.OrganizerID
}

func canView(p *middleware.Principal, m *model.Meeting) bool {
	return isOrganizer(p, m) || p.Can(middleware.PermissionViewMeetings) || (p != nil && m.HasParticipant(p.UserID))
}

// canViewAttendance excludes plain participants.
func canViewAttendance(p *middleware.Principal, m *model.Meeting) bool {
	return isOrganizer(p, m) || p.Can(middleware.PermissionViewMeetings)
}

func canEdit(p *middleware.Principal, m *model.Meeting) bool {
	return isOrganizer(p, m) || p.Can(middleware.PermissionEditMeetings)
}

func canDelete(p *middleware.Principal, m *model.Meeting) bool {
	return isOrganizer(p, m) || p.Can(middleware.PermissionDeleteMeetings)
}

// redact strips what the caller may not see. The host key is only for the
// organizer and editors.
func redact(p *middleware.Principal, meetings ...*model.Meeting) {
	for _, m := range meetings {
		if m != nil && !canEdit(p, m) {
			m.HostKey = ""
		}
	}
}
