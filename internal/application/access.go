package application

import "github.com/example/meeting-checkin/internal/scheduler"

// IsOrganizer reports whether userID organizes the meeting.
func IsOrganizer(m Meeting, userID string) bool {
	return userID != "" && m.OrganizerID == userID
}

// HasRole reports whether userID is on the roster with the given role.
func HasRole(m Meeting, userID string, role scheduler.Role) bool {
	if userID == "" {
		return false
	}
	for _, p := range m.Participants {
		if p.UserID == userID && p.Role == role {
			return true
		}
	}
	return false
}

func onRoster(m Meeting, userID string) bool {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// canManage covers edit, delete, cancel and generic status changes.
func canManage(m Meeting, p Principal) bool {
	return p.IsAdmin || IsOrganizer(m, p.UserID)
}

// canOperateCheckin covers token issue, status and invalidation.
func canOperateCheckin(m Meeting, p Principal) bool {
	return IsOrganizer(m, p.UserID) || HasRole(m, p.UserID, scheduler.RoleModerator)
}

func canView(m Meeting, p Principal) bool {
	return canManage(m, p) || onRoster(m, p.UserID)
}
