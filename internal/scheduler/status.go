package scheduler

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the five lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// DefaultBlockingStatuses are the statuses that hold a room reservation.
var DefaultBlockingStatuses = []Status{StatusScheduled, StatusOngoing}

// IsBlocking reports whether s counts toward the room no-overlap rule.
func IsBlocking(s Status) bool {
	return s == StatusScheduled || s == StatusOngoing
}

// Role is a participant's role within one meeting.
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

func (r Role) Valid() bool {
	return r == RoleModerator || r == RoleParticipant
}

// Attendance is a participant's attendance status.
type Attendance string

const (
	AttendanceInvited   Attendance = "invited"
	AttendanceConfirmed Attendance = "confirmed"
	AttendanceAttended  Attendance = "attended"
	AttendanceAbsent    Attendance = "absent"
	AttendanceExcused   Attendance = "excused"
)

func (a Attendance) Valid() bool {
	switch a {
	case AttendanceInvited, AttendanceConfirmed, AttendanceAttended, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// Transition names an operation of the meeting state machine.
type Transition string

const (
	TransitionEdit     Transition = "edit"
	TransitionDelete   Transition = "delete"
	TransitionSchedule Transition = "schedule"
	TransitionStart    Transition = "start"
	TransitionComplete Transition = "complete"
	TransitionCancel   Transition = "cancel"
)

var allowedFrom = map[Transition][]Status{
	TransitionEdit:     {StatusDraft, StatusCancelled},
	TransitionDelete:   {StatusDraft, StatusCancelled},
	TransitionSchedule: {StatusDraft},
	TransitionStart:    {StatusDraft, StatusScheduled},
	TransitionComplete: {StatusOngoing},
	TransitionCancel:   {StatusDraft, StatusScheduled},
}

// Allowed reports whether op may be applied to a meeting in status from.
func Allowed(op Transition, from Status) bool {
	for _, s := range allowedFrom[op] {
		if s == from {
			return true
		}
	}
	return false
}

// AllowedFrom lists the source statuses accepted by op.
func AllowedFrom(op Transition) []Status {
	src := allowedFrom[op]
	out := make([]Status, len(src))
	copy(out, src)
	return out
}

// Target returns the status a transition moves a meeting into. Edit and
// delete have no fixed target.
func Target(op Transition) (Status, bool) {
	switch op {
	case TransitionSchedule:
		return StatusScheduled, true
	case TransitionStart:
		return StatusOngoing, true
	case TransitionComplete:
		return StatusCompleted, true
	case TransitionCancel:
		return StatusCancelled, true
	}
	return "", false
}

// Activates reports whether moving from -> to takes a room reservation.
func Activates(from, to Status) bool {
	return IsBlocking(to) && !IsBlocking(from)
}
