package scheduler

import "time"

// StartLeadTime is how early before its scheduled start a meeting may be started.
const StartLeadTime = 30 * time.Minute

// Booking is a meeting's claim on a room for part of a day.
type Booking struct {
	MeetingID string
	RoomID    string
	Date      Date
	Start     TimeOfDay
	End       TimeOfDay
	Status    Status
}

// Window is the room/time slot a meeting wants to hold.
type Window struct {
	RoomID string
	Date   Date
	Start  TimeOfDay
	End    TimeOfDay
}

// Conflict details the booking a candidate window collides with.
type Conflict struct {
	WithMeetingID string
	RoomID        string
	Date          Date
	Start         TimeOfDay
	End           TimeOfDay
	Status        Status
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2) intersect.
// Intervals that only touch do not overlap.
func Overlaps(s1, e1, s2, e2 TimeOfDay) bool {
	return s1 < e2 && s2 < e1
}

// FindConflict returns the first existing booking that blocks the candidate.
// Bookings in other rooms or dates, with a non-blocking status, or whose
// MeetingID equals excludeID are ignored. A nil blocking set means
// DefaultBlockingStatuses.
func FindConflict(existing []Booking, candidate Window, excludeID string, blocking []Status) (Conflict, bool) {
	if blocking == nil {
		blocking = DefaultBlockingStatuses
	}
	for _, b := range existing {
		if b.RoomID != candidate.RoomID || b.Date != candidate.Date {
			continue
		}
		if excludeID != "" && b.MeetingID == excludeID {
			continue
		}
		if !containsStatus(blocking, b.Status) {
			continue
		}
		if Overlaps(candidate.Start, candidate.End, b.Start, b.End) {
			return Conflict{
				WithMeetingID: b.MeetingID,
				RoomID:        b.RoomID,
				Date:          b.Date,
				Start:         b.Start,
				End:           b.End,
				Status:        b.Status,
			}, true
		}
	}
	return Conflict{}, false
}

// HasConflict is the boolean form of FindConflict.
func HasConflict(existing []Booking, candidate Window, excludeID string, blocking []Status) bool {
	_, found := FindConflict(existing, candidate, excludeID, blocking)
	return found
}

// StartOpensAt returns the earliest instant a meeting may be started.
func StartOpensAt(date Date, start TimeOfDay, loc *time.Location) (time.Time, error) {
	at, err := date.At(start, loc)
	if err != nil {
		return time.Time{}, err
	}
	return at.Add(-StartLeadTime), nil
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
