package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrStaleStatus is returned when a status compare-and-set finds a different current status.
	ErrStaleStatus = errors.New("persistence: meeting status changed concurrently")
	// ErrOverlap is matched by *OverlapError.
	ErrOverlap = errors.New("persistence: room window overlaps a blocking meeting")
)

// OverlapError reports the blocking meeting found inside the write transaction.
type OverlapError struct {
	MeetingID string
	RoomID    string
	Date      string
	StartTime int
	EndTime   int
	Status    string
}

func (e *OverlapError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: meeting %s holds room %s on %s", ErrOverlap.Error(), e.MeetingID, e.RoomID, e.Date)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}
