// Package notify delivers meeting status notifications to logs and message brokers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/logging"
)

// EventStatusChanged is the event type carried by every published message.
const EventStatusChanged = "meeting.status_changed"

// StatusEvent is the wire form of a status notification.
type StatusEvent struct {
	Type          string    `json:"type"`
	MeetingID     string    `json:"meetingId"`
	Title         string    `json:"title"`
	RoomID        string    `json:"roomId"`
	Date          string    `json:"date"`
	StartTime     string    `json:"startTime"`
	EndTime       string    `json:"endTime"`
	ParticipantID string    `json:"participantId"`
	UserID        string    `json:"userId"`
	Role          string    `json:"role"`
	Previous      string    `json:"previousStatus"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewStatusEvent converts n into its wire form.
func NewStatusEvent(n application.StatusNotification) StatusEvent {
	return StatusEvent{
		Type:          EventStatusChanged,
		MeetingID:     n.MeetingID,
		Title:         n.Title,
		RoomID:        n.RoomID,
		Date:          n.Date.String(),
		StartTime:     n.StartTime.String(),
		EndTime:       n.EndTime.String(),
		ParticipantID: n.Participant.ID,
		UserID:        n.Participant.UserID,
		Role:          string(n.Participant.Role),
		Previous:      string(n.Previous),
		Status:        string(n.Status),
		OccurredAt:    n.OccurredAt.UTC(),
	}
}

// LogNotifier writes each notification as a structured log record.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier falls back to slog.Default when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyStatusChanged implements application.Notifier.
func (n *LogNotifier) NotifyStatusChanged(ctx context.Context, note application.StatusNotification) error {
	logger := n.logger
	if scoped := logging.FromContext(ctx); scoped != nil {
		logger = scoped
	}
	logger.InfoContext(ctx, "meeting status notification",
		"meeting_id", note.MeetingID,
		"participant_id", note.Participant.ID,
		"user_id", note.Participant.UserID,
		"previous_status", note.Previous,
		"status", note.Status,
	)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []application.Notifier

// NotifyStatusChanged implements application.Notifier.
func (m Multi) NotifyStatusChanged(ctx context.Context, note application.StatusNotification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.NotifyStatusChanged(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ application.Notifier = (*LogNotifier)(nil)
	_ application.Notifier = Multi(nil)
)
