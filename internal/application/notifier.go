package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/meeting-checkin/internal/scheduler"
)

// StatusNotification tells one participant that a meeting changed status.
type StatusNotification struct {
	MeetingID   string
	Title       string
	RoomID      string
	Date        scheduler.Date
	StartTime   scheduler.TimeOfDay
	EndTime     scheduler.TimeOfDay
	Participant Participant
	Previous    scheduler.Status
	Status      scheduler.Status
	OccurredAt  time.Time
}

// Notifier delivers status notifications. Failures are logged by the caller
// and never undo the transition.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, n StatusNotification) error
}

// MetricsRecorder receives lifecycle and check-in observations.
type MetricsRecorder interface {
	ObserveTransition(operation string, errorKind string)
	ObserveCheckIn(outcome CheckInOutcome)
	ObserveTokenIssued()
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransition(string, string) {}
func (noopMetrics) ObserveCheckIn(CheckInOutcome)    {}
func (noopMetrics) ObserveTokenIssued()              {}

func defaultMetrics(m MetricsRecorder) MetricsRecorder {
	if m != nil {
		return m
	}
	return noopMetrics{}
}

// notifyStatus fans out to every participant. Each failure is logged and skipped.
func notifyStatus(ctx context.Context, notifier Notifier, log *slog.Logger, m Meeting, previous scheduler.Status, at time.Time) {
	if notifier == nil {
		return
	}
	for _, p := range m.Participants {
		n := StatusNotification{
			MeetingID:   m.ID,
			Title:       m.Title,
			RoomID:      m.RoomID,
			Date:        m.Date,
			StartTime:   m.StartTime,
			EndTime:     m.EndTime,
			Participant: p,
			Previous:    previous,
			Status:      m.Status,
			OccurredAt:  at,
		}
		if err := notifier.NotifyStatusChanged(ctx, n); err != nil {
			log.WarnContext(ctx, "status notification failed",
				"participant_id", p.ID,
				"user_id", p.UserID,
				"error", err,
			)
		}
	}
}
