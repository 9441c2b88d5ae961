package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/meeting-checkin/internal/logging"
	"github.com/example/meeting-checkin/internal/scheduler"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}
	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctxLogger := slog.New(slog.NewTextHandler(&scoped, nil)).With("request_id", "req-1")
	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)

	serviceLogger(ctx, baseLogger, "MeetingService", "StartMeeting", "meeting_id", "m-1").Info("started")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	out := scoped.String()
	for _, want := range []string{"request_id=req-1", "service=MeetingService", "operation=StartMeeting", "meeting_id=m-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want string
	}{
		"nil":           {err: nil, want: ""},
		"validation":    {err: newValidationError("title", "required"), want: "validation"},
		"conflict":      {err: fmt.Errorf("wrap: %w", &ConflictError{}), want: "conflict"},
		"room in use":   {err: &RoomInUseError{RoomID: "room-1"}, want: "room_in_use"},
		"role guard":    {err: roleGuard("start", scheduler.StatusScheduled, "moderator only"), want: "unauthorized"},
		"status guard":  {err: statusGuard(scheduler.TransitionCancel, scheduler.StatusOngoing), want: "guard"},
		"too early":     {err: &GuardError{Err: ErrStartTooEarly}, want: "guard"},
		"token invalid": {err: ErrTokenInvalid, want: "token_invalid"},
		"not found":     {err: ErrNotFound, want: "not_found"},
		"exists":        {err: ErrAlreadyExists, want: "already_exists"},
		"credentials":   {err: ErrInvalidCredentials, want: "invalid_credentials"},
		"expired":       {err: ErrSessionExpired, want: "session_expired"},
		"revoked":       {err: ErrSessionRevoked, want: "session_revoked"},
		"other":         {err: errors.New("boom"), want: "unexpected"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
