package application

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/example/meeting-checkin/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", nilErr.Error())
	}
	if got := (&ValidationError{}).Error(); got != "validation failed" {
		t.Fatalf("expected generic message, got %q", got)
	}

	vErr := &ValidationError{}
	vErr.add("start_time", "bad")
	vErr.add("end_time", "bad")
	if got := vErr.Error(); got != "validation failed: end_time, start_time" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	if vErr.HasErrors() {
		t.Fatalf("expected empty error to report no errors")
	}
	vErr.add("title", "title is required")
	vErr.add("title", "title is too long")
	if got := vErr.FieldErrors["title"]; got != "title is required" {
		t.Fatalf("expected first message to win, got %q", got)
	}
	if !vErr.HasErrors() {
		t.Fatalf("expected HasErrors after add")
	}
}

func TestGuardError(t *testing.T) {
	t.Parallel()

	g := statusGuard(scheduler.TransitionStart, scheduler.StatusCompleted)
	if !errors.Is(g, ErrInvalidTransition) {
		t.Fatalf("expected guard to wrap ErrInvalidTransition")
	}
	if !strings.Contains(g.Error(), "start rejected while completed") {
		t.Fatalf("unexpected message %q", g.Error())
	}
	if !strings.Contains(g.Reason, "draft or scheduled") {
		t.Fatalf("expected allowed statuses in reason, got %q", g.Reason)
	}

	wrapped := fmt.Errorf("handler: %w", roleGuard("complete", scheduler.StatusOngoing, "moderator only"))
	var guard *GuardError
	if !errors.As(wrapped, &guard) || guard.Operation != "complete" {
		t.Fatalf("expected GuardError through wrapping, got %v", wrapped)
	}
	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Fatalf("expected role guard to match ErrUnauthorized")
	}
}

func TestErrTokenInvalidMatchesNotFound(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrTokenInvalid, ErrNotFound) {
		t.Fatalf("expected ErrTokenInvalid to match ErrNotFound")
	}
	if errors.Is(ErrNotFound, ErrTokenInvalid) {
		t.Fatalf("plain not found must not look like a token failure")
	}
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	err := &ConflictError{Conflict: scheduler.Conflict{
		WithMeetingID: "m-1",
		RoomID:        "room-1",
		Date:          scheduler.Date("2025-04-01"),
		Start:         tod("10:00"),
		End:           tod("11:00"),
	}}
	want := "room room-1 is held by meeting m-1 on 2025-04-01 from 10:00 to 11:00"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
