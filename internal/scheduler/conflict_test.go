package scheduler

import (
	"testing"
	"time"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{"touching end to start", "09:00", "10:00", "10:00", "11:00", false},
		{"touching start to end", "10:00", "11:00", "09:00", "10:00", false},
		{"partial overlap", "09:00", "10:00", "09:30", "10:30", true},
		{"contained", "09:00", "12:00", "10:00", "11:00", true},
		{"identical", "09:00", "10:00", "09:00", "10:00", true},
		{"disjoint", "08:00", "09:00", "10:00", "11:00", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(tod(t, tc.s1), tod(t, tc.e1), tod(t, tc.s2), tod(t, tc.e2))
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFindConflict(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{MeetingID: "a", RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0), Status: StatusScheduled},
		{MeetingID: "draft", RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(11, 0, 0), End: NewTimeOfDay(12, 0, 0), Status: StatusDraft},
		{MeetingID: "other-room", RoomID: "r2", Date: "2024-01-02", Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0), Status: StatusOngoing},
		{MeetingID: "other-day", RoomID: "r1", Date: "2024-01-03", Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0), Status: StatusOngoing},
	}

	t.Run("overlap reports the blocking booking", func(t *testing.T) {
		conflict, found := FindConflict(existing, Window{RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(9, 30, 0), End: NewTimeOfDay(10, 30, 0)}, "", nil)
		if !found {
			t.Fatalf("expected conflict")
		}
		if conflict.WithMeetingID != "a" || conflict.Start != NewTimeOfDay(9, 0, 0) || conflict.End != NewTimeOfDay(10, 0, 0) {
			t.Fatalf("unexpected conflict detail: %+v", conflict)
		}
	})

	t.Run("touching boundary is schedulable", func(t *testing.T) {
		if HasConflict(existing, Window{RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(10, 0, 0), End: NewTimeOfDay(11, 0, 0)}, "", nil) {
			t.Fatalf("expected no conflict for touching windows")
		}
	})

	t.Run("self exclusion", func(t *testing.T) {
		if HasConflict(existing, Window{RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0)}, "a", nil) {
			t.Fatalf("expected meeting not to conflict with itself")
		}
	})

	t.Run("non blocking statuses are ignored", func(t *testing.T) {
		if HasConflict(existing, Window{RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(11, 30, 0), End: NewTimeOfDay(12, 30, 0)}, "", nil) {
			t.Fatalf("expected draft booking to be ignored")
		}
	})

	t.Run("custom blocking set", func(t *testing.T) {
		if !HasConflict(existing, Window{RoomID: "r1", Date: "2024-01-02", Start: NewTimeOfDay(11, 30, 0), End: NewTimeOfDay(12, 30, 0)}, "", []Status{StatusDraft}) {
			t.Fatalf("expected draft booking to block when requested")
		}
	})

	t.Run("other rooms and dates are ignored", func(t *testing.T) {
		if HasConflict(existing, Window{RoomID: "r3", Date: "2024-01-02", Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0)}, "", nil) {
			t.Fatalf("expected no conflict in empty room")
		}
	})
}

func TestStartOpensAt(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("JST", 9*60*60)
	opens, err := StartOpensAt("2024-01-02", NewTimeOfDay(9, 0, 0), loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 2, 8, 30, 0, 0, loc)
	if !opens.Equal(want) {
		t.Fatalf("expected %v, got %v", want, opens)
	}
}
