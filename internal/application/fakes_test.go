package application

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

var testZone = time.FixedZone("JST", 9*60*60)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// memoryMeetings honours the repository contract: overlap is re-checked on
// blocking writes and status writes are compare-and-set.
type memoryMeetings struct {
	mu       sync.Mutex
	meetings map[string]Meeting

	getErr   error
	listErr  error
	staleOn  map[string]bool
	hidden   map[string]bool
	statuses []StatusChange
}

func newMemoryMeetings(meetings ...Meeting) *memoryMeetings {
	r := &memoryMeetings{meetings: make(map[string]Meeting), staleOn: make(map[string]bool), hidden: make(map[string]bool)}
	for _, m := range meetings {
		r.meetings[m.ID] = cloneMeeting(m)
	}
	return r
}

func cloneMeeting(m Meeting) Meeting {
	out := m
	if m.Participants != nil {
		out.Participants = make([]Participant, len(m.Participants))
		for i, p := range m.Participants {
			out.Participants[i] = p
			if p.CheckInTime != nil {
				t := *p.CheckInTime
				out.Participants[i].CheckInTime = &t
			}
		}
	}
	if m.CheckinTokenExpiresAt != nil {
		t := *m.CheckinTokenExpiresAt
		out.CheckinTokenExpiresAt = &t
	}
	return out
}

func (r *memoryMeetings) overlapLocked(m Meeting) error {
	for _, other := range r.meetings {
		if other.ID == m.ID || other.RoomID != m.RoomID || other.Date != m.Date {
			continue
		}
		if !scheduler.IsBlocking(other.Status) {
			continue
		}
		if scheduler.Overlaps(m.StartTime, m.EndTime, other.StartTime, other.EndTime) {
			return &persistence.OverlapError{
				MeetingID: other.ID,
				RoomID:    other.RoomID,
				Date:      string(other.Date),
				StartTime: int(other.StartTime),
				EndTime:   int(other.EndTime),
				Status:    string(other.Status),
			}
		}
	}
	return nil
}

func (r *memoryMeetings) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.meetings[m.ID]; exists {
		return Meeting{}, persistence.ErrDuplicate
	}
	if scheduler.IsBlocking(m.Status) {
		if err := r.overlapLocked(m); err != nil {
			return Meeting{}, err
		}
	}
	r.meetings[m.ID] = cloneMeeting(m)
	return cloneMeeting(m), nil
}

func (r *memoryMeetings) UpdateMeeting(ctx context.Context, m Meeting, expect []scheduler.Status) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.meetings[m.ID]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	if r.staleOn[m.ID] || !containsStatus(expect, current.Status) {
		return Meeting{}, persistence.ErrStaleStatus
	}
	if scheduler.IsBlocking(m.Status) {
		if err := r.overlapLocked(m); err != nil {
			return Meeting{}, err
		}
	}
	m.CheckinToken = current.CheckinToken
	m.CheckinTokenExpiresAt = current.CheckinTokenExpiresAt
	r.meetings[m.ID] = cloneMeeting(m)
	return cloneMeeting(m), nil
}

func (r *memoryMeetings) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return Meeting{}, r.getErr
	}
	m, ok := r.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (r *memoryMeetings) ListRoomDay(ctx context.Context, roomID string, date scheduler.Date, statuses ...scheduler.Status) ([]Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Meeting
	for _, m := range r.meetings {
		if len(statuses) > 0 && !slices.Contains(statuses, m.Status) {
			continue
		}
		if m.RoomID == roomID && m.Date == date && !r.hidden[m.ID] {
			out = append(out, cloneMeeting(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryMeetings) DeleteMeeting(ctx context.Context, id string, expect []scheduler.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.meetings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if !containsStatus(expect, current.Status) {
		return persistence.ErrStaleStatus
	}
	delete(r.meetings, id)
	return nil
}

func (r *memoryMeetings) UpdateStatus(ctx context.Context, change StatusChange) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, change)
	current, ok := r.meetings[change.MeetingID]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	if r.staleOn[change.MeetingID] || current.Status != change.From {
		return Meeting{}, persistence.ErrStaleStatus
	}
	if change.GuardOverlap && scheduler.IsBlocking(change.To) {
		if err := r.overlapLocked(current); err != nil {
			return Meeting{}, err
		}
	}
	current.Status = change.To
	current.UpdatedAt = change.UpdatedAt
	if change.MarkAbsent {
		for i := range current.Participants {
			if current.Participants[i].AttendanceStatus != scheduler.AttendanceAttended {
				current.Participants[i].AttendanceStatus = scheduler.AttendanceAbsent
				current.Participants[i].CheckInTime = nil
			}
		}
	}
	r.meetings[current.ID] = current
	return cloneMeeting(current), nil
}

func (r *memoryMeetings) ReplaceCheckinToken(ctx context.Context, meetingID, token string, expiresAt time.Time, required scheduler.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.meetings[meetingID]
	if !ok {
		return persistence.ErrNotFound
	}
	if r.staleOn[meetingID] || current.Status != required {
		return persistence.ErrStaleStatus
	}
	for id, other := range r.meetings {
		if id != meetingID && other.CheckinToken == token {
			return persistence.ErrDuplicate
		}
	}
	current.CheckinToken = token
	current.CheckinTokenExpiresAt = &expiresAt
	r.meetings[meetingID] = current
	return nil
}

func (r *memoryMeetings) ClearCheckinToken(ctx context.Context, meetingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.meetings[meetingID]
	if !ok {
		return persistence.ErrNotFound
	}
	current.CheckinToken = ""
	current.CheckinTokenExpiresAt = nil
	r.meetings[meetingID] = current
	return nil
}

func (r *memoryMeetings) GetMeetingByActiveToken(ctx context.Context, token string, now time.Time) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.meetings {
		if token != "" && m.CheckinToken == token {
			if m.Status != scheduler.StatusOngoing || m.CheckinTokenExpiresAt == nil || !now.Before(*m.CheckinTokenExpiresAt) {
				return Meeting{}, persistence.ErrNotFound
			}
			return cloneMeeting(m), nil
		}
	}
	return Meeting{}, persistence.ErrNotFound
}

func (r *memoryMeetings) MarkAttended(ctx context.Context, participantID string, at scheduler.TimeOfDay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.meetings {
		for i, p := range m.Participants {
			if p.ID != participantID {
				continue
			}
			if p.AttendanceStatus == scheduler.AttendanceAttended {
				return false, nil
			}
			checkIn := at
			m.Participants[i].AttendanceStatus = scheduler.AttendanceAttended
			m.Participants[i].CheckInTime = &checkIn
			r.meetings[id] = m
			return true, nil
		}
	}
	return false, persistence.ErrNotFound
}

func (r *memoryMeetings) get(id string) Meeting {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneMeeting(r.meetings[id])
}

func containsStatus(set []scheduler.Status, s scheduler.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type roomCatalogStub map[string]Room

func (c roomCatalogStub) GetRoom(ctx context.Context, id string) (Room, error) {
	room, ok := c[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

type userDirectoryStub struct {
	users map[string]User
	err   error
}

func newUserDirectory(users ...User) *userDirectoryStub {
	d := &userDirectoryStub{users: make(map[string]User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *userDirectoryStub) LookupUsers(ctx context.Context, ids []string) (map[string]User, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []StatusNotification
	err  error
}

func (n *recordingNotifier) NotifyStatusChanged(ctx context.Context, note StatusNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	checkIns    map[CheckInOutcome]int
	tokens      int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{transitions: map[string]int{}, checkIns: map[CheckInOutcome]int{}}
}

func (m *recordingMetrics) ObserveTransition(operation, errorKind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errorKind == "" {
		errorKind = "ok"
	}
	m.transitions[operation+"/"+errorKind]++
}

func (m *recordingMetrics) ObserveCheckIn(outcome CheckInOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkIns[outcome]++
}

func (m *recordingMetrics) ObserveTokenIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens++
}

func tod(s string) scheduler.TimeOfDay {
	t, err := scheduler.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}
