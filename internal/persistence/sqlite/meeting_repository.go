package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository using SQLite.
// Every write that can place a meeting on the room calendar re-checks the
// room window inside its transaction; with _txlock=immediate the check and
// the write are serialized against other writers.
type MeetingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{pool: pool, mapper: NewErrorMapper()}
}

const meetingColumns = `id, title, description, room_id, organizer_id, meeting_date, start_time, end_time, status, checkin_token, checkin_token_expires_at, created_at, updated_at`

const participantColumns = `id, meeting_id, user_id, role, attendance_status, check_in_time, position`

const statusOngoing = "ongoing"

var blockingStatuses = []string{"scheduled", statusOngoing}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateMeeting inserts the meeting and its roster.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if isBlocking(meeting.Status) {
			if err := r.guardOverlap(ctx, tx, meeting); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO meetings (`+meetingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)
		`,
			meeting.ID,
			meeting.Title,
			meeting.Description,
			meeting.RoomID,
			meeting.OrganizerID,
			meeting.Date,
			meeting.StartTime,
			meeting.EndTime,
			meeting.Status,
			formatTime(meeting.CreatedAt),
			formatTime(meeting.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertParticipants(ctx, tx, meeting.ID, meeting.Participants)
	})
}

// UpdateMeeting rewrites the meeting and replaces its roster wholesale.
func (r *MeetingRepository) UpdateMeeting(ctx context.Context, meeting persistence.Meeting, expectStatuses []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.expectStatus(ctx, tx, meeting.ID, expectStatuses); err != nil {
			return err
		}
		if isBlocking(meeting.Status) {
			if err := r.guardOverlap(ctx, tx, meeting); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE meetings
			SET title = ?, description = ?, room_id = ?, meeting_date = ?, start_time = ?, end_time = ?, status = ?, updated_at = ?
			WHERE id = ?
		`,
			meeting.Title,
			meeting.Description,
			meeting.RoomID,
			meeting.Date,
			meeting.StartTime,
			meeting.EndTime,
			meeting.Status,
			formatTime(meeting.UpdatedAt),
			meeting.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM meeting_participants WHERE meeting_id = ?`, meeting.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertParticipants(ctx, tx, meeting.ID, meeting.Participants)
	})
}

// GetMeeting loads a meeting with its roster in roster order.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	return r.loadMeeting(ctx, r.pool.DB(), `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
}

// ListMeetings returns meetings ordered by date and start time.
func (r *MeetingRepository) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var clauses []string
	var args []any
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Date != "" {
		clauses = append(clauses, "meeting_date = ?")
		args = append(args, filter.Date)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY meeting_date, start_time, id"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	var meetings []persistence.Meeting
	for rows.Next() {
		meeting, err := r.scanMeeting(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	for i := range meetings {
		participants, err := r.loadParticipants(ctx, r.pool.DB(), meetings[i].ID)
		if err != nil {
			return nil, err
		}
		meetings[i].Participants = participants
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting and its roster while its status is one of expectStatuses.
func (r *MeetingRepository) DeleteMeeting(ctx context.Context, id string, expectStatuses []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.expectStatus(ctx, tx, id, expectStatuses); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireRow(result)
	})
}

// UpdateStatus applies a compare-and-set status change with its side effects.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, change persistence.StatusChange) (persistence.Meeting, error) {
	var updated persistence.Meeting
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.loadMeeting(ctx, tx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, change.MeetingID)
		if err != nil {
			return err
		}
		if current.Status != change.From {
			return persistence.ErrStaleStatus
		}
		if change.GuardOverlap && isBlocking(change.To) {
			if err := r.guardOverlap(ctx, tx, current); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE meetings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			change.To, formatTime(change.UpdatedAt), change.MeetingID, change.From,
		); err != nil {
			return r.mapper.MapError(err)
		}

		if change.MarkAbsent {
			if _, err := tx.ExecContext(ctx, `
				UPDATE meeting_participants
				SET attendance_status = 'absent', check_in_time = NULL
				WHERE meeting_id = ? AND attendance_status <> 'attended'
			`, change.MeetingID); err != nil {
				return r.mapper.MapError(err)
			}
		}

		updated, err = r.loadMeeting(ctx, tx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, change.MeetingID)
		return err
	})
	if err != nil {
		return persistence.Meeting{}, err
	}
	return updated, nil
}

// ReplaceCheckinToken overwrites the meeting's token in one statement, so the
// previous token stops resolving at the same instant the new one starts.
func (r *MeetingRepository) ReplaceCheckinToken(ctx context.Context, meetingID, token string, expiresAt time.Time, requiredStatus string) error {
	if strings.TrimSpace(token) == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE meetings
			SET checkin_token = ?, checkin_token_expires_at = ?
			WHERE id = ? AND status = ?
		`, token, formatTime(expiresAt), meetingID, requiredStatus)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireRow(result); err == nil {
			return nil
		}
		if _, err := r.expectStatus(ctx, tx, meetingID, nil); err != nil {
			return err
		}
		return persistence.ErrStaleStatus
	})
}

// ClearCheckinToken removes the meeting's token and expiry together.
func (r *MeetingRepository) ClearCheckinToken(ctx context.Context, meetingID string) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE meetings SET checkin_token = NULL, checkin_token_expires_at = NULL WHERE id = ?
	`, meetingID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRow(result)
}

// GetMeetingByActiveToken resolves a token only while the meeting is ongoing
// and now is before its expiry. Unknown, expired and orphaned tokens all yield
// ErrNotFound.
func (r *MeetingRepository) GetMeetingByActiveToken(ctx context.Context, token string, now time.Time) (persistence.Meeting, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	meeting, err := r.loadMeeting(ctx, r.pool.DB(), `SELECT `+meetingColumns+` FROM meetings WHERE checkin_token = ? AND status = ?`, token, statusOngoing)
	if err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.CheckinTokenExpiresAt == nil || !now.Before(*meeting.CheckinTokenExpiresAt) {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

// MarkAttended sets a participant to attended unless it already is.
func (r *MeetingRepository) MarkAttended(ctx context.Context, participantID string, checkInTime int) (bool, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE meeting_participants
		SET attendance_status = 'attended', check_in_time = ?
		WHERE id = ? AND attendance_status <> 'attended'
	`, checkInTime, participantID)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}

	var exists int
	err = r.pool.DB().QueryRowContext(ctx, `SELECT 1 FROM meeting_participants WHERE id = ?`, participantID).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return false, nil
}

// guardOverlap fails with *persistence.OverlapError when another blocking
// meeting holds an overlapping half-open window in the same room and date.
func (r *MeetingRepository) guardOverlap(ctx context.Context, tx *sql.Tx, meeting persistence.Meeting) error {
	var overlap persistence.OverlapError
	err := tx.QueryRowContext(ctx, `
		SELECT id, room_id, meeting_date, start_time, end_time, status
		FROM meetings
		WHERE room_id = ? AND meeting_date = ? AND id <> ?
		  AND status IN (?, ?)
		  AND start_time < ? AND ? < end_time
		ORDER BY start_time, id
		LIMIT 1
	`,
		meeting.RoomID, meeting.Date, meeting.ID,
		blockingStatuses[0], blockingStatuses[1],
		meeting.EndTime, meeting.StartTime,
	).Scan(&overlap.MeetingID, &overlap.RoomID, &overlap.Date, &overlap.StartTime, &overlap.EndTime, &overlap.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return &overlap
}

// expectStatus returns the stored status, ErrNotFound when the meeting is
// missing, or ErrStaleStatus when the status is not in expected.
func (r *MeetingRepository) expectStatus(ctx context.Context, tx *sql.Tx, id string, expected []string) (string, error) {
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM meetings WHERE id = ?`, id).Scan(&status); err != nil {
		return "", r.mapper.MapError(err)
	}
	if len(expected) == 0 {
		return status, nil
	}
	for _, s := range expected {
		if s == status {
			return status, nil
		}
	}
	return status, persistence.ErrStaleStatus
}

func (r *MeetingRepository) insertParticipants(ctx context.Context, tx *sql.Tx, meetingID string, participants []persistence.Participant) error {
	for i, p := range participants {
		var checkIn sql.NullInt64
		if p.CheckInTime != nil {
			checkIn = sql.NullInt64{Int64: int64(*p.CheckInTime), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meeting_participants (`+participantColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, meetingID, p.UserID, p.Role, p.AttendanceStatus, checkIn, i)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *MeetingRepository) loadMeeting(ctx context.Context, q queryer, query string, args ...any) (persistence.Meeting, error) {
	meeting, err := r.scanMeeting(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.Participants, err = r.loadParticipants(ctx, q, meeting.ID); err != nil {
		return persistence.Meeting{}, err
	}
	return meeting, nil
}

func (r *MeetingRepository) scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var m persistence.Meeting
	var token, tokenExpiresAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.RoomID,
		&m.OrganizerID,
		&m.Date,
		&m.StartTime,
		&m.EndTime,
		&m.Status,
		&token,
		&tokenExpiresAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	if token.Valid {
		m.CheckinToken = &token.String
	}

	var err error
	if m.CheckinTokenExpiresAt, err = parseNullTime("checkin_token_expires_at", tokenExpiresAt); err != nil {
		return persistence.Meeting{}, err
	}
	if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Meeting{}, err
	}
	if m.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Meeting{}, err
	}
	return m, nil
}

func (r *MeetingRepository) loadParticipants(ctx context.Context, q queryer, meetingID string) ([]persistence.Participant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM meeting_participants
		WHERE meeting_id = ?
		ORDER BY position, id
	`, meetingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var participants []persistence.Participant
	for rows.Next() {
		var p persistence.Participant
		var checkIn sql.NullInt64
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.UserID, &p.Role, &p.AttendanceStatus, &checkIn, &p.Position); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if checkIn.Valid {
			v := int(checkIn.Int64)
			p.CheckInTime = &v
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return participants, nil
}

func isBlocking(status string) bool {
	for _, s := range blockingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
