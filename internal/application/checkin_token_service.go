package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

const (
	// MinTokenMinutes and MaxTokenMinutes bound a check-in token's lifetime.
	MinTokenMinutes = 1
	MaxTokenMinutes = 30

	tokenBytes = 32
)

// CheckinTokenStore captures the token writes and lookups on meetings.
type CheckinTokenStore interface {
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// ReplaceCheckinToken overwrites any stored token in one write, provided
	// the meeting is still in requiredStatus (persistence.ErrStaleStatus otherwise).
	ReplaceCheckinToken(ctx context.Context, meetingID, token string, expiresAt time.Time, requiredStatus scheduler.Status) error
	ClearCheckinToken(ctx context.Context, meetingID string) error
	// GetMeetingByActiveToken returns the owning meeting only while it is ongoing and now is before the expiry.
	GetMeetingByActiveToken(ctx context.Context, token string, now time.Time) (Meeting, error)
}

// CheckinTokenServiceDeps bundles the collaborators of CheckinTokenService.
type CheckinTokenServiceDeps struct {
	Meetings       CheckinTokenStore
	TokenGenerator func() (string, error)
	Now            func() time.Time
	Metrics        MetricsRecorder
	Logger         *slog.Logger
}

// CheckinTokenService issues, reports and revokes the single check-in token a meeting may hold.
type CheckinTokenService struct {
	meetings       CheckinTokenStore
	tokenGenerator func() (string, error)
	now            func() time.Time
	metrics        MetricsRecorder
	logger         *slog.Logger
}

// NewCheckinTokenService wires dependencies for the token service.
func NewCheckinTokenService(deps CheckinTokenServiceDeps) *CheckinTokenService {
	if deps.TokenGenerator == nil {
		deps.TokenGenerator = NewOpaqueToken
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &CheckinTokenService{
		meetings:       deps.Meetings,
		tokenGenerator: deps.TokenGenerator,
		now:            deps.Now,
		metrics:        defaultMetrics(deps.Metrics),
		logger:         defaultLogger(deps.Logger),
	}
}

// NewOpaqueToken returns 256 random bits, URL-safe base64 encoded.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *CheckinTokenService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CheckinTokenService", operation, attrs...)
}

// GenerateToken issues a new token for an ongoing meeting. Any previous token
// stops resolving at the moment the new one is stored.
func (s *CheckinTokenService) GenerateToken(ctx context.Context, params GenerateTokenParams) (issued CheckinToken, err error) {
	if s == nil {
		err = fmt.Errorf("CheckinTokenService is nil")
		return
	}

	const op = "generate_token"
	logger := s.loggerWith(ctx, "GenerateToken",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
		"duration_minutes", params.DurationMinutes,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate check-in token", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.metrics.ObserveTokenIssued()
		logger.With("expires_at", issued.ExpiresAt).InfoContext(ctx, "check-in token issued")
	}()

	if params.DurationMinutes < MinTokenMinutes || params.DurationMinutes > MaxTokenMinutes {
		err = newValidationError("duration_minutes", fmt.Sprintf("duration must be between %d and %d minutes", MinTokenMinutes, MaxTokenMinutes))
		return
	}

	var meeting Meeting
	meeting, err = s.loadAuthorized(ctx, op, params.Principal, params.MeetingID)
	if err != nil {
		return
	}
	if meeting.Status != scheduler.StatusOngoing {
		err = stateGuard(op, meeting.Status, "check-in tokens can only be issued while the meeting is ongoing")
		return
	}

	var token string
	token, err = s.tokenGenerator()
	if err != nil {
		return
	}
	if token == "" {
		err = fmt.Errorf("token generator returned an empty token")
		return
	}
	expiresAt := s.now().Add(time.Duration(params.DurationMinutes) * time.Minute)

	err = s.meetings.ReplaceCheckinToken(ctx, meeting.ID, token, expiresAt, scheduler.StatusOngoing)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleStatus) {
			err = stateGuard(op, meeting.Status, "meeting left ongoing while the token was issued")
			return
		}
		err = mapMeetingRepoError(err)
		return
	}

	issued = CheckinToken{MeetingID: meeting.ID, Token: token, ExpiresAt: expiresAt}
	return
}

// GetStatus reports whether the meeting's token is active. Unlike ResolveToken
// it distinguishes an expired token from no token.
func (s *CheckinTokenService) GetStatus(ctx context.Context, principal Principal, meetingID string) (status TokenStatus, err error) {
	if s == nil {
		err = fmt.Errorf("CheckinTokenService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetStatus",
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to read check-in token status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "check-in token status read", "active", status.Active, "expired", status.Expired)
	}()

	var meeting Meeting
	meeting, err = s.loadAuthorized(ctx, "token_status", principal, meetingID)
	if err != nil {
		return
	}
	status = tokenStatusAt(meeting, s.now())
	return
}

// Invalidate clears the meeting's token immediately, whatever its remaining lifetime.
func (s *CheckinTokenService) Invalidate(ctx context.Context, principal Principal, meetingID string) (err error) {
	if s == nil {
		return fmt.Errorf("CheckinTokenService is nil")
	}

	logger := s.loggerWith(ctx, "Invalidate",
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to invalidate check-in token", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "check-in token invalidated")
	}()

	meeting, err := s.loadAuthorized(ctx, "invalidate_token", principal, meetingID)
	if err != nil {
		return err
	}
	if err = s.meetings.ClearCheckinToken(ctx, meeting.ID); err != nil {
		return mapMeetingRepoError(err)
	}
	return nil
}

// ResolveToken returns the ongoing meeting owning an active token. Unknown,
// expired and invalidated tokens, and tokens left on a meeting that is no
// longer ongoing, all yield ErrTokenInvalid.
func (s *CheckinTokenService) ResolveToken(ctx context.Context, token string) (Meeting, error) {
	if s == nil {
		return Meeting{}, fmt.Errorf("CheckinTokenService is nil")
	}
	if s.meetings == nil {
		return Meeting{}, fmt.Errorf("meeting repository not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Meeting{}, ErrTokenInvalid
	}
	meeting, err := s.meetings.GetMeetingByActiveToken(ctx, token, s.now())
	if err != nil {
		if isNotFoundError(err) {
			return Meeting{}, ErrTokenInvalid
		}
		s.loggerWith(ctx, "ResolveToken").ErrorContext(ctx, "token lookup failed", "error", err, "error_kind", ErrorKind(err))
		return Meeting{}, fmt.Errorf("resolve token: %w", err)
	}
	if meeting.Status != scheduler.StatusOngoing {
		return Meeting{}, ErrTokenInvalid
	}
	return meeting, nil
}

func (s *CheckinTokenService) loadAuthorized(ctx context.Context, op string, principal Principal, meetingID string) (Meeting, error) {
	if s.meetings == nil {
		return Meeting{}, fmt.Errorf("meeting repository not configured")
	}
	if strings.TrimSpace(meetingID) == "" {
		return Meeting{}, ErrNotFound
	}
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, mapMeetingRepoError(err)
	}
	if !canOperateCheckin(meeting, principal) {
		return Meeting{}, roleGuard(op, meeting.Status, "only the organizer or a moderator may manage check-in tokens")
	}
	return meeting, nil
}

// tokenStatusAt evaluates token expiry as a pure predicate on now. A token
// stored on a meeting that left ongoing reports as expired, matching ResolveToken.
func tokenStatusAt(m Meeting, now time.Time) TokenStatus {
	if m.CheckinToken == "" || m.CheckinTokenExpiresAt == nil {
		return TokenStatus{}
	}
	expiresAt := *m.CheckinTokenExpiresAt
	if m.Status != scheduler.StatusOngoing || !now.Before(expiresAt) {
		return TokenStatus{Expired: true, ExpiresAt: &expiresAt}
	}
	return TokenStatus{
		Active:           true,
		Token:            m.CheckinToken,
		ExpiresAt:        &expiresAt,
		RemainingSeconds: int(math.Ceil(expiresAt.Sub(now).Seconds())),
	}
}
