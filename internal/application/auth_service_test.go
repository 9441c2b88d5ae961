package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
)

func plainVerifier(hash, password string) error {
	if hash != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func sequenceTokens(tokens ...string) func() string {
	return func() string {
		if len(tokens) == 0 {
			return "fallback"
		}
		token := tokens[0]
		tokens = tokens[1:]
		return token
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, testZone)
	creds := func() *credentialStoreStub {
		return &credentialStoreStub{credentials: UserCredentials{
			User:         User{ID: "u-1", Email: "user@example.com", DisplayName: "User"},
			PasswordHash: "hashed:secret-pass",
		}}
	}

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		svc := NewAuthService(creds(), repo, plainVerifier, sequenceTokens("session-id", "session-token"), func() time.Time { return now }, time.Hour)

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: " User@Example.com ", Password: "secret-pass", Fingerprint: " device "})
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if result.Session.ID != "session-id" || result.Session.Token != "session-token" {
			t.Fatalf("unexpected session: %+v", result.Session)
		}
		if result.Session.Fingerprint != "device" {
			t.Fatalf("expected trimmed fingerprint, got %q", result.Session.Fingerprint)
		}
		if !result.Session.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected expiry after TTL, got %v", result.Session.ExpiresAt)
		}
		if len(repo.deleteCalls) != 1 || !repo.deleteCalls[0].Equal(now) {
			t.Fatalf("expected expired sessions pruned at now, got %v", repo.deleteCalls)
		}
	})

	t.Run("rejects wrong password and unknown account alike", func(t *testing.T) {
		t.Parallel()
		svc := NewAuthService(creds(), newSessionRepositoryStub(), plainVerifier, nil, nil, time.Hour)
		for _, params := range []AuthenticateParams{
			{Email: "user@example.com", Password: "wrong"},
			{Email: "nobody@example.com", Password: "secret-pass"},
			{Email: "", Password: "secret-pass"},
			{Email: "user@example.com", Password: ""},
		} {
			if _, err := svc.Authenticate(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("%+v: expected ErrInvalidCredentials, got %v", params, err)
			}
		}
	})

	t.Run("propagates store failures", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		repo := newSessionRepositoryStub()
		repo.createErr = boom
		svc := NewAuthService(creds(), repo, plainVerifier, nil, nil, time.Hour)
		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret-pass"}); !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}

		repo = newSessionRepositoryStub()
		repo.deleteErr = boom
		svc = NewAuthService(creds(), repo, plainVerifier, nil, nil, time.Hour)
		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret-pass"}); !errors.Is(err, boom) {
			t.Fatalf("expected cleanup error, got %v", err)
		}
	})

	t.Run("works with argon2id hashes", func(t *testing.T) {
		t.Parallel()
		hash, err := CreatePasswordHash("secret-pass", Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
		if err != nil {
			t.Fatalf("CreatePasswordHash returned error: %v", err)
		}
		store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u-1"}, PasswordHash: hash}}
		svc := NewAuthService(store, newSessionRepositoryStub(), nil, nil, nil, time.Hour)
		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret-pass"}); err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret-pasS"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_RefreshSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, testZone)

	t.Run("rotates token and extends expiry", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-1", Token: "old", ExpiresAt: now.Add(time.Minute), CreatedAt: now, UpdatedAt: now})
		svc := NewAuthService(nil, repo, nil, sequenceTokens("new"), func() time.Time { return now }, 2*time.Hour)

		session, err := svc.RefreshSession(context.Background(), " old ")
		if err != nil {
			t.Fatalf("RefreshSession returned error: %v", err)
		}
		if session.Token != "new" || !session.ExpiresAt.Equal(now.Add(2*time.Hour)) {
			t.Fatalf("unexpected session: %+v", session)
		}
		if _, err := repo.GetSession(context.Background(), "old"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected old token to be gone, got %v", err)
		}
	})

	t.Run("rejects expired revoked and unknown sessions", func(t *testing.T) {
		t.Parallel()
		revokedAt := now.Add(-time.Minute)
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-1", Token: "expired", ExpiresAt: now})
		repo.seed(Session{ID: "s-2", UserID: "u-1", Token: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt})
		svc := NewAuthService(nil, repo, nil, nil, func() time.Time { return now }, time.Hour)

		cases := map[string]error{
			"expired": ErrSessionExpired,
			"revoked": ErrSessionRevoked,
			"missing": ErrInvalidCredentials,
			"":        ErrInvalidCredentials,
		}
		for token, want := range cases {
			if _, err := svc.RefreshSession(context.Background(), token); !errors.Is(err, want) {
				t.Fatalf("token %q: expected %v, got %v", token, want, err)
			}
		}
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, testZone)

	t.Run("revokes active sessions", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-1", Token: "token", ExpiresAt: now.Add(time.Hour)})
		svc := NewAuthService(nil, repo, nil, nil, func() time.Time { return now }, time.Hour)

		if err := svc.RevokeSession(context.Background(), "token"); err != nil {
			t.Fatalf("RevokeSession returned error: %v", err)
		}
		if stored := repo.sessionsByID["s-1"]; stored.RevokedAt == nil {
			t.Fatalf("expected RevokedAt to be set")
		}
		if len(repo.deleteCalls) == 0 {
			t.Fatalf("expected expired sessions pruned")
		}
	})

	t.Run("unknown and blank tokens are invalid credentials", func(t *testing.T) {
		t.Parallel()
		svc := NewAuthService(nil, newSessionRepositoryStub(), nil, nil, nil, time.Hour)
		for _, token := range []string{"  ", "missing"} {
			if err := svc.RevokeSession(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("token %q: expected ErrInvalidCredentials, got %v", token, err)
			}
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		repo := newSessionRepositoryStub()
		repo.revokeErr = boom
		svc := NewAuthService(nil, repo, nil, nil, nil, time.Hour)
		if err := svc.RevokeSession(context.Background(), "token"); !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, testZone)
	store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u-1", IsAdmin: true}}}

	t.Run("returns the principal", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-1", Token: "token", ExpiresAt: now.Add(time.Hour)})
		svc := NewAuthService(store, repo, nil, nil, func() time.Time { return now }, time.Hour)

		principal, err := svc.ValidateSession(context.Background(), " token ")
		if err != nil {
			t.Fatalf("ValidateSession returned error: %v", err)
		}
		if principal != (Principal{UserID: "u-1", IsAdmin: true}) {
			t.Fatalf("unexpected principal: %+v", principal)
		}
	})

	t.Run("deleted users lose their sessions", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-gone", Token: "token", ExpiresAt: now.Add(time.Hour)})
		svc := NewAuthService(store, repo, nil, nil, func() time.Time { return now }, time.Hour)
		if _, err := svc.ValidateSession(context.Background(), "token"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("expired sessions", func(t *testing.T) {
		t.Parallel()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s-1", UserID: "u-1", Token: "token", ExpiresAt: now.Add(-time.Second)})
		svc := NewAuthService(store, repo, nil, nil, func() time.Time { return now }, time.Hour)
		if _, err := svc.ValidateSession(context.Background(), "token"); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("repository failures surface", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		repo := newSessionRepositoryStub()
		repo.getErr = boom
		svc := NewAuthService(store, repo, nil, nil, func() time.Time { return now }, time.Hour)
		if _, err := svc.ValidateSession(context.Background(), "token"); !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
	})
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	params := Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	hash, err := CreatePasswordHash("hunter22", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if err := VerifyPassword(hash, "hunter22"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := VerifyPassword(hash, "hunter23"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("plaintext", "plaintext"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}
	if err := VerifyPassword("$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5", "x"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected ErrIncompatiblePasswordVersion, got %v", err)
	}
}

type credentialStoreStub struct {
	credentials UserCredentials
	err         error
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	if c.err != nil {
		return UserCredentials{}, c.err
	}
	if c.credentials.User.ID == "" || (c.credentials.User.Email != "" && c.credentials.User.Email != email) {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.err != nil {
		return User{}, c.err
	}
	if c.credentials.User.ID == id {
		return c.credentials.User, nil
	}
	return User{}, persistence.ErrNotFound
}

type sessionRepositoryStub struct {
	sessionsByID map[string]Session
	tokenToID    map[string]string

	createErr error
	getErr    error
	revokeErr error
	deleteErr error

	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{
		sessionsByID: make(map[string]Session),
		tokenToID:    make(map[string]string),
	}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.sessionsByID[session.ID] = session
	s.tokenToID[session.Token] = session.ID
}

func (s *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.seed(session)
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(ctx context.Context, token string) (Session, error) {
	if s.getErr != nil {
		return Session{}, s.getErr
	}
	id, ok := s.tokenToID[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return s.sessionsByID[id], nil
}

func (s *sessionRepositoryStub) UpdateSession(ctx context.Context, session Session) (Session, error) {
	current, ok := s.sessionsByID[session.ID]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	delete(s.tokenToID, current.Token)
	s.seed(session)
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	if s.revokeErr != nil {
		return Session{}, s.revokeErr
	}
	id, ok := s.tokenToID[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	session := s.sessionsByID[id]
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessionsByID[id] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleteCalls = append(s.deleteCalls, reference)
	for id, session := range s.sessionsByID {
		if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(reference) {
			delete(s.sessionsByID, id)
			delete(s.tokenToID, session.Token)
		}
	}
	return nil
}
