package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
// UpdateUser keeps the stored hash when passwordHash is nil.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User, passwordHash *string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher func(password string) (string, error)

// UserService maintains accounts and their check-in identifiers.
type UserService struct {
	users       UserRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, nil, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies with a specific hasher and logger.
func NewUserServiceWithLogger(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hash: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	user, err = s.create(ctx, params.Input)
	return
}

// EnsureAdmin creates an administrator with the given email unless an account
// with that email already exists. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (User, bool, error) {
	if s == nil {
		return User{}, false, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, false, fmt.Errorf("user repository not configured")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFoundError(err) {
		return User{}, false, err
	}

	displayName, _, _ := strings.Cut(email, "@")
	user, err := s.create(ctx, UserInput{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
		IsAdmin:     true,
	})
	if err != nil {
		return User{}, false, err
	}
	s.loggerWith(ctx, "EnsureAdmin", "user_id", user.ID).InfoContext(ctx, "bootstrap administrator created")
	return user, true, nil
}

func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	vErr := validateUserInput(normalized)
	if len(normalized.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	hash, err := s.hash(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	persisted, err := s.users.CreateUser(ctx, User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		ExternalID:  normalized.ExternalID,
		IsAdmin:     normalized.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return persisted, nil
}

// UpdateUser validates input and updates an existing user for administrators.
// An empty password keeps the current one.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized)
	if normalized.Password != "" && len(normalized.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash *string
	if normalized.Password != "" {
		var h string
		h, err = s.hash(normalized.Password)
		if err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
		hash = &h
	}

	existing.Email = normalized.Email
	existing.DisplayName = normalized.DisplayName
	existing.ExternalID = normalized.ExternalID
	existing.IsAdmin = normalized.IsAdmin
	existing.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, existing, hash)
	if err != nil {
		err = mapUserRepoError(err)
	}
	return
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if principal.UserID == userID {
		return newValidationError("user", "administrators cannot delete their own account")
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapUserRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns every account ordered by email for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	out, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		ExternalID:  strings.TrimSpace(input.ExternalID),
		Password:    input.Password,
		IsAdmin:     input.IsAdmin,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	return vErr
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return newValidationError("user", "user still organizes or attends meetings")
	}
	return fmt.Errorf("user repository: %w", err)
}
