package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/service/auth"
	"github.com/visionforge/detect-api/internal/store"
)

// UserService provides account registration and login.
type UserService interface {
	// Register creates a new account with a hashed password.
	// Returns ErrEmailExists when the email is already registered.
	Register(ctx context.Context, email, password string) (*domain.User, error)

	// Authenticate verifies the credentials and issues an access token.
	// Returns ErrInvalidCredentials on any mismatch without revealing
	// whether the email exists.
	Authenticate(ctx context.Context, email, password string) (string, *domain.User, error)
}

// userServiceImpl implements the UserService interface
type userServiceImpl struct {
	db       *sql.DB
	users    store.UserStore
	hasher   auth.PasswordHasher
	verifier auth.PasswordVerifier
	tokens   auth.JWTService
	logger   *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	db *sql.DB,
	users store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	tokens auth.JWTService,
	logger *slog.Logger,
) (UserService, error) {
	if users == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "user store cannot be nil"}
	}
	if hasher == nil || verifier == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "password hasher and verifier cannot be nil"}
	}
	if tokens == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "token service cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &userServiceImpl{
		db:       db,
		users:    users,
		hasher:   hasher,
		verifier: verifier,
		tokens:   tokens,
		logger:   logger.With("component", "user_service"),
	}, nil
}

// Register validates the account data, hashes the password and saves the
// user.
func (s *userServiceImpl) Register(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, NewServiceError("register_user", "invalid account data", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, NewServiceError("register_user", "failed to hash password", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return NewServiceError("register_user", "failed to save user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks the credentials and issues a token on success. The
// same error comes back for an unknown email and a wrong password.
func (s *userServiceImpl) Authenticate(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, NewServiceError("authenticate", "failed to load user", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		return "", nil, NewServiceError("authenticate", "failed to issue token", err)
	}

	return token, user, nil
}
