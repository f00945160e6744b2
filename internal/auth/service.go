package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"skykeeper/internal/types"
)

// UserStore defines the persistence operations the auth service requires.
// Implemented by db.UserRepository; tests inject fakes.
type UserStore interface {
	Create(ctx context.Context, user *types.User) error
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// Service implements user registration and credential verification.
type Service struct {
	users      UserStore
	tokens     *TokenService
	bcryptCost int
	clock      types.Clock
	logger     *slog.Logger
}

// NewService creates an auth Service. If clock is nil, the real clock is used.
func NewService(users UserStore, tokens *TokenService, bcryptCost int, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		clock:      clock,
		logger:     logger,
	}
}

// Signup registers a new user and returns the user plus a fresh session.
// Email addresses are stored lowercased so lookups are case-insensitive.
// A duplicate email surfaces as a conflict error from the store.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*types.User, *types.Session, error) {
	user := &types.User{
		ID:        "usr_" + uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: s.clock.Now(),
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, session, nil
}

// Login verifies credentials and returns the user plus a fresh session.
//
// Both an unknown email and a wrong password return the same
// auth_invalid_credentials error so the endpoint cannot be used to probe
// which addresses are registered.
func (s *Service) Login(ctx context.Context, email, password string) (*types.User, *types.Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthUserNotFound {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, invalidCredentials()
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, session, nil
}

func (s *Service) newSession(user *types.User) (*types.Session, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &types.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func invalidCredentials() error {
	return types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
}
