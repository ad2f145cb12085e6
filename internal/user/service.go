package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/models"
	"github.com/blagoySimandov/proaccount/internal/password"
)

// AuthAdmin mirrors credentials into the hosted auth subsystem, which owns
// recovery emails. Every call through it is best-effort.
type AuthAdmin interface {
	CreateUser(ctx context.Context, email, password string) error
	UpdatePassword(ctx context.Context, email, password string) error
}

type Service interface {
	Signup(ctx context.Context, email, plaintext string) (*models.User, error)
	ResetPassword(ctx context.Context, email, plaintext string) error
	List(ctx context.Context) ([]*models.User, error)
}

type UserService struct {
	repo Repository
	auth AuthAdmin
}

// NewUserService builds the account service. auth may be nil when the auth
// subsystem is not configured.
func NewUserService(repo Repository, auth AuthAdmin) *UserService {
	return &UserService{
		repo: repo,
		auth: auth,
	}
}

func (s *UserService) Signup(ctx context.Context, email, plaintext string) (*models.User, error) {
	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}

	user := &models.User{
		Email:          email,
		PasswordHash:   password.Hash(plaintext),
		EncryptedEmail: password.HashEmail(email),
		IsPro:          false,
	}
	// two concurrent signups can both pass Exists; the primary key catches the loser
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.auth != nil {
		if err := s.auth.CreateUser(ctx, email, plaintext); err != nil {
			logger.Log.Warn().Err(err).Str("email", email).Msg("Failed to create auth user, recovery emails may not reach this account")
		}
	}

	return user, nil
}

func (s *UserService) ResetPassword(ctx context.Context, email, plaintext string) error {
	err := s.repo.UpdatePassword(ctx, email, password.Hash(plaintext))
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Log.Info().Str("email", email).Msg("Password reset for an email with no stored account")
	case err != nil:
		return fmt.Errorf("failed to update password: %w", err)
	}

	if s.auth != nil {
		if err := s.auth.UpdatePassword(ctx, email, plaintext); err != nil {
			logger.Log.Warn().Err(err).Str("email", email).Msg("Failed to update auth user password")
		}
	}
	return nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}
