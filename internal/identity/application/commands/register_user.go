// Package commands contains the identity write operations.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voltahq/volta/internal/identity/application/auth"
	"github.com/voltahq/volta/internal/identity/domain"
)

// ErrPasswordTooShort rejects passwords under the minimum length.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// RegisterUserCommand contains the data needed to register a user.
type RegisterUserCommand struct {
	Email    string
	Password string
	Timezone string
}

// RegisterUserHandler handles user registration.
type RegisterUserHandler struct {
	users  domain.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(users domain.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *RegisterUserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterUserHandler{users: users, tokens: tokens, logger: logger}
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	User   *domain.User
	Tokens auth.TokenPair
}

// Handle registers a user and issues an initial token pair.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterResult, error) {
	if len(cmd.Password) < 8 {
		return nil, ErrPasswordTooShort
	}

	existing, err := h.users.FindByEmail(ctx, cmd.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}

	user, err := domain.NewUser(cmd.Email, hash, cmd.Timezone)
	if err != nil {
		return nil, err
	}

	if err := h.users.Save(ctx, user); err != nil {
		return nil, err
	}

	pair, err := h.tokens.IssuePair(user.ID())
	if err != nil {
		return nil, err
	}

	h.logger.Info("user registered", "user_id", user.ID())
	return &RegisterResult{User: user, Tokens: pair}, nil
}
