package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voltahq/volta/internal/identity/application/auth"
	"github.com/voltahq/volta/internal/identity/domain"
)

// LoginCommand contains login credentials.
type LoginCommand struct {
	Email    string
	Password string
}

// LoginHandler authenticates a user and issues tokens.
type LoginHandler struct {
	users  domain.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(users domain.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{users: users, tokens: tokens, logger: logger}
}

// Handle verifies credentials and issues a token pair.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*RegisterResult, error) {
	user, err := h.users.FindByEmail(ctx, cmd.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrWrongCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash(), cmd.Password) {
		return nil, domain.ErrWrongCredentials
	}

	pair, err := h.tokens.IssuePair(user.ID())
	if err != nil {
		return nil, err
	}

	return &RegisterResult{User: user, Tokens: pair}, nil
}

// RefreshCommand exchanges a refresh token for a new pair.
type RefreshCommand struct {
	RefreshToken string
}

// RefreshHandler issues a fresh token pair from a valid refresh token.
type RefreshHandler struct {
	users  domain.UserRepository
	tokens *auth.TokenService
}

// NewRefreshHandler creates a new RefreshHandler.
func NewRefreshHandler(users domain.UserRepository, tokens *auth.TokenService) *RefreshHandler {
	return &RefreshHandler{users: users, tokens: tokens}
}

// Handle validates the refresh token and issues a new pair.
func (h *RefreshHandler) Handle(ctx context.Context, cmd RefreshCommand) (auth.TokenPair, error) {
	userID, err := h.tokens.VerifyRefresh(cmd.RefreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}

	// The user must still exist; deleted accounts cannot refresh
	if _, err := h.users.FindByID(ctx, userID); err != nil {
		return auth.TokenPair{}, err
	}

	return h.tokens.IssuePair(userID)
}
