// Package auth issues and verifies the bearer tokens used by the HTTP API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotRefresh   = errors.New("token is not a refresh token")
)

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService issues short-lived access tokens and long-lived refresh
// tokens. Tokens carry only the user ID; refresh tokens additionally carry a
// type claim.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a token service.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type claims struct {
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// IssuePair issues an access/refresh token pair for the given user.
func (s *TokenService) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := s.sign(userID, "", s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, "refresh", s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token and returns the user ID.
func (s *TokenService) VerifyAccess(token string) (uuid.UUID, error) {
	c, err := s.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	if c.TokenType == "refresh" {
		return uuid.Nil, ErrInvalidToken
	}
	return uuid.Parse(c.Subject)
}

// VerifyRefresh validates a refresh token and returns the user ID.
func (s *TokenService) VerifyRefresh(token string) (uuid.UUID, error) {
	c, err := s.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	if c.TokenType != "refresh" {
		return uuid.Nil, ErrNotRefresh
	}
	return uuid.Parse(c.Subject)
}

func (s *TokenService) sign(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return c, nil
}
