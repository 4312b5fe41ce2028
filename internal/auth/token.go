package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/Keyhaven-io/keyhaven/internal/store"
	"github.com/google/uuid"
)

const (
	// PasswordResetTTL bounds how long a reset link stays usable.
	PasswordResetTTL = 24 * time.Hour
	// EmailVerificationTTL bounds how long a verification link stays usable.
	EmailVerificationTTL = 72 * time.Hour

	// secretBytes gives 384 bits of entropy per token secret.
	secretBytes = 48
)

// TokenTTL returns the validity window for a token kind.
func TokenTTL(kind models.TokenKind) time.Duration {
	if kind == models.TokenKindEmailVerification {
		return EmailVerificationTTL
	}
	return PasswordResetTTL
}

// generateSecret returns a new opaque token secret.
func (s *Service) generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := s.rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// IssueToken creates a single-use token of the given kind for a user,
// invalidating any prior unused token of the same kind in the same store
// transaction. The returned token carries the plaintext secret for
// out-of-band delivery; callers must not log it.
func (s *Service) IssueToken(ctx context.Context, userID string, kind models.TokenKind) (*models.Token, error) {
	secret, err := s.generateSecret()
	if err != nil {
		return nil, err
	}

	now := s.now()
	token := &models.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(TokenTTL(kind)),
	}

	if err := s.store.IssueToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ConsumeToken spends a token exactly once and returns the owning user id.
// Every failure mode collapses to ErrInvalidOrExpiredToken.
func (s *Service) ConsumeToken(ctx context.Context, secret string, kind models.TokenKind) (string, error) {
	token, err := s.store.ConsumeToken(ctx, secret, kind, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidOrExpiredToken
		}
		return "", err
	}
	return token.UserID, nil
}
