package auth

import (
	"context"
	"errors"
	"log"

	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/Keyhaven-io/keyhaven/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps login cost roughly constant when the email does not
// resolve: the compare below runs against it instead of returning early.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// TokenPair is the credential bundle returned by login and registration.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login verifies credentials and opens a new session. Unknown email, wrong
// password, and inactive account all fail with ErrAuthenticationFailed.
// Email verification is not a login precondition.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*models.User, *TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, nil, ErrAuthenticationFailed
		}
		return nil, nil, err
	}

	// The expensive compare runs without holding any store lock.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrAuthenticationFailed
	}
	if !user.IsActive {
		return nil, nil, ErrAuthenticationFailed
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if ip != "" {
		if err := s.store.UpdateLastLoginIP(ctx, user.ID, ip); err != nil {
			log.Printf("Failed to record last login IP for user %s: %v", user.ID, err)
		}
		user.LastLoginIP = &ip
	}

	return user, pair, nil
}

// openSession creates a refresh session and mints its first access token.
func (s *Service) openSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := s.now()
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	access, err := s.tokens.GenerateToken(user, s.accessTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: access, Refresh: session.ID}, nil
}

// Refresh mints a new access token for a live session. The refresh id
// itself is not rotated. Absent, revoked, and expired sessions all fail
// with ErrAuthenticationFailed.
func (s *Service) Refresh(ctx context.Context, refreshID string) (string, error) {
	session, err := s.store.GetSession(ctx, refreshID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAuthenticationFailed
		}
		return "", err
	}
	if !session.Live(s.now()) {
		return "", ErrAuthenticationFailed
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAuthenticationFailed
		}
		return "", err
	}
	if !user.IsActive {
		return "", ErrAuthenticationFailed
	}

	return s.tokens.GenerateToken(user, s.accessTTL)
}

// Logout revokes a session. When callerID is set, a session owned by a
// different account is treated as not found so the response stays uniform.
// Unknown and already-revoked sessions report ErrSessionNotFound.
func (s *Service) Logout(ctx context.Context, refreshID, callerID string) error {
	session, err := s.store.GetSession(ctx, refreshID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if callerID != "" && !OwnedBy(session, callerID) {
		return ErrSessionNotFound
	}

	if err := s.store.RevokeSession(ctx, refreshID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}
