package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/Keyhaven-io/keyhaven/internal/notify"
	"github.com/Keyhaven-io/keyhaven/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the durable storage the subsystem runs against. The
// token operations carry the atomicity contract: IssueToken invalidates and
// inserts as one unit, ConsumeToken matches and marks used as one
// conditional update.
type CredentialStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error
	UpdateLastLoginIP(ctx context.Context, userID, ip string) error

	IssueToken(ctx context.Context, token *models.Token) error
	ConsumeToken(ctx context.Context, secret string, kind models.TokenKind, now time.Time) (*models.Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	RevokeSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Service composes the token issuer/validator, session manager, and
// notification dispatcher into the account flows.
type Service struct {
	store       CredentialStore
	tokens      *TokenManager
	dispatcher  notify.Dispatcher
	frontendURL string
	accessTTL   time.Duration
	refreshTTL  time.Duration

	now  func() time.Time
	rand io.Reader
}

// NewService wires the auth service. frontendURL is the base for the links
// embedded in outbound mail.
func NewService(store CredentialStore, tokens *TokenManager, dispatcher notify.Dispatcher, frontendURL string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		store:       store,
		tokens:      tokens,
		dispatcher:  dispatcher,
		frontendURL: frontendURL,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		now:         func() time.Time { return time.Now().UTC() },
		rand:        rand.Reader,
	}
}

// Tokens exposes the access-token manager for HTTP middleware.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// RegisterInput is a registration request.
type RegisterInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// Register creates an account, opens its first session, and dispatches an
// email verification token.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, *TokenPair, error) {
	if errs := ValidateRegistration(input); errs != nil {
		return nil, nil, errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Email:        NormalizeEmail(input.Email),
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, nil, ErrEmailAlreadyTaken
		}
		return nil, nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// RequestPasswordReset issues and dispatches a reset token when the email
// resolves to an active account. It reports success either way; for an
// unresolved email it still burns a secret generation and a hash compare so
// the two paths stay close in shape.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burnResetWork()
			return nil
		}
		return err
	}
	if !user.IsActive {
		s.burnResetWork()
		return nil
	}

	token, err := s.IssueToken(ctx, user.ID, models.TokenKindPasswordReset)
	if err != nil {
		return err
	}

	s.dispatch(ctx, notify.TemplatePasswordReset, user.Email, map[string]string{
		"url":          fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token.Secret),
		"expiry_hours": "24",
	})
	return nil
}

func (s *Service) burnResetWork() {
	if _, err := s.generateSecret(); err != nil {
		log.Printf("Failed to generate placeholder secret: %v", err)
	}
	bcrypt.CompareHashAndPassword(dummyHash, []byte("placeholder"))
}

// ConfirmPasswordReset spends a reset token and installs the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, secret, newPassword, confirm string) error {
	if errs := ValidateNewPassword(newPassword, confirm); errs != nil {
		return errs
	}

	userID, err := s.ConsumeToken(ctx, secret, models.TokenKindPasswordReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, string(hash))
}

// VerifyEmail spends a verification token and flags the account verified.
func (s *Service) VerifyEmail(ctx context.Context, secret string) error {
	userID, err := s.ConsumeToken(ctx, secret, models.TokenKindEmailVerification)
	if err != nil {
		return err
	}
	return s.store.SetEmailVerified(ctx, userID)
}

// ResendVerification re-issues the verification token for an authenticated
// user, invalidating the previous one.
func (s *Service) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.sendVerification(ctx, user)
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	errs := FieldErrors{}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		errs.Add("current_password", "current password is incorrect")
	}
	if fieldErrs := ValidateNewPassword(newPassword, confirm); fieldErrs != nil {
		for field, msg := range fieldErrs {
			errs.Add(field, msg)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, string(hash))
}

// GetUser returns the profile of an authenticated user.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// CleanupExpired deletes expired token and session rows. Garbage collection
// only: expired rows already fail validation whether or not they exist.
func (s *Service) CleanupExpired(ctx context.Context) error {
	now := s.now()
	tokens, err := s.store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		return err
	}
	sessions, err := s.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return err
	}
	if tokens > 0 || sessions > 0 {
		log.Printf("Cleanup removed %d expired tokens, %d expired sessions", tokens, sessions)
	}
	return nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	token, err := s.IssueToken(ctx, user.ID, models.TokenKindEmailVerification)
	if err != nil {
		return err
	}

	s.dispatch(ctx, notify.TemplateVerifyEmail, user.Email, map[string]string{
		"url":          fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, token.Secret),
		"expiry_hours": "72",
	})
	return nil
}

// dispatch sends a notification, logging failures instead of propagating
// them: a token may exist undelivered, retry is out of scope.
func (s *Service) dispatch(ctx context.Context, template notify.Template, recipient string, data map[string]string) {
	if err := s.dispatcher.Send(ctx, template, recipient, data); err != nil {
		log.Printf("Failed to dispatch %s notification to %s: %v", template, recipient, err)
	}
}
