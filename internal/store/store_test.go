package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/database"
	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitTables(db, "sqlite3"))

	return New(db, "sqlite3")
}

func createTestUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		IsActive:     true,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func newToken(userID string, kind models.TokenKind, issued time.Time, ttl time.Duration) *models.Token {
	return &models.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Secret:    uuid.New().String(),
		CreatedAt: issued,
		ExpiresAt: issued.Add(ttl),
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		user := createTestUser(t, s, "u@test.com")
		assert.NotEmpty(t, user.ID)

		byEmail, err := s.GetUserByEmail(ctx, "u@test.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		byID, err := s.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "u@test.com", byID.Email)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Email: "u@test.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.GetUserByEmail(ctx, "missing@test.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		user := createTestUser(t, s, "pw@test.com")
		require.NoError(t, s.UpdatePassword(ctx, user.ID, "newhash"))

		stored, err := s.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "newhash", stored.PasswordHash)
	})

	t.Run("SetEmailVerified", func(t *testing.T) {
		user := createTestUser(t, s, "ev@test.com")
		require.NoError(t, s.SetEmailVerified(ctx, user.ID))

		stored, err := s.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.EmailVerified)
	})

	t.Run("UpdateMissingUser", func(t *testing.T) {
		err := s.UpdatePassword(ctx, "no-such-id", "hash")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestIssueToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "tokens@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("InvalidatesPriorUnused", func(t *testing.T) {
		first := newToken(user.ID, models.TokenKindPasswordReset, now, 24*time.Hour)
		require.NoError(t, s.IssueToken(ctx, first))

		second := newToken(user.ID, models.TokenKindPasswordReset, now.Add(time.Minute), 24*time.Hour)
		require.NoError(t, s.IssueToken(ctx, second))

		tokens, err := s.GetTokensByUser(ctx, user.ID, models.TokenKindPasswordReset)
		require.NoError(t, err)
		require.Len(t, tokens, 2)

		live := 0
		for _, token := range tokens {
			if token.UsedAt == nil {
				live++
				assert.Equal(t, second.ID, token.ID)
			}
		}
		assert.Equal(t, 1, live)
	})

	t.Run("LeavesOtherKindsAlone", func(t *testing.T) {
		verify := newToken(user.ID, models.TokenKindEmailVerification, now, 72*time.Hour)
		require.NoError(t, s.IssueToken(ctx, verify))

		reset := newToken(user.ID, models.TokenKindPasswordReset, now.Add(2*time.Minute), 24*time.Hour)
		require.NoError(t, s.IssueToken(ctx, reset))

		tokens, err := s.GetTokensByUser(ctx, user.ID, models.TokenKindEmailVerification)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Nil(t, tokens[0].UsedAt)
	})
}

func TestConsumeToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "consume@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("MarksUsedExactlyOnce", func(t *testing.T) {
		token := newToken(user.ID, models.TokenKindPasswordReset, now, 24*time.Hour)
		require.NoError(t, s.IssueToken(ctx, token))

		consumed, err := s.ConsumeToken(ctx, token.Secret, models.TokenKindPasswordReset, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, user.ID, consumed.UserID)
		require.NotNil(t, consumed.UsedAt)

		_, err = s.ConsumeToken(ctx, token.Secret, models.TokenKindPasswordReset, now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ExpiredNotConsumable", func(t *testing.T) {
		token := newToken(user.ID, models.TokenKindPasswordReset, now, 24*time.Hour)
		require.NoError(t, s.IssueToken(ctx, token))

		_, err := s.ConsumeToken(ctx, token.Secret, models.TokenKindPasswordReset, now.Add(25*time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("KindMismatch", func(t *testing.T) {
		token := newToken(user.ID, models.TokenKindEmailVerification, now, 72*time.Hour)
		require.NoError(t, s.IssueToken(ctx, token))

		_, err := s.ConsumeToken(ctx, token.Secret, models.TokenKindPasswordReset, now.Add(time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// newSharedTestStore opens a file-backed database with several pool
// connections so goroutines actually race instead of queueing on one handle.
func newSharedTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitTables(db, "sqlite3"))

	return New(db, "sqlite3")
}

func TestIssueTokenConcurrent(t *testing.T) {
	s := newSharedTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "race-issue@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	const issuers = 8
	var wg sync.WaitGroup
	errs := make(chan error, issuers)
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IssueToken(ctx, newToken(user.ID, models.TokenKindPasswordReset, now, 24*time.Hour))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tokens, err := s.GetTokensByUser(ctx, user.ID, models.TokenKindPasswordReset)
	require.NoError(t, err)
	require.Len(t, tokens, issuers)

	live := 0
	for _, token := range tokens {
		if token.UsedAt == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestConsumeTokenConcurrent(t *testing.T) {
	s := newSharedTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "race-consume@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	token := newToken(user.ID, models.TokenKindPasswordReset, now, 24*time.Hour)
	require.NoError(t, s.IssueToken(ctx, token))

	const consumers = 8
	var wg sync.WaitGroup
	errs := make(chan error, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConsumeToken(ctx, token.Secret, models.TokenKindPasswordReset, now.Add(time.Minute))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrNotFound)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, consumers-1, rejected)
}

func TestDeleteExpiredTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "sweep@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	expired := newToken(user.ID, models.TokenKindPasswordReset, now.Add(-48*time.Hour), 24*time.Hour)
	require.NoError(t, s.IssueToken(ctx, expired))
	live := newToken(user.ID, models.TokenKindEmailVerification, now, 72*time.Hour)
	require.NoError(t, s.IssueToken(ctx, live))

	deleted, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := s.GetTokensByUser(ctx, user.ID, models.TokenKindEmailVerification)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "sessions@test.com")
	now := time.Now().UTC().Truncate(time.Second)

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, s.CreateSession(ctx, session))

	t.Run("Get", func(t *testing.T) {
		stored, err := s.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.UserID)
		assert.False(t, stored.Revoked)
	})

	t.Run("RevokeIsOneWay", func(t *testing.T) {
		require.NoError(t, s.RevokeSession(ctx, session.ID))

		stored, err := s.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.Revoked)

		// Second revoke reports not found, the flag stays set
		err = s.RevokeSession(ctx, session.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RevokeUnknown", func(t *testing.T) {
		err := s.RevokeSession(ctx, "no-such-session")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		old := &models.Session{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			CreatedAt: now.Add(-30 * 24 * time.Hour),
			ExpiresAt: now.Add(-23 * 24 * time.Hour),
		}
		require.NoError(t, s.CreateSession(ctx, old))

		deleted, err := s.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestBind(t *testing.T) {
	sqlite := &Store{driver: "sqlite3"}
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", sqlite.bind("SELECT * FROM users WHERE id = ?"))

	postgres := &Store{driver: "postgres"}
	assert.Equal(t, "UPDATE users SET a = $1, b = $2 WHERE id = $3", postgres.bind("UPDATE users SET a = ?, b = ? WHERE id = ?"))
}
