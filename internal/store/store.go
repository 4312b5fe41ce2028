package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store handles all database operations
type Store struct {
	db     *sql.DB
	driver string
}

// New creates a new store instance
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// bind rewrites ? placeholders to $n for the postgres driver.
func (s *Store) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user, assigning its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = uuid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.bind(
		`INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, is_staff, email_verified, last_login_ip, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsActive, user.IsStaff, user.EmailVerified, user.LastLoginIP,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, is_active, is_staff, email_verified, last_login_ip, created_at, updated_at`

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.IsActive, &user.IsStaff, &user.EmailVerified, &user.LastLoginIP,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.bind(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	return s.scanUser(row)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.bind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return s.scanUser(row)
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetEmailVerified marks a user's email address as verified.
func (s *Store) SetEmailVerified(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE users SET email_verified = TRUE, updated_at = ? WHERE id = ?`),
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetActive toggles whether a user may authenticate.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	result, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`),
		active, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateLastLoginIP records the source address of a successful login.
func (s *Store) UpdateLastLoginIP(ctx context.Context, userID, ip string) error {
	_, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE users SET last_login_ip = ? WHERE id = ?`), ip, userID)
	return err
}

// IssueToken invalidates every unused token of the same (user, kind) and
// inserts the new one as a single transaction, so concurrent issuance cannot
// leave two live tokens behind.
func (s *Store) IssueToken(ctx context.Context, token *models.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Postgres READ COMMITTED would let two issuance transactions each miss
	// the other's uncommitted insert and both commit a live token. Locking
	// the owner row serializes them. sqlite transactions have a single
	// writer, so no lock is needed there.
	if s.driver == "postgres" {
		if _, err := tx.ExecContext(ctx, s.bind(
			`SELECT id FROM users WHERE id = ? FOR UPDATE`), token.UserID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, s.bind(
		`UPDATE tokens SET used_at = ? WHERE user_id = ? AND kind = ? AND used_at IS NULL`),
		token.CreatedAt, token.UserID, token.Kind)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.bind(
		`INSERT INTO tokens (id, user_id, kind, secret, created_at, expires_at, used_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)`),
		token.ID, token.UserID, token.Kind, token.Secret, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ConsumeToken marks the matching live token as used and returns it. The
// match-and-mark is one conditional UPDATE, so two racing consumers get
// exactly one success. Absent, expired, and already-used tokens are all
// reported as ErrNotFound.
func (s *Store) ConsumeToken(ctx context.Context, secret string, kind models.TokenKind, now time.Time) (*models.Token, error) {
	result, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE tokens SET used_at = ? WHERE secret = ? AND kind = ? AND used_at IS NULL AND expires_at > ?`),
		now, secret, kind, now)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	token := &models.Token{}
	err = s.db.QueryRowContext(ctx, s.bind(
		`SELECT id, user_id, kind, secret, created_at, expires_at, used_at FROM tokens WHERE secret = ?`), secret).Scan(
		&token.ID, &token.UserID, &token.Kind, &token.Secret,
		&token.CreatedAt, &token.ExpiresAt, &token.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// GetTokensByUser returns all tokens recorded for a user, newest first.
func (s *Store) GetTokensByUser(ctx context.Context, userID string, kind models.TokenKind) ([]*models.Token, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT id, user_id, kind, secret, created_at, expires_at, used_at
		 FROM tokens WHERE user_id = ? AND kind = ? ORDER BY created_at DESC`), userID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		token := &models.Token{}
		err := rows.Scan(
			&token.ID, &token.UserID, &token.Kind, &token.Secret,
			&token.CreatedAt, &token.ExpiresAt, &token.UsedAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DeleteExpiredTokens removes token rows past their expiry. Pure garbage
// collection: an expired token already fails consumption either way.
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.bind(
		`DELETE FROM tokens WHERE expires_at < ?`), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateSession inserts a new refresh session.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx, s.bind(
		`INSERT INTO sessions (id, user_id, revoked, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`),
		session.ID, session.UserID, session.Revoked, session.CreatedAt, session.ExpiresAt)
	return err
}

// GetSession retrieves a session by its id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.QueryRowContext(ctx, s.bind(
		`SELECT id, user_id, revoked, created_at, expires_at FROM sessions WHERE id = ?`), id).Scan(
		&session.ID, &session.UserID, &session.Revoked, &session.CreatedAt, &session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RevokeSession marks a session revoked. Revoking an unknown or already
// revoked session reports ErrNotFound; the flag never transitions back.
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.bind(
		`UPDATE sessions SET revoked = TRUE WHERE id = ? AND revoked = FALSE`), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteExpiredSessions removes session rows past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.bind(
		`DELETE FROM sessions WHERE expires_at < ?`), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
