package auth

import "errors"

var (
	// ErrAuthenticationFailed covers every credential failure on login and
	// refresh. Unknown email, wrong password, and inactive account are
	// deliberately indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidOrExpiredToken covers every one-time token failure. Absent,
	// expired, wrong-kind, and already-used tokens are deliberately
	// indistinguishable to avoid a guessing oracle.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrEmailAlreadyTaken is returned on registration with a duplicate
	// email address.
	ErrEmailAlreadyTaken = errors.New("email already taken")

	// ErrAlreadyVerified is returned when a verified user requests another
	// verification email. The endpoint is authenticated, so this does not
	// leak account existence.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrSessionNotFound is returned by logout for unknown or already
	// revoked refresh ids.
	ErrSessionNotFound = errors.New("session not found")
)
