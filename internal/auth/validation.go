package auth

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// FieldErrors accumulates per-field validation failures so a request is
// reported with every problem at once rather than the first one hit.
type FieldErrors map[string]string

// Add records a failure for a field, keeping the first message per field.
func (e FieldErrors) Add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

// Error renders the failures in field order.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

// NormalizeEmail lower-cases and trims an email address. Emails are stored
// and compared in this form only.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail checks if an email is well formed
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email) && len(email) < 255
}

// ValidPassword checks if a password meets the complexity policy
func ValidPassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	// Password must contain at least 3 of the 4 character types
	requirements := 0
	if hasUpper {
		requirements++
	}
	if hasLower {
		requirements++
	}
	if hasNumber {
		requirements++
	}
	if hasSpecial {
		requirements++
	}

	return requirements >= 3
}

// ValidateRegistration checks a registration request and returns nil when it
// is acceptable.
func ValidateRegistration(input RegisterInput) FieldErrors {
	errs := FieldErrors{}

	if !ValidEmail(NormalizeEmail(input.Email)) {
		errs.Add("email", "invalid email address")
	}
	if !ValidPassword(input.Password) {
		errs.Add("password", "password does not meet requirements")
	}
	if input.Password != input.PasswordConfirm {
		errs.Add("password_confirm", "passwords do not match")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateNewPassword checks a replacement password and its confirmation.
func ValidateNewPassword(password, confirm string) FieldErrors {
	errs := FieldErrors{}

	if !ValidPassword(password) {
		errs.Add("new_password", "password does not meet requirements")
	}
	if password != confirm {
		errs.Add("new_password_confirm", "passwords do not match")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// PasswordRequirements returns the password policy as display lines.
func PasswordRequirements() []string {
	return []string{
		"At least 8 characters long",
		"Maximum 72 characters",
		"Must contain at least 3 of the following:",
		"- Uppercase letters (A-Z)",
		"- Lowercase letters (a-z)",
		"- Numbers (0-9)",
		"- Special characters (!@#$%^&*...)",
	}
}
