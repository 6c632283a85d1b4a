package auth

import (
	"context"
	"errors"

	"sportsmeet/internal/models"
)

const MinPasswordLength = 6

var (
	ErrPasswordTooShort     = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrDefaultPassword      = errors.New("choose a password other than the one you were issued")
	ErrInvalidResetToken    = errors.New("invalid or expired reset link")
	ErrOrganisationRequired = errors.New("select the organisation this account belongs to")
	ErrPasswordsUnsupported = errors.New("passwords are managed by the portal administrator")
)

// Activation is the first-login form of an account still on its issued
// password.
type Activation struct {
	CurrentPassword string
	Password        string
	PasswordConfirm string
	Organisation    string
}

// PasswordManager is implemented by providers that own their users' passwords.
type PasswordManager interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password, passwordConfirm string) error
	// Activate replaces the issued password of acc, signed in with token, and
	// binds the organisation if the account has none yet. Every session of
	// the account ends.
	Activate(ctx context.Context, token string, acc *models.Account, a Activation) error
}

// ValidateNewPassword checks a new password and its confirmation.
func ValidateNewPassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
