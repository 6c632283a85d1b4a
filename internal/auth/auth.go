// Package auth resolves registrant sessions for the portal.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sportsmeet/internal/models"
)

// CookieName is the session cookie shared with the record store's own client.
const CookieName = "pb_auth"

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrOrganisationMismatch = errors.New("selected organisation does not match this account")
	ErrNoSession            = errors.New("no active session")
)

// Session is an authenticated login. MustChangePassword is set when the
// account signed in with its issued default password.
type Session struct {
	Token              string
	Account            *models.Account
	LastActivity       time.Time
	MustChangePassword bool
}

// Provider authenticates registrants and resolves session tokens.
type Provider interface {
	Login(ctx context.Context, identity, password string) (*Session, error)
	Resolve(ctx context.Context, token string) (*models.Account, error)
	Logout(ctx context.Context, token string) error
}

// CheckOrganisation verifies the organisation picked on the login form.
// Admins may sign in under any organisation.
func CheckOrganisation(acc *models.Account, selected string) error {
	if acc.Admin {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(acc.Organisation), strings.TrimSpace(selected)) {
		return ErrOrganisationMismatch
	}
	return nil
}

func isAdmin(adminEmail, username, email string) bool {
	if strings.EqualFold(username, "admin") {
		return true
	}
	return adminEmail != "" && strings.EqualFold(email, adminEmail)
}
