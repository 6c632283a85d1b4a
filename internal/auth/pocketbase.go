package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/logger"

	"sportsmeet/internal/models"
	"sportsmeet/internal/pocketbase"
)

const usersCollection = "users"

// PocketBaseProvider delegates password checks and token validation to the
// record store's users collection.
type PocketBaseProvider struct {
	client          *pocketbase.Client
	adminEmail      string
	defaultPassword string
}

func NewPocketBaseProvider(client *pocketbase.Client, adminEmail string) *PocketBaseProvider {
	return &PocketBaseProvider{client: client, adminEmail: adminEmail}
}

// SetDefaultPassword names the password accounts are issued with. Logging in
// with it asks for a new one.
func (p *PocketBaseProvider) SetDefaultPassword(password string) {
	p.defaultPassword = password
}

func (p *PocketBaseProvider) Login(ctx context.Context, identity, password string) (*Session, error) {
	res, err := p.client.AuthWithPassword(ctx, usersCollection, identity, password)
	if err != nil {
		var apiErr *pocketbase.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &Session{
		Token:              res.Token,
		Account:            p.account(res.Record),
		LastActivity:       time.Now(),
		MustChangePassword: p.defaultPassword != "" && password == p.defaultPassword,
	}, nil
}

func (p *PocketBaseProvider) Resolve(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	res, err := p.client.AuthRefresh(ctx, usersCollection, token)
	if err != nil {
		var apiErr *pocketbase.APIError
		if errors.Is(err, pocketbase.ErrNotFound) ||
			(errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return p.account(res.Record), nil
}

// Logout is a no-op: tokens expire on the record store's side.
func (p *PocketBaseProvider) Logout(ctx context.Context, token string) error {
	return nil
}

func (p *PocketBaseProvider) account(rec pocketbase.Record) *models.Account {
	return &models.Account{
		ID:           rec.String("id"),
		Username:     rec.String("username"),
		Email:        rec.String("email"),
		Organisation: rec.String("organisation"),
		Admin:        isAdmin(p.adminEmail, rec.String("username"), rec.String("email")),
	}
}

func (p *PocketBaseProvider) RequestPasswordReset(ctx context.Context, email string) error {
	if err := p.client.RequestPasswordReset(ctx, usersCollection, strings.TrimSpace(email)); err != nil {
		return err
	}
	logger.Infof("Password reset requested for %s", email)
	return nil
}

func (p *PocketBaseProvider) ConfirmPasswordReset(ctx context.Context, token, password, passwordConfirm string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := ValidateNewPassword(password, passwordConfirm); err != nil {
		return err
	}
	err := p.client.ConfirmPasswordReset(ctx, usersCollection, token, password, passwordConfirm)
	var apiErr *pocketbase.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return ErrInvalidResetToken
	}
	return err
}

func (p *PocketBaseProvider) Activate(ctx context.Context, token string, acc *models.Account, a Activation) error {
	if err := ValidateNewPassword(a.Password, a.PasswordConfirm); err != nil {
		return err
	}
	if p.defaultPassword != "" && a.Password == p.defaultPassword {
		return ErrDefaultPassword
	}

	data := pocketbase.Record{
		"password":        a.Password,
		"passwordConfirm": a.PasswordConfirm,
		"oldPassword":     a.CurrentPassword,
	}
	if name, _, ok := strings.Cut(acc.Email, "@"); ok && name != "" {
		data["name"] = name
	}
	if strings.TrimSpace(acc.Organisation) == "" {
		org := strings.TrimSpace(a.Organisation)
		if org == "" {
			return ErrOrganisationRequired
		}
		data["organisation"] = org
	}

	_, err := p.client.UpdateAs(ctx, usersCollection, acc.ID, token, data)
	var apiErr *pocketbase.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	logger.Infof("Account %s activated", acc.Username)
	return nil
}
