package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/config"
	"sportsmeet/internal/models"
	"sportsmeet/internal/pocketbase"
	"sportsmeet/internal/pocketbase/pbtest"
)

var testAccounts = []config.Account{
	{Username: "dharm.uttarakhand", Email: "cf@uk.gov.in", Password: "secret", Organisation: "Uttarakhand"},
	{Username: "admin", Email: "admin@aifsm2025.in", Password: "root", Organisation: "DUMMY"},
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(testAccounts, "admin@aifsm2025.in", time.Hour)

	t.Run("login by username and email", func(t *testing.T) {
		s, err := p.Login(ctx, "Dharm.Uttarakhand", "secret")
		require.NoError(t, err)
		assert.Equal(t, "Uttarakhand", s.Account.Organisation)
		assert.False(t, s.Account.Admin)

		s, err = p.Login(ctx, "cf@uk.gov.in", "secret")
		require.NoError(t, err)
		assert.NotEmpty(t, s.Token)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := p.Login(ctx, "dharm.uttarakhand", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = p.Login(ctx, "ghost", "secret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("admin flag", func(t *testing.T) {
		s, err := p.Login(ctx, "admin", "root")
		require.NoError(t, err)
		assert.True(t, s.Account.Admin)
	})

	t.Run("resolve and logout", func(t *testing.T) {
		s, err := p.Login(ctx, "dharm.uttarakhand", "secret")
		require.NoError(t, err)

		acc, err := p.Resolve(ctx, s.Token)
		require.NoError(t, err)
		assert.Equal(t, "dharm.uttarakhand", acc.ID)

		require.NoError(t, p.Logout(ctx, s.Token))
		_, err = p.Resolve(ctx, s.Token)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestLocalProvider_CleanUpInactiveSessions(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(testAccounts, "", time.Hour)
	clock := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	stale, err := p.Login(ctx, "dharm.uttarakhand", "secret")
	require.NoError(t, err)
	clock = clock.Add(50 * time.Minute)
	fresh, err := p.Login(ctx, "admin", "root")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ActiveSessions())

	clock = clock.Add(20 * time.Minute)
	p.CleanUpInactiveSessions()
	assert.Equal(t, 1, p.ActiveSessions())

	_, err = p.Resolve(ctx, stale.Token)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = p.Resolve(ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestCheckOrganisation(t *testing.T) {
	acc := &models.Account{Organisation: "Uttarakhand"}
	assert.NoError(t, CheckOrganisation(acc, " uttarakhand "))
	assert.ErrorIs(t, CheckOrganisation(acc, "Kerala"), ErrOrganisationMismatch)

	admin := &models.Account{Organisation: "DUMMY", Admin: true}
	assert.NoError(t, CheckOrganisation(admin, "Kerala"))
}

func TestPocketBaseProvider(t *testing.T) {
	ctx := context.Background()
	srv := pbtest.NewServer()
	defer srv.Close()
	srv.Seed("users", map[string]any{
		"username": "kerala", "email": "cf@kerala.gov.in", "password": "pw", "organisation": "Kerala",
	})
	srv.Seed("users", map[string]any{
		"username": "boss", "email": "admin@aifsm2025.in", "password": "pw", "organisation": "DUMMY",
	})

	client := pocketbase.New(srv.URL, "")
	client.SetRetry(0, time.Millisecond, time.Millisecond)
	p := NewPocketBaseProvider(client, "admin@aifsm2025.in")

	s, err := p.Login(ctx, "kerala", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Kerala", s.Account.Organisation)
	assert.False(t, s.Account.Admin)

	acc, err := p.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.Account.ID, acc.ID)

	_, err = p.Resolve(ctx, "bogus")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = p.Login(ctx, "kerala", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	admin, err := p.Login(ctx, "admin@aifsm2025.in", "pw")
	require.NoError(t, err)
	assert.True(t, admin.Account.Admin)
}

func newPocketBaseProvider(t *testing.T) (*PocketBaseProvider, *pbtest.Server) {
	t.Helper()
	srv := pbtest.NewServer()
	t.Cleanup(srv.Close)
	client := pocketbase.New(srv.URL, "")
	client.SetRetry(0, time.Millisecond, time.Millisecond)
	p := NewPocketBaseProvider(client, "admin@aifsm2025.in")
	p.SetDefaultPassword("changeme")
	return p, srv
}

func TestPocketBaseProvider_Activate(t *testing.T) {
	ctx := context.Background()
	p, srv := newPocketBaseProvider(t)
	srv.Seed("users", map[string]any{"username": "new.officer", "email": "officer@goa.gov.in", "password": "changeme", "organisation": ""})

	s, err := p.Login(ctx, "new.officer", "changeme")
	require.NoError(t, err)
	assert.True(t, s.MustChangePassword)

	tests := []struct {
		name string
		in   Activation
		want error
	}{
		{"too short", Activation{CurrentPassword: "changeme", Password: "abc", PasswordConfirm: "abc", Organisation: "Goa"}, ErrPasswordTooShort},
		{"mismatch", Activation{CurrentPassword: "changeme", Password: "goa-2025", PasswordConfirm: "goa-2024", Organisation: "Goa"}, ErrPasswordMismatch},
		{"default kept", Activation{CurrentPassword: "changeme", Password: "changeme", PasswordConfirm: "changeme", Organisation: "Goa"}, ErrDefaultPassword},
		{"no organisation", Activation{CurrentPassword: "changeme", Password: "goa-2025", PasswordConfirm: "goa-2025"}, ErrOrganisationRequired},
		{"wrong current password", Activation{CurrentPassword: "nope", Password: "goa-2025", PasswordConfirm: "goa-2025", Organisation: "Goa"}, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, p.Activate(ctx, s.Token, s.Account, tt.in), tt.want)
		})
	}

	err = p.Activate(ctx, s.Token, s.Account, Activation{CurrentPassword: "changeme", Password: "goa-2025", PasswordConfirm: "goa-2025", Organisation: "Goa"})
	require.NoError(t, err)

	user := srv.Records("users")[0]
	assert.Equal(t, "Goa", user["organisation"])
	assert.Equal(t, "officer", user["name"])

	_, err = p.Resolve(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession, "old sessions end")

	s, err = p.Login(ctx, "new.officer", "goa-2025")
	require.NoError(t, err)
	assert.False(t, s.MustChangePassword)
	assert.Equal(t, "Goa", s.Account.Organisation)
}

func TestPocketBaseProvider_ActivateKeepsBoundOrganisation(t *testing.T) {
	ctx := context.Background()
	p, srv := newPocketBaseProvider(t)
	srv.Seed("users", map[string]any{"username": "kerala", "email": "cf@kerala.gov.in", "password": "changeme", "organisation": "Kerala"})

	s, err := p.Login(ctx, "kerala", "changeme")
	require.NoError(t, err)
	require.NoError(t, p.Activate(ctx, s.Token, s.Account, Activation{CurrentPassword: "changeme", Password: "kerala-1", PasswordConfirm: "kerala-1", Organisation: "Goa"}))
	assert.Equal(t, "Kerala", srv.Records("users")[0]["organisation"])
}

func TestPocketBaseProvider_PasswordReset(t *testing.T) {
	ctx := context.Background()
	p, srv := newPocketBaseProvider(t)
	srv.Seed("users", map[string]any{"username": "kerala", "email": "cf@kerala.gov.in", "password": "old-pass", "organisation": "Kerala"})

	require.NoError(t, p.RequestPasswordReset(ctx, "nobody@example.com"))
	require.NoError(t, p.RequestPasswordReset(ctx, " cf@kerala.gov.in "))
	token := srv.ResetToken("cf@kerala.gov.in")
	require.NotEmpty(t, token)

	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, token, "new", "new"), ErrPasswordTooShort)
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, "bogus", "new-pass", "new-pass"), ErrInvalidResetToken)
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, "", "new-pass", "new-pass"), ErrInvalidResetToken)

	require.NoError(t, p.ConfirmPasswordReset(ctx, token, "new-pass", "new-pass"))
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, token, "other-pass", "other-pass"), ErrInvalidResetToken, "tokens are single use")

	_, err := p.Login(ctx, "kerala", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.Login(ctx, "kerala", "new-pass")
	require.NoError(t, err)
}

func TestValidateNewPassword(t *testing.T) {
	assert.NoError(t, ValidateNewPassword("secret", "secret"))
	assert.ErrorIs(t, ValidateNewPassword("short", "short"), ErrPasswordTooShort)
	assert.ErrorIs(t, ValidateNewPassword("secret1", "secret2"), ErrPasswordMismatch)
}
