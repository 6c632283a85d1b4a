package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, StoreSQLite, c.Store.Driver)
	assert.Equal(t, 5, c.Registration.MaxSoloEvents)
	assert.Equal(t, 3, c.Registration.MaxTeamEvents)
	assert.False(t, c.Registration.GateFailOpen)
	assert.Equal(t, 4, c.ItemsPerPage)
	assert.Empty(t, c.Auth.Accounts)
	assert.Equal(t, "changeme", c.Auth.DefaultPassword)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("MAX_SOLO_EVENTS", "4")
	t.Setenv("REGISTRATION_GATE_FAIL_OPEN", "true")
	t.Setenv("REDIS_LOCK_TTL", "3s")
	t.Setenv("ACCOUNTS", "Dharm.Uttarakhand|CF@Example.com|pw|Uttarakhand; admin||root|DUMMY")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, c.Registration.MaxSoloEvents)
	assert.True(t, c.Registration.GateFailOpen)
	assert.Equal(t, 3*time.Second, c.Redis.LockTTL)
	require.Len(t, c.Auth.Accounts, 2)
	assert.Equal(t, Account{Username: "dharm.uttarakhand", Email: "cf@example.com", Password: "pw", Organisation: "Uttarakhand"}, c.Auth.Accounts[0])
	assert.Equal(t, "admin", c.Auth.Accounts[1].Username)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ITEMS_PER_PAGE=7\n"), 0o600))
	t.Setenv("ITEMS_PER_PAGE", "")
	t.Cleanup(func() { os.Unsetenv("ITEMS_PER_PAGE") })

	c, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 7, c.ItemsPerPage)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
	t.Run("accounts", func(t *testing.T) {
		t.Setenv("ACCOUNTS", "only|three|fields")
		_, err := Load()
		assert.ErrorContains(t, err, "4 fields")
	})
	t.Run("limits", func(t *testing.T) {
		t.Setenv("MAX_TEAM_EVENTS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
