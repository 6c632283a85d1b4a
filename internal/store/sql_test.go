package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/models"
)

func newTestRepo(t *testing.T) *SQLRepo {
	t.Helper()
	repo, err := NewSQLRepo(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testPlayer(identity, discipline, registeredBy string) *models.Player {
	return &models.Player{
		IdentityNumber: identity,
		Organisation:   "Uttarakhand",
		Event:          models.EventRef{Sport: "Athletics", Discipline: discipline, Category: "Men Open"},
		Name:           "Test Player",
		Age:            30,
		BloodGroup:     "O+",
		Mobile:         "9876543210",
		EmployeeID:     "EMP-1",
		MealType:       "Veg",
		RegisteredBy:   registeredBy,
	}
}

func TestSQLRepo_RegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateRegistration(ctx, testPlayer("234567890123", "100m Race", "acc-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Created.IsZero())

	got, err := repo.GetRegistration(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Event, got.Event)
	assert.Nil(t, got.TravelPlan)

	got.TravelPlan = &models.TravelPlan{Mode: "Train", Document: "travel-1.pdf", DocumentName: "ticket.pdf", DocumentType: "application/pdf", UpdatedAt: time.Now()}
	got.Name = "Renamed"
	_, err = repo.UpdateRegistration(ctx, got)
	require.NoError(t, err)

	got, err = repo.GetRegistration(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	require.NotNil(t, got.TravelPlan)
	assert.Equal(t, "Train", got.TravelPlan.Mode)
	assert.False(t, got.TravelPlan.UpdatedAt.IsZero())

	require.NoError(t, repo.DeleteRegistration(ctx, created.ID))
	_, err = repo.GetRegistration(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteRegistration(ctx, created.ID), ErrNotFound)

	missing := testPlayer("234567890123", "100m Race", "acc-1")
	missing.ID = "nope"
	_, err = repo.UpdateRegistration(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLRepo_ListRegistrations(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, p := range []*models.Player{
		testPlayer("234567890123", "100m Race", "acc-1"),
		testPlayer("234567890123", "200m Race", "acc-2"),
		testPlayer("345678901234", "100m Race", "acc-1"),
	} {
		_, err := repo.CreateRegistration(ctx, p)
		require.NoError(t, err)
	}

	all, err := repo.ListRegistrations(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.False(t, all[0].Created.Before(all[2].Created), "newest first")

	byIdentity, err := repo.ListRegistrations(ctx, Filter{IdentityNumber: "234567890123"})
	require.NoError(t, err)
	assert.Len(t, byIdentity, 2)

	byAccount, err := repo.ListRegistrations(ctx, Filter{RegisteredBy: "acc-1", IdentityNumber: "345678901234"})
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)
}

func TestSQLRepo_DuplicateEventRejectedByIndex(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateRegistration(ctx, testPlayer("234567890123", "100m Race", "acc-1"))
	require.NoError(t, err)
	_, err = repo.CreateRegistration(ctx, testPlayer("234567890123", "100m Race", "acc-2"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSQLRepo_WithIdentityTx(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithIdentityTx(ctx, "234567890123", func(tx RegistrationTx) error {
			if _, err := tx.CreateRegistration(ctx, testPlayer("234567890123", "400m Race", "acc-1")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		players, err := repo.ListRegistrations(ctx, Filter{IdentityNumber: "234567890123"})
		require.NoError(t, err)
		assert.Empty(t, players)
	})

	t.Run("serializes count then insert", func(t *testing.T) {
		const limit = 2
		var wg sync.WaitGroup
		disciplines := []string{"100m Race", "200m Race", "400m Race", "800m Race", "1500m Race", "5000m Race"}
		for _, d := range disciplines {
			wg.Add(1)
			go func(d string) {
				defer wg.Done()
				_ = repo.WithIdentityTx(ctx, "456789012345", func(tx RegistrationTx) error {
					existing, err := tx.ListRegistrations(ctx, Filter{IdentityNumber: "456789012345"})
					if err != nil {
						return err
					}
					if len(existing) >= limit {
						return nil
					}
					_, err = tx.CreateRegistration(ctx, testPlayer("456789012345", d, "acc-1"))
					return err
				})
			}(d)
		}
		wg.Wait()

		players, err := repo.ListRegistrations(ctx, Filter{IdentityNumber: "456789012345"})
		require.NoError(t, err)
		assert.Len(t, players, limit)
	})
}

func TestSQLRepo_Settings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.GetSetting(ctx, SettingRegistrationOpen)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetSetting(ctx, SettingRegistrationOpen, "false"))
	s, err := repo.GetSetting(ctx, SettingRegistrationOpen)
	require.NoError(t, err)
	assert.Equal(t, "false", s.Value)

	require.NoError(t, repo.SetSetting(ctx, SettingRegistrationOpen, "true"))
	s, err = repo.GetSetting(ctx, SettingRegistrationOpen)
	require.NoError(t, err)
	assert.Equal(t, "true", s.Value)
	assert.False(t, s.Updated.IsZero())
}

func TestSQLRepo_News(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, text := range []string{"first", "second", "third"} {
		_, err := repo.CreateNews(ctx, text)
		require.NoError(t, err)
	}

	items, total, err := repo.ListNews(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Text)

	items, _, err = repo.ListNews(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Text)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", rebind(DriverPostgres, "a = ? AND b = ?"))
	assert.Equal(t, "a = ?", rebind(DriverSQLite, "a = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"plain path", "data/portal.db", "file:data/portal.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"},
		{"caller options kept", "file:portal.db?mode=rwc", "file:portal.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"},
		{"caller timeout wins", "portal.db?_pragma=busy_timeout(100)", "file:portal.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_txlock=immediate"},
		{"deferred transactions overridden", "portal.db?_txlock=deferred", "file:portal.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.dsn))
		})
	}
}

func TestNewSQLRepo_UnknownDriver(t *testing.T) {
	_, err := NewSQLRepo("mysql", "x")
	assert.Error(t, err)
}
