package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/models"
	"sportsmeet/internal/pocketbase"
	"sportsmeet/internal/pocketbase/pbtest"
)

func newPocketBaseRepo(t *testing.T) (*PocketBaseRepo, *pbtest.Server) {
	t.Helper()
	srv := pbtest.NewServer()
	t.Cleanup(srv.Close)
	client := pocketbase.New(srv.URL, "admin-token")
	client.SetRetry(0, time.Millisecond, time.Millisecond)
	return NewPocketBaseRepo(client), srv
}

func TestPocketBaseRepo_Registrations(t *testing.T) {
	ctx := context.Background()
	repo, srv := newPocketBaseRepo(t)

	require.NoError(t, repo.Ping(ctx))

	created, err := repo.CreateRegistration(ctx, testPlayer("234567890123", "100m Race", "acc-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Athletics - 100m Race (Men Open)", srv.Records("players")[0]["event"])

	err = repo.WithIdentityTx(ctx, "234567890123", func(tx RegistrationTx) error {
		existing, err := tx.ListRegistrations(ctx, Filter{IdentityNumber: "234567890123"})
		require.NoError(t, err)
		assert.Len(t, existing, 1)
		_, err = tx.CreateRegistration(ctx, testPlayer("234567890123", "200m Race", "acc-2"))
		return err
	})
	require.NoError(t, err)

	srv.Seed("players", map[string]any{"aadhar": "234567890123", "event": "Athletics - Marathon"})
	players, err := repo.ListRegistrations(ctx, Filter{IdentityNumber: "234567890123"})
	require.NoError(t, err)
	require.Len(t, players, 3, "unstructured records are kept")
	var labels []string
	for _, p := range players {
		labels = append(labels, p.EventLabel())
	}
	assert.Contains(t, labels, "Athletics - Marathon")
	assert.Contains(t, labels, "Athletics - 200m Race (Men Open)")

	created.TravelPlan = &models.TravelPlan{Mode: "Air", UpdatedAt: time.Now()}
	_, err = repo.UpdateRegistration(ctx, created)
	require.NoError(t, err)
	got, err := repo.GetRegistration(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TravelPlan)
	assert.Equal(t, "Air", got.TravelPlan.Mode)

	got.TravelPlan = nil
	_, err = repo.UpdateRegistration(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetRegistration(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TravelPlan)

	require.NoError(t, repo.DeleteRegistration(ctx, created.ID))
	_, err = repo.GetRegistration(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPocketBaseRepo_SettingsAndNews(t *testing.T) {
	ctx := context.Background()
	repo, _ := newPocketBaseRepo(t)

	_, err := repo.GetSetting(ctx, SettingRegistrationOpen)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetSetting(ctx, SettingRegistrationOpen, "false"))
	require.NoError(t, repo.SetSetting(ctx, SettingRegistrationOpen, "true"))
	s, err := repo.GetSetting(ctx, SettingRegistrationOpen)
	require.NoError(t, err)
	assert.Equal(t, "true", s.Value)

	_, err = repo.CreateNews(ctx, "hello")
	require.NoError(t, err)
	_, err = repo.CreateNews(ctx, "world")
	require.NoError(t, err)
	items, total, err := repo.ListNews(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "world", items[0].Text)
}
