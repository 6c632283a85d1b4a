package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/store"
)

func TestSettingsService(t *testing.T) {
	ctx := context.Background()

	t.Run("missing flag means open", func(t *testing.T) {
		f := newFixture(t)
		open, err := f.settings.RegistrationOpen(ctx)
		require.NoError(t, err)
		assert.True(t, open)

		last, err := f.settings.LastUpdated(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("toggle stamps last update", func(t *testing.T) {
		f := newFixture(t)
		stamp := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
		f.settings.now = func() time.Time { return stamp }

		require.NoError(t, f.settings.SetRegistrationOpen(ctx, false))
		assert.False(t, f.settings.IsRegistrationOpen(ctx))

		last, err := f.settings.LastUpdated(ctx)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.True(t, stamp.Equal(*last))

		require.NoError(t, f.settings.SetRegistrationOpen(ctx, true))
		assert.True(t, f.settings.IsRegistrationOpen(ctx))
	})

	t.Run("unreadable value is open", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.repo.SetSetting(ctx, store.SettingRegistrationOpen, "maybe"))
		assert.True(t, f.settings.IsRegistrationOpen(ctx))
	})

	t.Run("read failure follows policy", func(t *testing.T) {
		assert.False(t, NewSettingsService(brokenSettings{}, false).IsRegistrationOpen(ctx))
		assert.True(t, NewSettingsService(brokenSettings{}, true).IsRegistrationOpen(ctx))
		assert.Error(t, NewSettingsService(brokenSettings{}, false).SetRegistrationOpen(ctx, true))
	})
}
