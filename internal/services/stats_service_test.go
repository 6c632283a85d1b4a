package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/models"
)

func TestStatsService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stats := NewStatsService(f.repo, f.settings, f.reg.Checker())

	for _, r := range []struct {
		acc *models.Account
		p   *models.Player
	}{
		{owner, athletics(testIdentity, "100m Race")},
		{owner, athletics(testIdentity, "4x100m Relay")},
		{owner, athletics("345678901234", "100m Race")},
		{other, entry("456789012345", "Chess", "Rapid", "Open")},
	} {
		_, err := f.reg.Register(ctx, r.acc, r.p)
		require.NoError(t, err)
	}

	t.Run("aggregates", func(t *testing.T) {
		s, err := stats.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, s.TotalRegistrations)
		assert.Equal(t, 3, s.UniqueParticipants)
		assert.Equal(t, 3, s.SoloEntries)
		assert.Equal(t, 1, s.TeamEntries)
		assert.Equal(t, []models.NamedCount{{Name: "Uttarakhand", Count: 3}, {Name: "Kerala", Count: 1}}, s.ByOrganisation)
		assert.Equal(t, []models.NamedCount{{Name: "Athletics", Count: 3}, {Name: "Chess", Count: 1}}, s.BySport)
		assert.True(t, s.RegistrationOpen)
	})

	t.Run("csv masks identity numbers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, stats.WriteCSV(ctx, &buf, false))
		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, exportHeader, rows[0])
		for _, row := range rows[1:] {
			assert.Regexp(t, `^\*\*\*\*\d{4}$`, row[2])
		}
	})

	t.Run("full csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, stats.WriteCSV(ctx, &buf, true))
		assert.Contains(t, buf.String(), testIdentity)
		assert.Contains(t, buf.String(), ",Team,")
	})
}
