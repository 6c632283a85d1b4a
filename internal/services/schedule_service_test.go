package services

import (
	"strings"
	"testing"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsmeet/internal/catalog"
)

func TestScheduleService(t *testing.T) {
	svc := NewScheduleService(catalog.Default())

	days := svc.Days()
	require.Len(t, days, 5)
	assert.Equal(t, "2025-11-12", days[0].Date.Format("2006-01-02"))
	assert.Contains(t, days[0].Sports, "Athletics")

	cal, err := ics.ParseCalendar(strings.NewReader(svc.ICS()))
	require.NoError(t, err)
	events := cal.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "meet@aifsm", events[0].Id())

	summary := events[0].GetProperty(ics.ComponentPropertySummary)
	require.NotNil(t, summary)
	assert.Contains(t, summary.Value, "All India Forest Sports Meet")
}
