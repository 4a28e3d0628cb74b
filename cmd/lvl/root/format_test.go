package root

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"levelup/internal/engine"
)

func TestParseWhenDateOnlyCoversWholeDay(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	end, err := parseWhen("2026-03-31", berlin)
	require.NoError(t, err)
	require.True(t, end.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, berlin).Add(-time.Nanosecond)))

	// A goal ending that day is still in its period during the final minute.
	lastMinute := time.Date(2026, 3, 31, 23, 59, 30, 0, berlin)
	require.False(t, end.Before(lastMinute))

	_, monthEnd, ok := engine.GoalPeriod(engine.GoalMonthly, lastMinute, berlin)
	require.True(t, ok)
	require.False(t, end.Before(monthEnd))

	at, err := parseWhen("2026-03-31 14:05", berlin)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 31, 14, 5, 0, 0, berlin), at)

	_, err = parseWhen("31/03/2026", berlin)
	require.Error(t, err)
}
