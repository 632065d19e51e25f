package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-12 is a Monday.
var monday = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func mustRule(t *testing.T, day time.Weekday, start, end string) Rule {
	t.Helper()
	r, err := ParseRule(int(day), start, end)
	require.NoError(t, err)
	return r
}

func TestBuildGridSingleRule(t *testing.T) {
	days := BuildGrid(GridRequest{
		Rules:       []Rule{mustRule(t, time.Monday, "09:00", "12:00")},
		From:        monday,
		To:          monday,
		Granularity: 15 * time.Minute,
	})

	require.Len(t, days, 1)
	assert.Equal(t, "2026-10-12", days[0].Date)
	slots := days[0].Slots
	require.Len(t, slots, 12)
	assert.Equal(t, at(monday, 9, 0), slots[0])
	assert.Equal(t, at(monday, 11, 45), slots[len(slots)-1])
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].After(slots[i-1]), "slots must be strictly increasing")
		assert.Equal(t, 15*time.Minute, slots[i].Sub(slots[i-1]))
	}
}

func TestBuildGridDedupesOverlappingRules(t *testing.T) {
	days := BuildGrid(GridRequest{
		Rules: []Rule{
			mustRule(t, time.Monday, "10:00", "12:00"),
			mustRule(t, time.Monday, "09:00", "11:00"),
		},
		From: monday,
		To:   monday,
	})

	require.Len(t, days, 1)
	assert.Len(t, days[0].Slots, 12)
	seen := map[time.Time]bool{}
	for _, s := range days[0].Slots {
		assert.False(t, seen[s], "duplicate slot %s", s)
		seen[s] = true
	}
}

func TestBuildGridUnionOfSplitShift(t *testing.T) {
	days := BuildGrid(GridRequest{
		Rules: []Rule{
			mustRule(t, time.Monday, "14:00", "15:00"),
			mustRule(t, time.Monday, "09:00", "10:00"),
		},
		From:        monday,
		To:          monday,
		Granularity: 30 * time.Minute,
	})

	assert.Equal(t, []time.Time{
		at(monday, 9, 0), at(monday, 9, 30),
		at(monday, 14, 0), at(monday, 14, 30),
	}, days[0].Slots)
}

func TestBuildGridDayWithoutRulesIsEmpty(t *testing.T) {
	sunday := monday.AddDate(0, 0, -1)
	days := BuildGrid(GridRequest{
		Rules: []Rule{mustRule(t, time.Monday, "09:00", "12:00")},
		From:  sunday,
		To:    monday.AddDate(0, 0, 1),
	})

	require.Len(t, days, 3)
	assert.Equal(t, "2026-10-11", days[0].Date)
	assert.NotNil(t, days[0].Slots)
	assert.Empty(t, days[0].Slots)
	assert.Len(t, days[1].Slots, 12)
	assert.Empty(t, days[2].Slots)
}

func TestBuildGridUsesBusinessLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	days := BuildGrid(GridRequest{
		Rules:    []Rule{mustRule(t, time.Monday, "09:00", "09:30")},
		From:     time.Date(2026, 10, 12, 0, 0, 0, 0, loc),
		To:       time.Date(2026, 10, 12, 0, 0, 0, 0, loc),
		Location: loc,
	})

	require.Len(t, days[0].Slots, 2)
	assert.Equal(t, time.Date(2026, 10, 12, 14, 0, 0, 0, time.UTC), days[0].Slots[0].UTC())
}

func TestBuildGridInvertedRange(t *testing.T) {
	days := BuildGrid(GridRequest{From: monday, To: monday.AddDate(0, 0, -1)})
	assert.Nil(t, days)
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule(1, "09:00", "24:00")
	require.NoError(t, err)
	assert.Equal(t, Clock(9*60), r.Start)
	assert.Equal(t, "24:00", r.End.String())

	_, err = ParseRule(1, "12:00", "09:00")
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseRule(7, "09:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseRule(1, "9am", "10:00")
	assert.ErrorIs(t, err, ErrInvalidRule)
}
