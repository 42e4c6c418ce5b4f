package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOccurrencesFirstWeekOfJanuary(t *testing.T) {
	s, err := Parse("Mondays and Wednesdays, 6:00 PM - 8:00 PM")
	require.NoError(t, err)

	got := Occurrences(date(2024, 1, 1), date(2024, 1, 7), s.Days, s.StartTime, time.UTC)
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC),
	}, got)

	slots := s.Slots(date(2024, 1, 1), date(2024, 1, 7), time.UTC)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 20, 0, 0, 0, time.UTC), slots[1].End)
}

func TestOccurrencesEdgeCases(t *testing.T) {
	mondays := NewDaySet(time.Monday)
	at := Clock{Hour: 9}

	assert.Empty(t, Occurrences(date(2024, 1, 1), date(2024, 1, 31), 0, at, time.UTC))
	assert.Empty(t, Occurrences(date(2024, 1, 31), date(2024, 1, 1), mondays, at, time.UTC))

	single := Occurrences(date(2024, 1, 1), date(2024, 1, 1), mondays, at, time.UTC)
	assert.Equal(t, []time.Time{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}, single)

	// the clock on the bounds is ignored
	withClock := Occurrences(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC), mondays, at, time.UTC)
	assert.Len(t, withClock, 2)

	assert.Empty(t, Schedule{}.Slots(date(2024, 1, 1), date(2024, 12, 31), time.UTC))
}

func TestOccurrencesProperties(t *testing.T) {
	sets := []DaySet{
		NewDaySet(time.Monday, time.Wednesday),
		NewDaySet(time.Sunday),
		NewDaySet(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday),
	}
	ranges := [][2]time.Time{
		{date(2024, 1, 1), date(2024, 1, 7)},
		{date(2023, 12, 20), date(2024, 3, 5)},
		{date(2024, 2, 28), date(2026, 2, 28)},
	}
	at := Clock{Hour: 18, Minute: 30}

	for _, days := range sets {
		for _, r := range ranges {
			got := Occurrences(r[0], r[1], days, at, time.UTC)
			again := Occurrences(r[0], r[1], days, at, time.UTC)
			assert.Equal(t, got, again)

			for i, ts := range got {
				assert.True(t, days.Has(ts.Weekday()))
				assert.False(t, ts.Before(r[0]))
				assert.False(t, ts.After(r[1].Add(24*time.Hour)))
				if i > 0 {
					assert.True(t, ts.After(got[i-1]))
				}
			}
		}
	}
}

func TestOccurrencesAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// DST starts 2024-03-10 in New York.
	got := Occurrences(date(2024, 3, 3), date(2024, 3, 17), NewDaySet(time.Sunday), Clock{Hour: 10}, loc)
	require.Len(t, got, 3)
	for _, ts := range got {
		assert.Equal(t, 10, ts.Hour())
		assert.Equal(t, time.Sunday, ts.Weekday())
	}
	assert.Equal(t, 10, got[1].Day())
}

func TestOccurrencesSpanIsCapped(t *testing.T) {
	got := Occurrences(date(2000, 1, 1), date(2100, 1, 1), NewDaySet(time.Monday), Clock{}, time.UTC)
	require.NotEmpty(t, got)
	assert.True(t, got[len(got)-1].Before(date(2000, 1, 1).AddDate(0, 0, MaxSpanDays+1)))
}
