package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hutechbot/backend/portal"
)

func TestPeriodStart(t *testing.T) {
	require.Equal(t, "06:45", PeriodStart(1))
	require.Equal(t, "12:30", PeriodStart(7))
	require.Equal(t, "19:30", PeriodStart(15))
	require.Equal(t, "??:??", PeriodStart(0))
	require.Equal(t, "??:??", PeriodStart(16))
}

func TestPeriodEnd(t *testing.T) {
	t.Run("class inside one block ends with the block", func(t *testing.T) {
		require.Equal(t, "09:00", PeriodEnd(1, 3))
		require.Equal(t, "11:35", PeriodEnd(4, 3))
		require.Equal(t, "14:45", PeriodEnd(7, 2))
		require.Equal(t, "17:20", PeriodEnd(10, 3))
		require.Equal(t, "20:15", PeriodEnd(13, 3))
	})

	t.Run("class spilling over a block", func(t *testing.T) {
		require.Equal(t, "11:35", PeriodEnd(1, 6))
		require.Equal(t, "14:45", PeriodEnd(4, 6))
		require.Equal(t, "16:35", PeriodEnd(7, 6))
		require.Equal(t, "20:15", PeriodEnd(10, 6))
	})

	t.Run("invalid input", func(t *testing.T) {
		require.Equal(t, "??:??", PeriodEnd(0, 3))
		require.Equal(t, "??:??", PeriodEnd(1, 0))
		require.Equal(t, "??:??", PeriodEnd(14, 5))
	})
}

func TestWeekWindow(t *testing.T) {
	// 2025-09-03 is a Wednesday
	now := time.Date(2025, 9, 3, 15, 30, 0, 0, time.UTC)

	t.Run("current week", func(t *testing.T) {
		monday, sunday := WeekWindow(now, 0)
		require.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), monday)
		require.Equal(t, time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC), sunday)
	})

	t.Run("next week", func(t *testing.T) {
		monday, sunday := WeekWindow(now, 1)
		require.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), monday)
		require.Equal(t, time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC), sunday)
	})

	t.Run("previous week", func(t *testing.T) {
		monday, _ := WeekWindow(now, -1)
		require.Equal(t, time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), monday)
	})

	t.Run("sunday belongs to the running week", func(t *testing.T) {
		sundayNow := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)
		monday, sunday := WeekWindow(sundayNow, 0)
		require.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), monday)
		require.Equal(t, time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC), sunday)
	})
}

func weekdayPtr(d int) *int { return &d }

func TestFilterWeek(t *testing.T) {
	monday := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)

	subjects := []portal.Subject{
		{
			Code: "MATH101",
			Name: "Giải tích 1",
			Occurrences: []portal.Occurrence{
				{Date: "03/09/2025", Weekday: weekdayPtr(4), StartPeriod: 7, PeriodCount: 3},
				{Date: "10/09/2025", Weekday: weekdayPtr(4), StartPeriod: 7, PeriodCount: 3},
			},
		},
		{
			Code: "PHYS102",
			Name: "Vật lý đại cương",
			Occurrences: []portal.Occurrence{
				{Date: "01/09/2025", Weekday: weekdayPtr(2), StartPeriod: 1, PeriodCount: 3},
			},
		},
		{
			Code: "CHEM103",
			Name: "Hóa học",
			Occurrences: []portal.Occurrence{
				{Date: "15/09/2025", Weekday: weekdayPtr(3), StartPeriod: 4, PeriodCount: 3},
			},
		},
	}

	week := FilterWeek(subjects, monday, sunday)
	require.Len(t, week, 2)

	// Monday class sorts before Wednesday class
	require.Equal(t, "PHYS102", week[0].Code)
	require.Equal(t, "MATH101", week[1].Code)

	// Only the in-week occurrence survives
	require.Len(t, week[1].Occurrences, 1)
	require.Equal(t, "03/09/2025", week[1].Occurrences[0].Date)

	// The input is left untouched
	require.Len(t, subjects[0].Occurrences, 2)
}

func TestWithSchedule(t *testing.T) {
	subjects := []portal.Subject{
		{Code: "LATER", Occurrences: []portal.Occurrence{{Date: "20/10/2025", StartPeriod: 1, PeriodCount: 3}}},
		{Code: "EMPTY"},
		{Code: "SOONER", Occurrences: []portal.Occurrence{{Date: "01/09/2025", StartPeriod: 1, PeriodCount: 3}}},
	}

	result := WithSchedule(subjects)
	require.Len(t, result, 2)
	require.Equal(t, "SOONER", result[0].Code)
	require.Equal(t, "LATER", result[1].Code)
}

func TestOccurrenceTimes(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	t.Run("resolves start and end", func(t *testing.T) {
		start, end, ok := OccurrenceTimes(portal.Occurrence{
			Date: "03/09/2025", StartPeriod: 7, PeriodCount: 3,
		}, loc)
		require.True(t, ok)
		require.Equal(t, time.Date(2025, 9, 3, 12, 30, 0, 0, loc), start)
		require.Equal(t, time.Date(2025, 9, 3, 14, 45, 0, 0, loc), end)
	})

	t.Run("unresolvable occurrence", func(t *testing.T) {
		_, _, ok := OccurrenceTimes(portal.Occurrence{Date: "03/09/2025"}, loc)
		require.False(t, ok)
		_, _, ok = OccurrenceTimes(portal.Occurrence{StartPeriod: 1, PeriodCount: 3}, loc)
		require.False(t, ok)
		_, _, ok = OccurrenceTimes(portal.Occurrence{Date: "not-a-date", StartPeriod: 1, PeriodCount: 3}, loc)
		require.False(t, ok)
	})
}
