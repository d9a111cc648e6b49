package timetable

import (
	"sort"
	"time"

	"github.com/hutechbot/backend/portal"
)

// DateLayout is the dd/mm/yyyy format the portal uses for class dates.
const DateLayout = "02/01/2006"

// Start time of each period of the fixed 15-period teaching day.
var periodStarts = map[int]string{
	1: "06:45", 2: "07:30", 3: "08:15",
	4: "09:20", 5: "10:05", 6: "10:50",
	7: "12:30", 8: "13:15", 9: "14:00",
	10: "15:05", 11: "15:50", 12: "16:35",
	13: "18:00", 14: "18:45", 15: "19:30",
}

// The teaching day is split into five blocks of three periods. A class that
// stays within one block ends when the block ends.
var blockEnds = []struct {
	first, last int
	end         string
}{
	{1, 3, "09:00"},
	{4, 6, "11:35"},
	{7, 9, "14:45"},
	{10, 12, "17:20"},
	{13, 15, "20:15"},
}

// PeriodStart returns the wall-clock start time of a period, or "??:??" for
// a period outside the teaching day.
func PeriodStart(period int) string {
	if start, ok := periodStarts[period]; ok {
		return start
	}
	return "??:??"
}

// PeriodEnd returns the wall-clock end time of a class starting at
// startPeriod and spanning count periods. Classes spilling over a block
// boundary end at the last block they touch, except the afternoon spillover
// which ends with period 12 itself.
func PeriodEnd(startPeriod, count int) string {
	if _, ok := periodStarts[startPeriod]; !ok || count <= 0 {
		return "??:??"
	}
	endPeriod := startPeriod + count - 1
	for _, block := range blockEnds {
		if startPeriod >= block.first && endPeriod <= block.last {
			return block.end
		}
	}
	switch {
	case endPeriod <= 6:
		return "11:35"
	case endPeriod <= 9:
		return "14:45"
	case endPeriod <= 12:
		return "16:35"
	case endPeriod <= 15:
		return "20:15"
	}
	return "??:??"
}

// WeekWindow returns the Monday and Sunday bounding the week `offset` weeks
// away from now (0 = this week, 1 = next, -1 = last).
func WeekWindow(now time.Time, offset int) (monday, sunday time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monday = monday.AddDate(0, 0, -daysSinceMonday+offset*7)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// FilterWeek keeps only the class occurrences falling inside [monday, sunday]
// and drops subjects left with none. Subjects come back ordered by their
// earliest weekday, then earliest period.
func FilterWeek(subjects []portal.Subject, monday, sunday time.Time) []portal.Subject {
	var result []portal.Subject
	for _, subject := range subjects {
		var kept []portal.Occurrence
		for _, occ := range subject.Occurrences {
			date, err := time.ParseInLocation(DateLayout, occ.Date, monday.Location())
			if err != nil {
				continue
			}
			if !date.Before(monday) && !date.After(sunday) {
				kept = append(kept, occ)
			}
		}
		if len(kept) > 0 {
			filtered := subject
			filtered.Occurrences = kept
			result = append(result, filtered)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		wi, pi := earliestSlot(result[i])
		wj, pj := earliestSlot(result[j])
		if wi != wj {
			return wi < wj
		}
		return pi < pj
	})
	return result
}

// WithSchedule keeps only subjects that carry at least one scheduled
// occurrence, ordered by their first class date.
func WithSchedule(subjects []portal.Subject) []portal.Subject {
	var result []portal.Subject
	for _, subject := range subjects {
		if len(subject.Occurrences) > 0 {
			result = append(result, subject)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return firstDate(result[i]).Before(firstDate(result[j]))
	})
	return result
}

// OccurrenceTimes resolves one class occurrence to concrete start and end
// times in loc. ok is false when the date or period cannot be resolved.
func OccurrenceTimes(occ portal.Occurrence, loc *time.Location) (start, end time.Time, ok bool) {
	if occ.Date == "" || occ.StartPeriod == 0 {
		return time.Time{}, time.Time{}, false
	}
	startClock := PeriodStart(occ.StartPeriod)
	endClock := PeriodEnd(occ.StartPeriod, occ.PeriodCount)
	if startClock == "??:??" || endClock == "??:??" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.ParseInLocation(DateLayout+" 15:04", occ.Date+" "+startClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.ParseInLocation(DateLayout+" 15:04", occ.Date+" "+endClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// earliestSlot finds a subject's earliest (weekday, start period) pair for
// week ordering. Missing values sort last.
func earliestSlot(subject portal.Subject) (weekday, period int) {
	weekday, period = 8, 16
	for _, occ := range subject.Occurrences {
		if occ.Weekday != nil && *occ.Weekday < weekday {
			weekday = *occ.Weekday
		}
		if occ.StartPeriod > 0 && occ.StartPeriod < period {
			period = occ.StartPeriod
		}
	}
	return weekday, period
}

func firstDate(subject portal.Subject) time.Time {
	first := time.Time{}
	for _, occ := range subject.Occurrences {
		date, err := time.Parse(DateLayout, occ.Date)
		if err != nil {
			continue
		}
		if first.IsZero() || date.Before(first) {
			first = date
		}
	}
	if first.IsZero() {
		return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return first
}
