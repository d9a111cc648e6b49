package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"

	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/timetable"
)

const icsProductID = "-//HUTECH TKB Bot//hutech.edu.vn//"

// ICSOptions narrows which class occurrences end up in the calendar.
type ICSOptions struct {
	// SubjectCodes limits the export to these course codes. Empty means all.
	SubjectCodes []string

	// From drops occurrences before this date. Zero means the full history.
	From time.Time
}

// ICS renders the timetable as an iCalendar document with one VEVENT per
// class occurrence. Occurrences whose date or period cannot be resolved are
// skipped rather than failing the whole export.
func ICS(subjects []portal.Subject, opts ICSOptions) ([]byte, error) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return nil, errors.Wrap(err, "[ICS] load timezone")
	}

	selected := make(map[string]bool, len(opts.SubjectCodes))
	for _, code := range opts.SubjectCodes {
		selected[code] = true
	}

	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)

	events := 0
	now := time.Now()
	for _, subject := range subjects {
		if len(selected) > 0 && !selected[subject.Code] {
			continue
		}
		for _, occ := range subject.Occurrences {
			start, end, ok := timetable.OccurrenceTimes(occ, loc)
			if !ok {
				continue
			}
			if !opts.From.IsZero() && start.Before(opts.From) {
				continue
			}

			event := cal.AddEvent(fmt.Sprintf("%s-%s-%d@hutech.edu.vn", subject.Code, start.Format("20060102"), occ.StartPeriod))
			event.SetDtStampTime(now)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(subject.Name)
			event.SetLocation(occ.Room)
			event.SetDescription(fmt.Sprintf("Mã HP: %s\nPhòng: %s", subject.Code, occ.Room))
			events++
		}
	}
	if events == 0 {
		return nil, errors.New("[ICS] no class occurrences to export")
	}

	return []byte(cal.Serialize()), nil
}
