package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hutechbot/backend/cache"
	"github.com/hutechbot/backend/export"
	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/sessions"
	"github.com/hutechbot/backend/timetable"
)

// All dates shown to users are campus-local.
var vnLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*3600)
	}
	return loc
}()

// withSession runs fn with a session for the chat user's active account. A
// token the portal no longer honors is wiped and the call retried once with
// a fresh login.
func (b *Bot) withSession(ctx context.Context, chatID int64, fn func(*sessions.Session) error) error {
	session, err := b.manager.AcquireActive(ctx, chatID)
	if err != nil {
		return err
	}

	err = fn(session)
	if err == nil || apperrors.Classify(err) != apperrors.KindAuth {
		return err
	}

	if wipeErr := b.repo.UpdateTokens(ctx, chatID, session.Username, "", "", time.Time{}); wipeErr != nil {
		return err
	}
	b.manager.Invalidate(chatID, session.Username)

	session, retryErr := b.manager.Acquire(ctx, chatID, session.Username)
	if retryErr != nil {
		return retryErr
	}
	return fn(session)
}

func (b *Bot) fetchTimetable(ctx context.Context, chatID int64) ([]portal.Subject, time.Time, error) {
	var subjects []portal.Subject
	var cachedAt time.Time
	err := b.withSession(ctx, chatID, func(s *sessions.Session) error {
		key := cache.Key("tkb", chatID, s.Username)
		if at, found, err := b.cache.Get(ctx, key, &subjects); err == nil && found {
			cachedAt = at
			return nil
		}
		fresh, err := b.portal.Timetable(ctx, s.LegacyToken())
		if err != nil {
			return err
		}
		subjects = fresh
		cachedAt = time.Now()
		if err := b.cache.Set(ctx, key, subjects, cache.TTLTimetable); err != nil {
			b.log.Warn().Err(err).Msg("timetable cache write failed")
		}
		return nil
	})
	return subjects, cachedAt, err
}

func (b *Bot) fetchGrades(ctx context.Context, chatID int64) ([]portal.SemesterGrades, time.Time, error) {
	var grades []portal.SemesterGrades
	var cachedAt time.Time
	err := b.withSession(ctx, chatID, func(s *sessions.Session) error {
		key := cache.Key("diem", chatID, s.Username)
		if at, found, err := b.cache.Get(ctx, key, &grades); err == nil && found {
			cachedAt = at
			return nil
		}
		fresh, err := b.portal.Grades(ctx, s.LegacyToken())
		if err != nil {
			return err
		}
		grades = fresh
		cachedAt = time.Now()
		if err := b.cache.Set(ctx, key, grades, cache.TTLGrades); err != nil {
			b.log.Warn().Err(err).Msg("grades cache write failed")
		}
		return nil
	})
	return grades, cachedAt, err
}

func (b *Bot) handleTimetable(ctx context.Context, chatID int64, offset int) {
	subjects, cachedAt, err := b.fetchTimetable(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "timetable")
		return
	}

	monday, sunday := timetable.WeekWindow(time.Now().In(vnLocation), offset)
	week := timetable.FilterWeek(subjects, monday, sunday)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Tuần trước", fmt.Sprintf("tkb:%d", offset-1)),
			tgbotapi.NewInlineKeyboardButtonData("Tuần sau ➡️", fmt.Sprintf("tkb:%d", offset+1)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📆 Xuất file lịch (.ics)", fmt.Sprintf("tkb_ics:%d", offset)),
		),
	)
	b.sendWithKeyboard(chatID, formatTimetableWeek(week, monday, sunday, offset, cachedAt), keyboard)
}

func (b *Bot) handleTimetableExport(ctx context.Context, chatID int64, offset int) {
	subjects, _, err := b.fetchTimetable(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "timetable export")
		return
	}

	monday, _ := timetable.WeekWindow(time.Now().In(vnLocation), offset)
	data, err := export.ICS(timetable.WithSchedule(subjects), export.ICSOptions{From: monday})
	if err != nil {
		b.send(chatID, msgTimetableEmpty)
		return
	}
	b.sendDocument(chatID, "tkb_hutech.ics", data)
}

func (b *Bot) handleExams(ctx context.Context, chatID int64) {
	var exams []portal.Exam
	var cachedAt time.Time
	err := b.withSession(ctx, chatID, func(s *sessions.Session) error {
		key := cache.Key("lichthi", chatID, s.Username)
		if at, found, err := b.cache.Get(ctx, key, &exams); err == nil && found {
			cachedAt = at
			return nil
		}
		fresh, err := b.portal.ExamSchedule(ctx, s.LegacyToken())
		if err != nil {
			return err
		}
		exams = fresh
		cachedAt = time.Now()
		if err := b.cache.Set(ctx, key, exams, cache.TTLExams); err != nil {
			b.log.Warn().Err(err).Msg("exam cache write failed")
		}
		return nil
	})
	if err != nil {
		b.errorReply(chatID, err, "exam schedule")
		return
	}
	b.send(chatID, formatExams(exams, cachedAt))
}

func (b *Bot) handleGrades(ctx context.Context, chatID int64) {
	grades, cachedAt, err := b.fetchGrades(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "grades")
		return
	}
	if len(grades) == 0 {
		b.send(chatID, msgGradesEmpty)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, semester := range grades {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 "+semesterTitle(semester), fmt.Sprintf("diem:%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📥 Xuất bảng điểm (.xlsx)", "diem_xlsx"),
	))
	b.sendWithKeyboard(chatID, formatGradesMenu(grades, cachedAt), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleGradeDetail(ctx context.Context, chatID int64, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return
	}
	grades, _, err := b.fetchGrades(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "grade detail")
		return
	}
	if index < 0 || index >= len(grades) {
		b.send(chatID, msgGradesEmpty)
		return
	}
	b.send(chatID, formatGradeDetail(grades[index]))
}

func (b *Bot) handleGradesExport(ctx context.Context, chatID int64) {
	grades, _, err := b.fetchGrades(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "grades export")
		return
	}
	data, err := export.GradesXLSX(grades)
	if err != nil {
		b.send(chatID, msgGradesEmpty)
		return
	}
	b.sendDocument(chatID, "bang_diem_hutech.xlsx", data)
}

func (b *Bot) handleCourses(ctx context.Context, chatID int64) {
	var courses []portal.Course
	err := b.withSession(ctx, chatID, func(s *sessions.Session) error {
		key := cache.Key("hocphan", chatID, s.Username)
		if _, found, err := b.cache.Get(ctx, key, &courses); err == nil && found {
			return nil
		}
		semesters, err := b.portal.Semesters(ctx, s.LegacyToken())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(semesters))
		for _, semester := range semesters {
			keys = append(keys, semester.Key)
		}
		fresh, err := b.portal.SearchCourses(ctx, s.LegacyToken(), keys)
		if err != nil {
			return err
		}
		courses = fresh
		if err := b.cache.Set(ctx, key, courses, cache.TTLCourses); err != nil {
			b.log.Warn().Err(err).Msg("course cache write failed")
		}
		return nil
	})
	if err != nil {
		b.errorReply(chatID, err, "courses")
		return
	}
	if len(courses) == 0 {
		b.send(chatID, msgCoursesEmpty)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, course := range courses {
		if i >= 20 {
			break // Telegram keyboards get unwieldy past this
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 "+course.CourseName, fmt.Sprintf("hocphan:%d", i)),
		))
	}
	b.sendWithKeyboard(chatID, formatCourses(courses), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleCourseDetail shows the attendance history and roster size of one
// course section.
func (b *Bot) handleCourseDetail(ctx context.Context, chatID int64, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return
	}

	var detail string
	err = b.withSession(ctx, chatID, func(s *sessions.Session) error {
		var courses []portal.Course
		key := cache.Key("hocphan", chatID, s.Username)
		if _, found, err := b.cache.Get(ctx, key, &courses); err != nil || !found {
			fresh, err := b.portal.SearchCourses(ctx, s.LegacyToken(), nil)
			if err != nil {
				return err
			}
			courses = fresh
		}
		if index < 0 || index >= len(courses) {
			detail = msgCoursesEmpty
			return nil
		}
		course := courses[index]

		attendance, err := b.portal.CourseAttendance(ctx, s.LegacyToken(), course.Key)
		if err != nil {
			return err
		}
		roster, err := b.portal.CourseRoster(ctx, s.LegacyToken(), course.Key)
		if err != nil {
			return err
		}
		detail = formatCourseDetail(course, attendance, len(roster))
		return nil
	})
	if err != nil {
		b.errorReply(chatID, err, "course detail")
		return
	}
	b.send(chatID, detail)
}
