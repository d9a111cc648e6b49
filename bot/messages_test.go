package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/sessions"
)

func TestParseOffset(t *testing.T) {
	require.Equal(t, 0, parseOffset(""))
	require.Equal(t, 2, parseOffset("2"))
	require.Equal(t, -1, parseOffset("-1"))
	require.Equal(t, 0, parseOffset("abc"))
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, msgNotLoggedIn, userMessage(apperrors.ErrNoActiveAccount))
	require.Equal(t, msgNotLoggedIn, userMessage(apperrors.ErrAccountNotFound))
	require.Contains(t, userMessage(apperrors.ErrAuth), "/dangnhap")
	require.Contains(t, userMessage(apperrors.ErrTransient), "thử lại sau")
	require.Contains(t, userMessage(apperrors.ErrValidation), "không hợp lệ")
}

func TestPendingCheckinRoundTrip(t *testing.T) {
	code, all := parsePendingCheckin(pendingCheckin("QR123", true))
	require.Equal(t, "QR123", code)
	require.True(t, all)

	code, all = parsePendingCheckin(pendingCheckin("QR123", false))
	require.Equal(t, "QR123", code)
	require.False(t, all)
}

func TestFormatCheckinOutcomes(t *testing.T) {
	text := formatCheckinOutcomes("Thu Duc Campus",
		sessions.CheckinOutcome{Username: "sv001", DisplayName: "Nguyễn Văn A", OK: true, Message: "Điểm danh thành công"},
		sessions.CheckinOutcome{Username: "sv002", OK: false, Message: "Phiên đăng nhập không hợp lệ, vui lòng đăng nhập lại"},
	)
	require.Contains(t, text, "Thu Duc Campus")
	require.Contains(t, text, "✅ *Nguyễn Văn A*")
	require.Contains(t, text, "❌ *sv002*")
}

func TestFormatTimetableWeek(t *testing.T) {
	monday := time.Date(2025, 9, 1, 0, 0, 0, 0, vnLocation)
	sunday := monday.AddDate(0, 0, 6)

	t.Run("empty week", func(t *testing.T) {
		text := formatTimetableWeek(nil, monday, sunday, 0, time.Time{})
		require.Contains(t, text, "Tuần Này")
		require.Contains(t, text, "01/09/2025 - 07/09/2025")
		require.Contains(t, text, "Không có lịch học")
	})

	t.Run("classes grouped by day", func(t *testing.T) {
		subjects := []portal.Subject{
			{
				Code: "MATH101",
				Name: "Giải tích 1",
				Occurrences: []portal.Occurrence{
					{Date: "03/09/2025", StartPeriod: 7, PeriodCount: 3, Room: "B-05.01"},
				},
			},
			{
				Code: "PHYS102",
				Name: "Vật lý đại cương",
				Occurrences: []portal.Occurrence{
					{Date: "01/09/2025", StartPeriod: 1, PeriodCount: 3, Room: "E1-02.03"},
				},
			},
		}

		text := formatTimetableWeek(subjects, monday, sunday, 1, time.Time{})
		require.Contains(t, text, "Tuần Tới (+1)")
		require.Contains(t, text, "Thứ Hai")
		require.Contains(t, text, "Thứ Tư")
		require.Contains(t, text, "`12:30-14:45` *Giải tích 1*")
		require.Contains(t, text, "Tiết 1-3")

		// Monday's class is listed before Wednesday's
		require.Less(t, strings.Index(text, "Vật lý đại cương"), strings.Index(text, "Giải tích 1"))
	})

	t.Run("cache freshness note", func(t *testing.T) {
		cachedAt := time.Date(2025, 9, 1, 8, 30, 0, 0, vnLocation)
		subjects := []portal.Subject{{
			Code: "MATH101", Name: "Giải tích 1",
			Occurrences: []portal.Occurrence{{Date: "01/09/2025", StartPeriod: 1, PeriodCount: 3}},
		}}
		text := formatTimetableWeek(subjects, monday, sunday, 0, cachedAt)
		require.Contains(t, text, "08:30 01/09/2025")
	})
}

func TestFormatGradeDetail(t *testing.T) {
	semester := portal.SemesterGrades{
		SemesterName: "Học kỳ 1 2024-2025",
		Rows: []portal.GradeRow{
			{CourseCode: "MATH101", CourseName: "Giải tích 1", Grade10: "8.2", Grade4: "3.5", LetterGrade: "B+", Test1: "8.0", Exam: "8.5"},
		},
		Cumulative: portal.GradeSummary{SemesterGPA4: "3.5", CumulativeGPA4: "3.6"},
	}

	text := formatGradeDetail(semester)
	require.Contains(t, text, "Học kỳ 1 2024-2025")
	require.Contains(t, text, "Giải tích 1")
	require.Contains(t, text, "KT1: `8.0`")
	require.Contains(t, text, "Thi: `8.5`")
	require.NotContains(t, text, "KT2")
}
