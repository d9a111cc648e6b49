package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/sessions"
	"github.com/hutechbot/backend/timetable"
)

const (
	msgHelp = `🎓 *HUTECH Bot*

Các lệnh hỗ trợ:
/dangnhap - Đăng nhập tài khoản sinh viên
/dangxuat - Đăng xuất tài khoản hiện tại (thêm ` + "`all`" + ` để đăng xuất tất cả)
/danhsach - Danh sách tài khoản đã liên kết
/vitri - Chọn cơ sở điểm danh mặc định
/diemdanh <mã QR> - Điểm danh tài khoản hiện tại
/diemdanhtatca <mã QR> - Điểm danh tất cả tài khoản
/tkb - Thời khóa biểu tuần
/lichthi - Lịch thi
/diem - Bảng điểm
/hocphan - Danh sách học phần
/chinhsach - Chính sách bảo mật
/trogiup - Hiển thị trợ giúp này`

	msgUnknownCommand = "Lệnh không hợp lệ. Gõ /trogiup để xem danh sách lệnh."
	msgInternalError  = "Đã xảy ra lỗi, vui lòng thử lại sau."

	msgConsentRequired = "Bạn cần đồng ý với chính sách bảo mật trước khi sử dụng bot. Gõ /chinhsach để xem và xác nhận."
	msgPolicy          = `🔒 *Chính Sách Bảo Mật*

Bot lưu trữ mã số sinh viên và mật khẩu (đã mã hóa) của bạn để tự động đăng nhập lại khi phiên hết hạn. Dữ liệu chỉ được dùng để gọi các API chính thức của HUTECH thay mặt bạn.

Bạn có thể xóa toàn bộ dữ liệu bất cứ lúc nào bằng lệnh ` + "`/dangxuat all`" + `.`
	msgConsentAccepted = "✅ Cảm ơn bạn! Bây giờ bạn có thể /dangnhap để bắt đầu."
	msgConsentDeclined = "Bạn đã từ chối chính sách bảo mật nên bot không thể lưu tài khoản của bạn. Gõ /chinhsach nếu bạn đổi ý."

	msgLoginAskUsername = "Nhập *mã số sinh viên* của bạn:"
	msgLoginAskPassword = "Nhập *mật khẩu* (tin nhắn sẽ được xóa ngay sau khi đọc):"
	msgLoginAborted     = "Đã hủy đăng nhập. Gõ /dangnhap để thử lại."
	msgLoginRejected    = "❌ Sai mã số sinh viên hoặc mật khẩu. Gõ /dangnhap để thử lại."
	msgLoginSuccess     = "✅ Xin chào *%s*! Đăng nhập thành công."

	msgNotLoggedIn      = "Bạn chưa đăng nhập. Gõ /dangnhap để liên kết tài khoản."
	msgLogoutDone       = "Đã đăng xuất tài khoản *%s*."
	msgLogoutAllDone    = "Đã đăng xuất %d tài khoản và xóa toàn bộ dữ liệu."
	msgLogoutSwitchHint = "Đã đăng xuất *%s*. Bạn còn %d tài khoản, gõ /danhsach để chọn tài khoản hoạt động."

	msgAccountListHeader = "👥 *Tài khoản đã liên kết:*\n\n"
	msgAccountSwitched   = "✅ Đã chuyển sang tài khoản `%s`."

	msgCampusPrompt  = "📍 Chọn cơ sở điểm danh mặc định:"
	msgCampusCurrent = "📍 Cơ sở hiện tại: *%s*\n\nChọn cơ sở khác hoặc xóa:"
	msgCampusSaved   = "✅ Đã lưu cơ sở điểm danh: *%s*."
	msgCampusCleared = "Đã xóa cơ sở điểm danh mặc định."
	msgCampusUnknown = "Cơ sở không hợp lệ."

	msgCheckinNoCode      = "Thiếu mã QR. Dùng: `/diemdanh <mã QR>`"
	msgCheckinPickCampus  = "Bạn chưa lưu cơ sở mặc định. Chọn cơ sở để điểm danh:"
	msgCheckinExpiredPick = "Yêu cầu điểm danh đã hết hạn, vui lòng gửi lại mã QR."

	msgTimetableEmpty = "Không có lịch học nào để hiển thị."
	msgGradesEmpty    = "Chưa có dữ liệu điểm."
	msgCoursesEmpty   = "Chưa có dữ liệu học phần."
)

// userMessage maps an internal error to the reply shown in chat.
func userMessage(err error) string {
	if apperrors.Is(err, apperrors.ErrNoActiveAccount) || apperrors.Is(err, apperrors.ErrNotLoggedIn) || apperrors.Is(err, apperrors.ErrAccountNotFound) {
		return msgNotLoggedIn
	}
	switch apperrors.Classify(err) {
	case apperrors.KindAuth:
		return "🔑 Phiên đăng nhập không còn hợp lệ. Gõ /dangnhap để đăng nhập lại."
	case apperrors.KindValidation:
		return "Yêu cầu không hợp lệ, vui lòng kiểm tra lại."
	default:
		return "⚠️ Không thể kết nối đến hệ thống HUTECH, vui lòng thử lại sau."
	}
}

func formatCheckinOutcomes(campus string, outcomes ...sessions.CheckinOutcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📍 *Điểm danh tại %s*\n\n", campus)
	for _, outcome := range outcomes {
		marker := "✅"
		if !outcome.OK {
			marker = "❌"
		}
		fmt.Fprintf(&sb, "%s *%s*: %s\n", marker, outcome.Label(), outcome.Message)
	}
	return sb.String()
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Thứ Hai",
	time.Tuesday:   "Thứ Ba",
	time.Wednesday: "Thứ Tư",
	time.Thursday:  "Thứ Năm",
	time.Friday:    "Thứ Sáu",
	time.Saturday:  "Thứ Bảy",
	time.Sunday:    "Chủ Nhật",
}

type daySlot struct {
	subject portal.Subject
	occ     portal.Occurrence
}

func formatTimetableWeek(subjects []portal.Subject, monday, sunday time.Time, offset int, cachedAt time.Time) string {
	var sb strings.Builder
	switch {
	case offset == 0:
		sb.WriteString("📅 *Thời Khóa Biểu - Tuần Này*\n")
	case offset > 0:
		fmt.Fprintf(&sb, "📅 *Thời Khóa Biểu - Tuần Tới (+%d)*\n", offset)
	default:
		fmt.Fprintf(&sb, "📅 *Thời Khóa Biểu - Tuần Trước (%d)*\n", offset)
	}
	fmt.Fprintf(&sb, "🗓 `%s - %s`\n", monday.Format(timetable.DateLayout), sunday.Format(timetable.DateLayout))

	if len(subjects) == 0 {
		sb.WriteString("\nKhông có lịch học trong tuần này. 🎉")
		return sb.String()
	}

	byDate := make(map[string][]daySlot)
	for _, subject := range subjects {
		for _, occ := range subject.Occurrences {
			byDate[occ.Date] = append(byDate[occ.Date], daySlot{subject: subject, occ: occ})
		}
	}

	for day := monday; !day.After(sunday); day = day.AddDate(0, 0, 1) {
		slots := byDate[day.Format(timetable.DateLayout)]
		if len(slots) == 0 {
			continue
		}
		sort.Slice(slots, func(i, j int) bool {
			return slots[i].occ.StartPeriod < slots[j].occ.StartPeriod
		})

		fmt.Fprintf(&sb, "\n*%s* (%s)\n", weekdayNames[day.Weekday()], day.Format(timetable.DateLayout))
		for _, slot := range slots {
			start := timetable.PeriodStart(slot.occ.StartPeriod)
			end := timetable.PeriodEnd(slot.occ.StartPeriod, slot.occ.PeriodCount)
			fmt.Fprintf(&sb, "  🕑 `%s-%s` *%s*\n", start, end, slot.subject.Name)
			fmt.Fprintf(&sb, "      Phòng: `%s` | Tiết %d-%d\n",
				slot.occ.Room, slot.occ.StartPeriod, slot.occ.StartPeriod+slot.occ.PeriodCount-1)
		}
	}

	appendFreshness(&sb, cachedAt)
	return sb.String()
}

func formatExams(exams []portal.Exam, cachedAt time.Time) string {
	if len(exams) == 0 {
		return "Không có lịch thi nào. 🎉"
	}
	var sb strings.Builder
	sb.WriteString("📝 *Lịch Thi*\n")
	for _, exam := range exams {
		fmt.Fprintf(&sb, "\n*%s* (`%s`)\n", exam.CourseName, exam.CourseCode)
		fmt.Fprintf(&sb, "  🗓 %s %s | Phòng: `%s`\n", exam.Date, exam.Time, exam.Room)
		if exam.Format != "" {
			fmt.Fprintf(&sb, "  Hình thức: %s\n", exam.Format)
		}
	}
	appendFreshness(&sb, cachedAt)
	return sb.String()
}

func semesterTitle(semester portal.SemesterGrades) string {
	if semester.SemesterName != "" {
		return semester.SemesterName
	}
	return semester.SemesterKey
}

func formatGradesMenu(grades []portal.SemesterGrades, cachedAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("📊 *Bảng Điểm Các Học Kỳ*\n")
	for _, semester := range grades {
		fmt.Fprintf(&sb, "\n*%s*\n", semesterTitle(semester))
		fmt.Fprintf(&sb, "  - Điểm TB (Hệ 4): `%s`\n", orNA(semester.Cumulative.SemesterGPA4))
		fmt.Fprintf(&sb, "  - Số TC đạt: `%s`\n", orNA(semester.Cumulative.CreditsPassed))
	}
	sb.WriteString("\nChọn học kỳ để xem điểm chi tiết.")
	appendFreshness(&sb, cachedAt)
	return sb.String()
}

func formatGradeDetail(semester portal.SemesterGrades) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Điểm Chi Tiết - %s*\n", semesterTitle(semester))
	fmt.Fprintf(&sb, "  - Điểm TB (Hệ 4): `%s`\n", orNA(semester.Cumulative.SemesterGPA4))
	fmt.Fprintf(&sb, "  - Điểm TB Tích Lũy (Hệ 4): `%s`\n", orNA(semester.Cumulative.CumulativeGPA4))
	fmt.Fprintf(&sb, "  - Số TC đạt: `%s` | Tổng TC tích lũy: `%s`\n",
		orNA(semester.Cumulative.CreditsPassed), orNA(semester.Cumulative.CreditsTotal))

	sb.WriteString("\n- - - - - *Điểm Môn Học* - - - - -\n")
	for _, row := range semester.Rows {
		fmt.Fprintf(&sb, "\n*%s* (`%s`)\n", row.CourseName, row.CourseCode)
		fmt.Fprintf(&sb, "  - Tổng kết: `%s` (Hệ 10) - `%s` (Hệ 4) - `%s`\n",
			orNA(row.Grade10), orNA(row.Grade4), orNA(row.LetterGrade))

		var components []string
		if row.Test1 != "" {
			components = append(components, fmt.Sprintf("KT1: `%s`", row.Test1))
		}
		if row.Test2 != "" {
			components = append(components, fmt.Sprintf("KT2: `%s`", row.Test2))
		}
		if row.Exam != "" {
			components = append(components, fmt.Sprintf("Thi: `%s`", row.Exam))
		}
		if len(components) > 0 {
			fmt.Fprintf(&sb, "  - Thành phần: %s\n", strings.Join(components, ", "))
		}
	}
	return sb.String()
}

func formatCourses(courses []portal.Course) string {
	var sb strings.Builder
	sb.WriteString("📚 *Học Phần Của Bạn*\n")
	for _, course := range courses {
		fmt.Fprintf(&sb, "\n*%s* (`%s`)\n", course.CourseName, course.CourseCode)
		if course.Group != "" {
			fmt.Fprintf(&sb, "  Nhóm: `%s`\n", course.Group)
		}
	}
	sb.WriteString("\nChọn học phần để xem lịch sử điểm danh.")
	return sb.String()
}

func formatCourseDetail(course portal.Course, attendance []portal.AttendanceRecord, rosterSize int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 *%s* (`%s`)\n", course.CourseName, course.CourseCode)
	if rosterSize > 0 {
		fmt.Fprintf(&sb, "Sĩ số lớp: %d\n", rosterSize)
	}

	if len(attendance) == 0 {
		sb.WriteString("\nChưa có buổi điểm danh nào.")
		return sb.String()
	}
	sb.WriteString("\n*Lịch sử điểm danh:*\n")
	for _, record := range attendance {
		fmt.Fprintf(&sb, "  - %s (%s): %s\n", record.Date, record.Session, record.Status)
	}
	return sb.String()
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

func appendFreshness(sb *strings.Builder, cachedAt time.Time) {
	if cachedAt.IsZero() {
		return
	}
	fmt.Fprintf(sb, "\n_Dữ liệu lúc %s_", cachedAt.In(vnLocation).Format("15:04 02/01/2006"))
}
