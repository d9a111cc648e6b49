package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/hutechbot/backend/internal/errors"
)

// Portal endpoints. The contract is fixed but not owned by this system.
const (
	loginPath            = "/api-permission-v2-sinh-vien/api/authen/user/enter-system/login-normal"
	logoutPath           = "/api-permission-v2-sinh-vien/api/authen/user/enter-system/logout"
	timetablePath        = "/api-elearning-v2/api/tkb-sinh-vien/xem-tkb"
	examSchedulePath     = "/api-elearning-v2/api/lich-thi-sinh-vien/xem-lich-thi"
	gradesPath           = "/api-elearning-v2/api/diem-sinh-vien/xem-diem"
	semestersPath        = "/api-elearning/api/lop-hoc-phan/sinh-vien/nam-hoc-hoc-ky/get"
	courseSearchPath     = "/api-elearning/api/lop-hoc-phan/sinh-vien/search"
	courseAttendancePath = "/api-elearning/api/lop-hoc-phan/sinh-vien/diem-danh/get-list"
	courseRosterPath     = "/api-elearning/api/lop-hoc-phan/sinh-vien/get"
	checkinPath          = "/api-elearning/api/qr-code/submit"
)

const (
	appKeyStudent = "SINHVIEN_DAIHOC"
	appKeyMobile  = "MOBILE_HUTECH"
	userAgent     = "Dart/3.8 (dart:io)"
)

// Client performs authenticated HTTP operations against the HUTECH student
// portal. It classifies failures into the error kinds the session manager
// expects but holds no session state of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a portal client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "portal").Logger(),
	}
}

// Login authenticates a student. A response without a token is treated as
// rejected credentials, matching the portal's observed behavior.
func (c *Client) Login(ctx context.Context, username, password, deviceUUID string) (*LoginResult, error) {
	body := map[string]string{
		"diuu":     deviceUUID,
		"username": username,
		"password": password,
	}

	var resp loginResponse
	if err := c.post(ctx, loginPath, appKeyStudent, "", body, &resp, http.StatusOK); err != nil {
		return nil, errors.Wrap(err, "[Client.Login] post")
	}
	if resp.Token == "" {
		return nil, apperrors.ErrAuth
	}

	result := &LoginResult{
		Token:       resp.Token,
		LegacyToken: resp.OldLoginInfo.Token,
		DisplayName: resp.Data.HoTen,
	}
	if result.DisplayName == "" {
		result.DisplayName = resp.OldLoginInfo.Result.HoTen
	}
	return result, nil
}

// Logout invalidates a portal session. Best effort; the caller removes the
// stored account regardless.
func (c *Client) Logout(ctx context.Context, token, deviceUUID string) error {
	body := map[string]string{"diuu": deviceUUID}
	err := c.post(ctx, logoutPath, appKeyStudent, token, body, nil, http.StatusOK)
	return errors.Wrap(err, "[Client.Logout] post")
}

// Timetable fetches the student's full timetable. The endpoint answers 201
// and prefers the legacy elearning token.
func (c *Client) Timetable(ctx context.Context, token string) ([]Subject, error) {
	var subjects []Subject
	if err := c.post(ctx, timetablePath, appKeyMobile, token, struct{}{}, &subjects, http.StatusCreated, http.StatusOK); err != nil {
		return nil, errors.Wrap(err, "[Client.Timetable] post")
	}
	return subjects, nil
}

// ExamSchedule fetches the student's exam schedule.
func (c *Client) ExamSchedule(ctx context.Context, token string) ([]Exam, error) {
	var exams []Exam
	if err := c.post(ctx, examSchedulePath, appKeyMobile, token, struct{}{}, &exams, http.StatusCreated, http.StatusOK); err != nil {
		return nil, errors.Wrap(err, "[Client.ExamSchedule] post")
	}
	return exams, nil
}

// Grades fetches the student's grade history grouped by semester.
func (c *Client) Grades(ctx context.Context, token string) ([]SemesterGrades, error) {
	var grades []SemesterGrades
	if err := c.post(ctx, gradesPath, appKeyMobile, token, struct{}{}, &grades, http.StatusCreated, http.StatusOK); err != nil {
		return nil, errors.Wrap(err, "[Client.Grades] post")
	}
	return grades, nil
}

// Semesters fetches the academic year / term pairs the student can query.
func (c *Client) Semesters(ctx context.Context, token string) ([]Semester, error) {
	var semesters []Semester
	if err := c.post(ctx, semestersPath, appKeyMobile, token, struct{}{}, &semesters, http.StatusOK, http.StatusCreated); err != nil {
		return nil, errors.Wrap(err, "[Client.Semesters] post")
	}
	return semesters, nil
}

// SearchCourses fetches the student's course sections for the given semesters.
func (c *Client) SearchCourses(ctx context.Context, token string, semesterKeys []string) ([]Course, error) {
	body := map[string][]string{"nam_hoc_hoc_ky": semesterKeys}
	var courses []Course
	if err := c.post(ctx, courseSearchPath, appKeyMobile, token, body, &courses, http.StatusOK, http.StatusCreated); err != nil {
		return nil, errors.Wrap(err, "[Client.SearchCourses] post")
	}
	return courses, nil
}

// CourseAttendance fetches the attendance records of one course section.
func (c *Client) CourseAttendance(ctx context.Context, token, courseKey string) ([]AttendanceRecord, error) {
	body := map[string]string{"key_lop_hoc_phan": courseKey}
	var records []AttendanceRecord
	if err := c.post(ctx, courseAttendancePath, appKeyMobile, token, body, &records, http.StatusOK, http.StatusCreated); err != nil {
		return nil, errors.Wrap(err, "[Client.CourseAttendance] post")
	}
	return records, nil
}

// CourseRoster fetches the student list of one course section.
func (c *Client) CourseRoster(ctx context.Context, token, courseKey string) ([]RosterEntry, error) {
	body := map[string]string{"key_lop_hoc_phan": courseKey}
	var roster []RosterEntry
	if err := c.post(ctx, courseRosterPath, appKeyMobile, token, body, &roster, http.StatusOK, http.StatusCreated); err != nil {
		return nil, errors.Wrap(err, "[Client.CourseRoster] post")
	}
	return roster, nil
}

// SubmitCheckin submits a QR attendance check-in. Failures carry the
// portal's own message so it can be shown to the user verbatim.
func (c *Client) SubmitCheckin(ctx context.Context, token, code, deviceUUID string, loc Location) (*CheckinResult, error) {
	body := map[string]interface{}{
		"code":      code,
		"qr_key":    "DIEM_DANH",
		"device_id": deviceUUID,
		"diuu":      deviceUUID,
		"location":  loc,
	}

	var result CheckinResult
	if err := c.post(ctx, checkinPath, appKeyMobile, token, body, &result, http.StatusOK); err != nil {
		return nil, errors.Wrap(err, "[Client.SubmitCheckin] post")
	}
	if result.Message == "" {
		result.Message = "Điểm danh thành công"
	}
	return &result, nil
}

// post sends a JSON request and decodes the response into out (when non-nil).
// Non-OK statuses are classified into the error kinds of internal/errors,
// keeping any message the portal included.
func (c *Client) post(ctx context.Context, path, appKey, token string, body, out interface{}, okStatuses ...int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("user-agent", userAgent)
	req.Header.Set("app-key", appKey)
	req.Header.Set("content-type", "application/json")
	if token != "" {
		req.Header.Set("authorization", "JWT "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrTransient, "send request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrTransient, "read response: %v", err)
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("portal request")

	ok := false
	for _, status := range okStatuses {
		if resp.StatusCode == status {
			ok = true
			break
		}
	}
	if !ok {
		return classifyResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.Wrapf(apperrors.ErrTransient, "parse response: %v", err)
	}
	return nil
}

// classifyResponse turns a non-OK portal response into a classified error,
// keeping the portal's message when the body carries one.
func classifyResponse(status int, body []byte) error {
	kind := apperrors.FromStatusCode(status)

	var envelope checkinError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Reasons.Message != "" {
		return apperrors.Wrapf(kind, "portal status %d: %s", status, envelope.Reasons.Message)
	}
	var generic struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &generic); err == nil && generic.Message != "" {
		return apperrors.Wrapf(kind, "portal status %d: %s", status, generic.Message)
	}
	return apperrors.Wrapf(kind, "portal status %d", status)
}
