package portal

// LoginResult is the useful subset of the portal login response. The portal
// returns a fresh permission-v2 JWT plus, nested under old_login_info, the
// token the older elearning APIs still expect.
type LoginResult struct {
	Token       string // permission-v2 JWT
	LegacyToken string // old_login_info token, may be empty
	DisplayName string // student's full name, may be empty
}

type loginResponse struct {
	Token string `json:"token"`
	Data  struct {
		HoTen string `json:"ho_ten"`
		Email string `json:"email"`
	} `json:"data"`
	OldLoginInfo struct {
		Token  string `json:"token"`
		Result struct {
			HoTen string `json:"Ho_Ten"`
		} `json:"result"`
	} `json:"old_login_info"`
}

// Subject is one course in the timetable response, with its list of
// scheduled class occurrences.
type Subject struct {
	Code        string       `json:"ma_hp"`
	Name        string       `json:"ten_hp"`
	Occurrences []Occurrence `json:"chi_tiet_tkb"`
}

// Occurrence is a single scheduled class meeting. Dates use dd/mm/yyyy;
// periods index the fixed 15-period teaching day.
type Occurrence struct {
	Date        string `json:"ngay_hoc"`
	Weekday     *int   `json:"thu,omitempty"`
	StartPeriod int    `json:"tiet_bd"`
	PeriodCount int    `json:"so_tiet"`
	Room        string `json:"phong_hoc"`
}

// Exam is one entry in the exam schedule response.
type Exam struct {
	CourseCode string `json:"ma_hp"`
	CourseName string `json:"ten_hp"`
	Date       string `json:"ngay_thi"`
	Time       string `json:"gio_thi"`
	Room       string `json:"phong_thi"`
	Format     string `json:"hinh_thuc_thi"`
}

// SemesterGrades groups the grade rows and cumulative figures of one semester.
type SemesterGrades struct {
	SemesterKey  string       `json:"nam_hoc_hoc_ky"`
	SemesterName string       `json:"nam_hoc_hoc_ky_name"`
	Rows         []GradeRow   `json:"diem_chi_tiet"`
	Cumulative   GradeSummary `json:"diem_tich_luy"`
}

// GradeRow is the grade record of one course.
type GradeRow struct {
	CourseCode  string `json:"ma_hp"`
	CourseName  string `json:"ten_hp"`
	Credits     string `json:"stc"`
	Test1       string `json:"diem_kiem_tra_1"`
	Test2       string `json:"diem_kiem_tra_2"`
	Exam        string `json:"diem_thi"`
	Grade10     string `json:"diem_he_10"`
	Grade4      string `json:"diem_he_4"`
	LetterGrade string `json:"diem_chu"`
}

// GradeSummary carries the per-semester and cumulative GPA figures.
type GradeSummary struct {
	SemesterGPA4   string `json:"diem_trung_binh_he_4"`
	CumulativeGPA4 string `json:"diem_trung_binh_tich_luy_he_4"`
	CreditsPassed  string `json:"so_tin_chi_dat"`
	CreditsTotal   string `json:"so_tin_chi_tich_luy"`
}

// Semester is one academic year / term pair from the course APIs.
type Semester struct {
	Key  string `json:"ma_hoc_ky"`
	Name string `json:"ten_hoc_ky"`
}

// Course is one course section from the course search API.
type Course struct {
	Key        string     `json:"key_lop_hoc_phan"`
	CourseCode string     `json:"ma_hp"`
	CourseName string     `json:"ten_hp"`
	Group      string     `json:"nhom"`
	Info       CourseInfo `json:"json_thong_tin"`
}

// CourseInfo is the nested metadata blob on a course section.
type CourseInfo struct {
	Year string `json:"nam_hoc"`
	Term string `json:"hoc_ky"`
}

// AttendanceRecord is one attendance entry of a course section.
type AttendanceRecord struct {
	Date    string `json:"ngay_diem_danh"`
	Status  string `json:"trang_thai"`
	Session string `json:"buoi_hoc"`
}

// RosterEntry is one student on a course roster.
type RosterEntry struct {
	StudentCode string `json:"ma_sinh_vien"`
	FullName    string `json:"ho_ten"`
	Class       string `json:"lop"`
}

// CheckinResult is the outcome the portal reports for a QR check-in.
type CheckinResult struct {
	Message string `json:"message"`
}

// Location is a GPS coordinate sent with a check-in.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// checkinError is the portal's error envelope on a failed check-in.
type checkinError struct {
	StatusCode int `json:"statusCode"`
	Reasons    struct {
		Message string `json:"message"`
	} `json:"reasons"`
}
