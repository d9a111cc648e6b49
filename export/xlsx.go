package export

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/hutechbot/backend/portal"
)

var gradeHeaders = []string{"STT", "Mã HP", "Tên học phần", "STC", "KT1", "KT2", "Thi", "Điểm 10", "Điểm 4", "Điểm chữ"}

var gradeColumnWidths = map[string]float64{
	"A": 5, "B": 15, "C": 40, "D": 5, "E": 8,
	"F": 8, "G": 8, "H": 10, "I": 10, "J": 10,
}

// GradesXLSX renders one semester's grades as a spreadsheet. When all
// semesters are passed, each gets its own sheet.
func GradesXLSX(semesters []portal.SemesterGrades) ([]byte, error) {
	if len(semesters) == 0 {
		return nil, errors.New("[GradesXLSX] no semesters to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newGradeStyles(f)
	if err != nil {
		return nil, err
	}

	for i, semester := range semesters {
		sheet := sheetName(semester, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, errors.Wrap(err, "[GradesXLSX] rename sheet")
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, errors.Wrap(err, "[GradesXLSX] create sheet")
			}
		}
		if err := writeSemester(f, sheet, semester, styles); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "[GradesXLSX] write")
	}
	return buf.Bytes(), nil
}

type gradeStyles struct {
	title      int
	header     int
	cell       int
	cellCenter int
	summary    int
}

func newGradeStyles(f *excelize.File) (*gradeStyles, error) {
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "[newGradeStyles] title")
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 12, Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F81BD"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[newGradeStyles] header")
	}
	cell, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 11},
		Border: thinBorder(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[newGradeStyles] cell")
	}
	cellCenter, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[newGradeStyles] centered cell")
	}
	summary, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 11, Bold: true},
	})
	if err != nil {
		return nil, errors.Wrap(err, "[newGradeStyles] summary")
	}
	return &gradeStyles{title: title, header: header, cell: cell, cellCenter: cellCenter, summary: summary}, nil
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, side := range sides {
		borders = append(borders, excelize.Border{Type: side, Style: 1, Color: "000000"})
	}
	return borders
}

func writeSemester(f *excelize.File, sheet string, semester portal.SemesterGrades, styles *gradeStyles) error {
	title := fmt.Sprintf("BẢNG ĐIỂM HỌC KỲ: %s", strings.ToUpper(semesterLabel(semester)))
	if err := f.MergeCell(sheet, "A1", "J1"); err != nil {
		return errors.Wrap(err, "[writeSemester] merge title")
	}
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return errors.Wrap(err, "[writeSemester] title")
	}
	if err := f.SetCellStyle(sheet, "A1", "J1", styles.title); err != nil {
		return errors.Wrap(err, "[writeSemester] title style")
	}

	for col, headerText := range gradeHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 2)
		if err := f.SetCellValue(sheet, cell, headerText); err != nil {
			return errors.Wrap(err, "[writeSemester] header")
		}
	}
	if err := f.SetCellStyle(sheet, "A2", "J2", styles.header); err != nil {
		return errors.Wrap(err, "[writeSemester] header style")
	}

	row := 3
	for i, grade := range semester.Rows {
		values := []interface{}{
			i + 1, grade.CourseCode, grade.CourseName, grade.Credits,
			grade.Test1, grade.Test2, grade.Exam,
			grade.Grade10, grade.Grade4, grade.LetterGrade,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return errors.Wrap(err, "[writeSemester] grade row")
			}
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), styles.cellCenter); err != nil {
			return errors.Wrap(err, "[writeSemester] row style")
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row), styles.cell); err != nil {
			return errors.Wrap(err, "[writeSemester] row style")
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("J%d", row), styles.cellCenter); err != nil {
			return errors.Wrap(err, "[writeSemester] row style")
		}
		row++
	}

	summary := [][2]string{
		{"Điểm TB học kỳ (hệ 4)", semester.Cumulative.SemesterGPA4},
		{"Điểm TB tích lũy (hệ 4)", semester.Cumulative.CumulativeGPA4},
		{"Số TC đạt", semester.Cumulative.CreditsPassed},
		{"Tổng TC tích lũy", semester.Cumulative.CreditsTotal},
	}
	for _, line := range summary {
		if err := f.MergeCell(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row)); err != nil {
			return errors.Wrap(err, "[writeSemester] merge summary")
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line[0]); err != nil {
			return errors.Wrap(err, "[writeSemester] summary label")
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("D%d", row), line[1]); err != nil {
			return errors.Wrap(err, "[writeSemester] summary value")
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), styles.summary); err != nil {
			return errors.Wrap(err, "[writeSemester] summary style")
		}
		row++
	}

	for col, width := range gradeColumnWidths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return errors.Wrap(err, "[writeSemester] column width")
		}
	}
	return nil
}

// sheetName keeps excelize's 31-char sheet name limit and uniqueness.
func sheetName(semester portal.SemesterGrades, index int) string {
	name := semesterLabel(semester)
	if name == "" {
		name = fmt.Sprintf("Học kỳ %d", index+1)
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}

func semesterLabel(semester portal.SemesterGrades) string {
	if semester.SemesterName != "" {
		return semester.SemesterName
	}
	return semester.SemesterKey
}
