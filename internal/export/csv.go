package export

import (
	"encoding/csv"
	"io"
	"time"

	"smartattendance/internal/model"
)

var (
	studentHeader    = []string{"id", "fullName", "indexNumber", "registeredAt"}
	attendanceHeader = []string{"id", "studentId", "studentFullName", "studentIndexNumber", "timestamp", "date", "time"}
)

// WriteStudentsCSV dumps the roster. Face templates are never exported.
func WriteStudentsCSV(w io.Writer, students []model.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(studentHeader); err != nil {
		return err
	}
	for _, st := range students {
		if err := cw.Write([]string{st.ID, st.FullName, st.IndexNumber, st.RegisteredAt.Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttendanceCSV dumps ledger rows in field declaration order.
func WriteAttendanceCSV(w io.Writer, records []model.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(attendanceHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.ID, r.StudentID, r.StudentFullName, r.StudentIndexNumber, r.Timestamp.Format(time.RFC3339), r.Date, r.Time}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
