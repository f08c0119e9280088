package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"smartattendance/internal/model"
)

// Backup is the full-data JSON document used for backup, restore and the file store.
type Backup struct {
	Students          []model.Student          `json:"students"`
	AttendanceRecords []model.AttendanceRecord `json:"attendanceRecords"`
	Timestamp         time.Time                `json:"timestamp"`
}

// WriteBackup encodes both collections with the given timestamp.
func WriteBackup(w io.Writer, students []model.Student, records []model.AttendanceRecord, at time.Time) error {
	if students == nil {
		students = []model.Student{}
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Backup{Students: students, AttendanceRecords: records, Timestamp: at.UTC()})
}

// ReadBackup decodes a backup document. Both arrays must be present.
func ReadBackup(r io.Reader) (Backup, error) {
	var raw struct {
		Students          json.RawMessage `json:"students"`
		AttendanceRecords json.RawMessage `json:"attendanceRecords"`
		Timestamp         *time.Time      `json:"timestamp"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", model.ErrMalformedBackup, err)
	}
	var b Backup
	if err := decodeArray(raw.Students, &b.Students); err != nil {
		return Backup{}, fmt.Errorf("%w: students: %v", model.ErrMalformedBackup, err)
	}
	if err := decodeArray(raw.AttendanceRecords, &b.AttendanceRecords); err != nil {
		return Backup{}, fmt.Errorf("%w: attendanceRecords: %v", model.ErrMalformedBackup, err)
	}
	if raw.Timestamp != nil {
		b.Timestamp = *raw.Timestamp
	}
	return b, nil
}

func decodeArray(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || raw[0] != '[' {
		return fmt.Errorf("missing or not an array")
	}
	return json.Unmarshal(raw, dst)
}

// Validate checks the invariants a restore must not break.
func (b Backup) Validate() error {
	indexes := make(map[string]struct{}, len(b.Students))
	ids := make(map[string]struct{}, len(b.Students))
	for _, st := range b.Students {
		if st.ID == "" || st.IndexNumber == "" {
			return fmt.Errorf("%w: student without id or index number", model.ErrMalformedBackup)
		}
		if _, dup := indexes[st.IndexNumber]; dup {
			return fmt.Errorf("%w: duplicate index number %q", model.ErrMalformedBackup, st.IndexNumber)
		}
		if _, dup := ids[st.ID]; dup {
			return fmt.Errorf("%w: duplicate student id %q", model.ErrMalformedBackup, st.ID)
		}
		indexes[st.IndexNumber] = struct{}{}
		ids[st.ID] = struct{}{}
	}
	days := make(map[string]struct{}, len(b.AttendanceRecords))
	for _, rec := range b.AttendanceRecords {
		if rec.ID == "" || rec.StudentID == "" || rec.Date == "" {
			return fmt.Errorf("%w: attendance record without id, student or date", model.ErrMalformedBackup)
		}
		if _, dup := days[rec.DayKey()]; dup {
			return fmt.Errorf("%w: student %s marked twice on %s", model.ErrMalformedBackup, rec.StudentID, rec.Date)
		}
		days[rec.DayKey()] = struct{}{}
	}
	return nil
}
