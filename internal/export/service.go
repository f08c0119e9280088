package export

import (
	"context"
	"io"
	"log"
	"time"

	"smartattendance/internal/model"
)

// Repository is the slice of the store the export surface needs.
type Repository interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error)
	Replace(ctx context.Context, students []model.Student, records []model.AttendanceRecord) error
}

// Service produces CSV exports and full backups, and restores them.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an export service over repo.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

func (s *Service) StudentsCSV(ctx context.Context, w io.Writer) error {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return err
	}
	return WriteStudentsCSV(w, students)
}

func (s *Service) AttendanceCSV(ctx context.Context, w io.Writer, filter model.AttendanceFilter) error {
	records, err := s.repo.ListAttendance(ctx, filter)
	if err != nil {
		return err
	}
	return WriteAttendanceCSV(w, records)
}

// Backup writes every student and record as one JSON document.
func (s *Service) Backup(ctx context.Context, w io.Writer) error {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return err
	}
	records, err := s.repo.ListAttendance(ctx, model.AttendanceFilter{})
	if err != nil {
		return err
	}
	return WriteBackup(w, students, records, s.now())
}

// Restore validates a backup document and replaces all stored data with it.
func (s *Service) Restore(ctx context.Context, r io.Reader) (Backup, error) {
	b, err := ReadBackup(r)
	if err != nil {
		return Backup{}, err
	}
	if err := b.Validate(); err != nil {
		return Backup{}, err
	}
	if err := s.repo.Replace(ctx, b.Students, b.AttendanceRecords); err != nil {
		return Backup{}, err
	}
	log.Printf("%s: %d students, %d attendance records", restoredFrom(b.Timestamp), len(b.Students), len(b.AttendanceRecords))
	return b, nil
}

func restoredFrom(ts time.Time) string {
	if ts.IsZero() {
		return "restored backup"
	}
	return "restored backup from " + ts.Format(time.RFC3339)
}

// BackupFilename is the suggested download name for a backup taken at t.
func BackupFilename(t time.Time) string {
	return "smart_attendance_backup_" + t.Format(model.DateLayout) + ".json"
}
