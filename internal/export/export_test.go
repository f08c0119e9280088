package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattendance/internal/model"
)

func strPtr(s string) *string { return &s }

var (
	registered = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	jane       = model.Student{ID: "s1", FullName: "Jane Doe", IndexNumber: "IDX-1", FaceTemplate: strPtr("data:image/jpeg;base64,AAA"), RegisteredAt: registered}
	kofi       = model.Student{ID: "s2", FullName: "Kofi, Mensah", IndexNumber: "IDX-2", RegisteredAt: registered.Add(time.Minute)}
	janeMonday = model.AttendanceRecord{
		ID: "a1", StudentID: "s1", StudentFullName: "Jane Doe", StudentIndexNumber: "IDX-1",
		Timestamp: time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC), Date: "2026-03-02", Time: "09:15:00",
	}
)

func TestWriteStudentsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStudentsCSV(&buf, []model.Student{jane, kofi}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "fullName", "indexNumber", "registeredAt"}, rows[0])
	assert.Equal(t, []string{"s1", "Jane Doe", "IDX-1", "2026-03-02T08:00:00Z"}, rows[1])
	assert.Equal(t, "Kofi, Mensah", rows[2][1])
	assert.NotContains(t, buf.String(), "base64")
}

func TestWriteAttendanceCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAttendanceCSV(&buf, []model.AttendanceRecord{janeMonday}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, attendanceHeader, rows[0])
	assert.Equal(t, []string{"a1", "s1", "Jane Doe", "IDX-1", "2026-03-02T09:15:00Z", "2026-03-02", "09:15:00"}, rows[1])
}

func TestReadBackup(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		wantLen [2]int
	}{
		{name: "not json", doc: "hello", wantErr: true},
		{name: "missing students", doc: `{"attendanceRecords": []}`, wantErr: true},
		{name: "missing records", doc: `{"students": []}`, wantErr: true},
		{name: "null students", doc: `{"students": null, "attendanceRecords": []}`, wantErr: true},
		{name: "object instead of array", doc: `{"students": {}, "attendanceRecords": []}`, wantErr: true},
		{name: "empty arrays", doc: `{"students": [], "attendanceRecords": []}`},
		{
			name:    "populated",
			doc:     `{"students":[{"id":"s1","fullName":"Jane Doe","indexNumber":"IDX-1","faceTemplate":null,"registeredAt":"2026-03-02T08:00:00Z"}],"attendanceRecords":[],"timestamp":"2026-03-03T00:00:00Z"}`,
			wantLen: [2]int{1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ReadBackup(strings.NewReader(tt.doc))
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrMalformedBackup)
				return
			}
			require.NoError(t, err)
			assert.Len(t, b.Students, tt.wantLen[0])
			assert.Len(t, b.AttendanceRecords, tt.wantLen[1])
		})
	}
}

func TestBackupValidate(t *testing.T) {
	dupIndex := kofi
	dupIndex.IndexNumber = jane.IndexNumber
	secondMark := janeMonday
	secondMark.ID = "a2"

	tests := []struct {
		name    string
		backup  Backup
		wantErr bool
	}{
		{name: "valid", backup: Backup{Students: []model.Student{jane, kofi}, AttendanceRecords: []model.AttendanceRecord{janeMonday}}},
		{name: "duplicate index", backup: Backup{Students: []model.Student{jane, dupIndex}}, wantErr: true},
		{name: "same day twice", backup: Backup{Students: []model.Student{jane}, AttendanceRecords: []model.AttendanceRecord{janeMonday, secondMark}}, wantErr: true},
		{name: "orphan record is fine", backup: Backup{AttendanceRecords: []model.AttendanceRecord{janeMonday}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backup.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrMalformedBackup)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeRepo struct {
	students []model.Student
	records  []model.AttendanceRecord
	replaced bool
}

func (f *fakeRepo) ListStudents(context.Context) ([]model.Student, error) { return f.students, nil }

func (f *fakeRepo) ListAttendance(context.Context, model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	return f.records, nil
}

func (f *fakeRepo) Replace(_ context.Context, students []model.Student, records []model.AttendanceRecord) error {
	f.students, f.records, f.replaced = students, records, true
	return nil
}

func TestServiceBackupRestore(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	src := &fakeRepo{students: []model.Student{jane, kofi}, records: []model.AttendanceRecord{janeMonday}}

	var buf bytes.Buffer
	require.NoError(t, NewService(src, func() time.Time { return at }).Backup(ctx, &buf))

	dst := &fakeRepo{}
	b, err := NewService(dst, nil).Restore(ctx, &buf)
	require.NoError(t, err)
	assert.True(t, dst.replaced)
	assert.Equal(t, at, b.Timestamp)
	require.Len(t, dst.students, 2)
	assert.Equal(t, *jane.FaceTemplate, *dst.students[0].FaceTemplate, "backup keeps templates")
	assert.Equal(t, src.records, dst.records)

	bad := &fakeRepo{}
	_, err = NewService(bad, nil).Restore(ctx, strings.NewReader(`{"students": []}`))
	assert.ErrorIs(t, err, model.ErrMalformedBackup)
	assert.False(t, bad.replaced, "malformed backup must not touch the store")

	assert.Equal(t, "smart_attendance_backup_2026-03-03.json", BackupFilename(at))
}

func TestRestoreLogsTimestamp(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "with timestamp", doc: `{"students":[],"attendanceRecords":[],"timestamp":"2026-03-03T12:00:00Z"}`, want: "restored backup from 2026-03-03T12:00:00Z: 0 students"},
		{name: "without timestamp", doc: `{"students":[],"attendanceRecords":[]}`, want: "restored backup: 0 students"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			_, err := NewService(&fakeRepo{}, nil).Restore(context.Background(), strings.NewReader(tt.doc))
			require.NoError(t, err)
			assert.Contains(t, logs.String(), tt.want)
			assert.NotContains(t, logs.String(), "0001-01-01")
		})
	}
}
