package attendance

import (
	"context"

	"smartattendance/internal/model"
	"smartattendance/internal/queue"
)

// Repository is the ledger's view of storage. InsertAttendance must be an atomic
// insert-if-absent on (studentId, date) and report a clash as model.ErrAlreadyMarked.
type Repository interface {
	GetStudentByID(ctx context.Context, id string) (*model.Student, error)
	GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error)
	InsertAttendance(ctx context.Context, rec model.AttendanceRecord) error
	ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error)
}

// Publisher receives an event for every persisted record.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}
