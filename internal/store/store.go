package store

import (
	"context"
	"errors"
	"fmt"

	"smartattendance/internal/config"
	"smartattendance/internal/model"
)

// Store is the persistence contract shared by every backend.
//
// InsertAttendance is an atomic insert-if-absent keyed by (StudentID, Date): it returns
// model.ErrAlreadyMarked when the slot is taken and never leaves a partial row behind.
type Store interface {
	CreateStudent(ctx context.Context, st model.Student) error
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudentByID(ctx context.Context, id string) (*model.Student, error)
	GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error)
	UpdateStudent(ctx context.Context, st model.Student) error
	DeleteStudent(ctx context.Context, id string) (bool, error)

	InsertAttendance(ctx context.Context, rec model.AttendanceRecord) error
	ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error)

	Replace(ctx context.Context, students []model.Student, records []model.AttendanceRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrProcessLocal is returned by OpenShared for a driver whose data lives only in the opening process.
var ErrProcessLocal = errors.New("store driver keeps data inside one process")

// Open selects the backend named by cfg.StoreDriver.
func Open(cfg config.App) (Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return OpenFile(cfg.DataFile)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenShared is Open for processes that share data with the api, such as the
// worker and the admin CLI. The memory driver is refused.
func OpenShared(cfg config.App) (Store, error) {
	if cfg.StoreDriver == "" || cfg.StoreDriver == "memory" {
		return nil, fmt.Errorf("%w: use STORE_DRIVER=file, sqlite or postgres", ErrProcessLocal)
	}
	return Open(cfg)
}
