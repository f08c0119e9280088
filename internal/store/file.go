package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"smartattendance/internal/export"
	"smartattendance/internal/model"
)

// File is a Memory store persisted to a JSON document in the backup format.
// Several processes may open the same path: writes hold an exclusive lock on
// path+".lock", reload the document, apply the change and rewrite it. Reads
// reload whenever another handle has replaced the document.
// A mutation is kept only if the document was rewritten successfully.
type File struct {
	*Memory
	path string
	lock *flock.Flock

	mu     sync.Mutex // serializes this handle's use of lock and loaded
	loaded os.FileInfo
}

// OpenFile loads the document at path, or starts empty if it does not exist yet.
func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
		}
	}
	f := &File{Memory: NewMemory(), path: path, lock: flock.New(path + ".lock")}
	if err := f.refresh(true); err != nil {
		return nil, err
	}
	return f, nil
}

// refresh takes the shared lock and reloads the document if it changed.
func (f *File) refresh(force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.RLock(); err != nil {
		return fmt.Errorf("%w: lock %s: %w", model.ErrStorageUnavailable, f.path, err)
	}
	defer f.lock.Unlock()
	return f.reload(force)
}

// reload reads the document into memory. The caller holds mu and the file lock.
func (f *File) reload(force bool) error {
	fh, err := os.Open(f.path)
	if os.IsNotExist(err) {
		if f.loaded != nil || force {
			f.Memory.restore(snapshot{})
			f.loaded = nil
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", model.ErrStorageUnavailable, f.path)
	}
	if !force && f.loaded != nil && sameDocument(f.loaded, info) {
		return nil
	}

	doc, err := export.ReadBackup(fh)
	if err != nil {
		return fmt.Errorf("load %s: %w", f.path, err)
	}
	f.Memory.restore(snapshot{students: doc.Students, records: doc.AttendanceRecords})
	f.loaded = info
	return nil
}

// sameDocument reports whether two stats describe the same written version.
func sameDocument(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

// mutate runs op against the current on-disk state under the exclusive lock and
// persists it; on a failed write the previous state is restored.
func (f *File) mutate(op func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock %s: %w", model.ErrStorageUnavailable, f.path, err)
	}
	defer f.lock.Unlock()

	if err := f.reload(true); err != nil {
		return err
	}
	before := f.Memory.snapshot()
	if err := op(); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		f.Memory.restore(before)
		return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

func (f *File) flush() error {
	snap := f.Memory.snapshot()
	tmp := f.path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := export.WriteBackup(fh, snap.students, snap.records, time.Now()); err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	f.loaded = info
	return nil
}

func (f *File) CreateStudent(ctx context.Context, st model.Student) error {
	return f.mutate(func() error { return f.Memory.CreateStudent(ctx, st) })
}

func (f *File) ListStudents(ctx context.Context) ([]model.Student, error) {
	if err := f.refresh(false); err != nil {
		return nil, err
	}
	return f.Memory.ListStudents(ctx)
}

func (f *File) GetStudentByID(ctx context.Context, id string) (*model.Student, error) {
	if err := f.refresh(false); err != nil {
		return nil, err
	}
	return f.Memory.GetStudentByID(ctx, id)
}

func (f *File) GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error) {
	if err := f.refresh(false); err != nil {
		return nil, err
	}
	return f.Memory.GetStudentByIndex(ctx, indexNumber)
}

func (f *File) UpdateStudent(ctx context.Context, st model.Student) error {
	return f.mutate(func() error { return f.Memory.UpdateStudent(ctx, st) })
}

func (f *File) DeleteStudent(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := f.mutate(func() error {
		var err error
		removed, err = f.Memory.DeleteStudent(ctx, id)
		return err
	})
	return removed, err
}

func (f *File) InsertAttendance(ctx context.Context, rec model.AttendanceRecord) error {
	return f.mutate(func() error { return f.Memory.InsertAttendance(ctx, rec) })
}

func (f *File) ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	if err := f.refresh(false); err != nil {
		return nil, err
	}
	return f.Memory.ListAttendance(ctx, filter)
}

func (f *File) Replace(ctx context.Context, students []model.Student, records []model.AttendanceRecord) error {
	return f.mutate(func() error { return f.Memory.Replace(ctx, students, records) })
}

// Ping checks that the data directory is still writable.
func (f *File) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}

// Close releases the lock file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock.Close()
}
