package store

import (
	"context"
	"sort"
	"sync"

	"smartattendance/internal/model"
)

// Memory keeps students and attendance in process. All writes take the lock,
// which makes the duplicate-day check and the append a single step.
type Memory struct {
	mu       sync.RWMutex
	order    []string
	students map[string]model.Student
	byIndex  map[string]string
	records  []model.AttendanceRecord
	days     map[string]struct{}
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	m := &Memory{}
	m.reset(nil, nil)
	return m
}

func (m *Memory) reset(students []model.Student, records []model.AttendanceRecord) {
	m.order = make([]string, 0, len(students))
	m.students = make(map[string]model.Student, len(students))
	m.byIndex = make(map[string]string, len(students))
	for _, st := range students {
		m.order = append(m.order, st.ID)
		m.students[st.ID] = cloneStudent(st)
		m.byIndex[st.IndexNumber] = st.ID
	}
	m.records = make([]model.AttendanceRecord, 0, len(records))
	m.days = make(map[string]struct{}, len(records))
	for _, rec := range records {
		m.records = append(m.records, rec)
		m.days[rec.DayKey()] = struct{}{}
	}
}

// CreateStudent appends a student, rejecting a taken index number.
func (m *Memory) CreateStudent(_ context.Context, st model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byIndex[st.IndexNumber]; taken {
		return model.ErrDuplicateIndex
	}
	m.order = append(m.order, st.ID)
	m.students[st.ID] = cloneStudent(st)
	m.byIndex[st.IndexNumber] = st.ID
	return nil
}

// ListStudents returns students in insertion order.
func (m *Memory) ListStudents(_ context.Context) ([]model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Student, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneStudent(m.students[id]))
	}
	return out, nil
}

func (m *Memory) GetStudentByID(_ context.Context, id string) (*model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	st = cloneStudent(st)
	return &st, nil
}

func (m *Memory) GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error) {
	m.mu.RLock()
	id, ok := m.byIndex[indexNumber]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.GetStudentByID(ctx, id)
}

// UpdateStudent overwrites the stored profile with the same id.
func (m *Memory) UpdateStudent(_ context.Context, st model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.students[st.ID]
	if !ok {
		return model.ErrStudentNotFound
	}
	if owner, taken := m.byIndex[st.IndexNumber]; taken && owner != st.ID {
		return model.ErrDuplicateIndex
	}
	delete(m.byIndex, prev.IndexNumber)
	m.byIndex[st.IndexNumber] = st.ID
	m.students[st.ID] = cloneStudent(st)
	return nil
}

// DeleteStudent removes the profile only; attendance rows are kept.
func (m *Memory) DeleteStudent(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return false, nil
	}
	delete(m.students, id)
	delete(m.byIndex, st.IndexNumber)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) InsertAttendance(_ context.Context, rec model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.DayKey()
	if _, taken := m.days[key]; taken {
		return model.ErrAlreadyMarked
	}
	m.days[key] = struct{}{}
	m.records = append(m.records, rec)
	return nil
}

// ListAttendance returns matching rows ordered by timestamp.
func (m *Memory) ListAttendance(_ context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	m.mu.RLock()
	out := make([]model.AttendanceRecord, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Replace swaps both collections in one step.
func (m *Memory) Replace(_ context.Context, students []model.Student, records []model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(students, records)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

type snapshot struct {
	students []model.Student
	records  []model.AttendanceRecord
}

func (m *Memory) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := snapshot{
		students: make([]model.Student, 0, len(m.order)),
		records:  append([]model.AttendanceRecord(nil), m.records...),
	}
	for _, id := range m.order {
		snap.students = append(snap.students, cloneStudent(m.students[id]))
	}
	return snap
}

func (m *Memory) restore(snap snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(snap.students, snap.records)
}

func cloneStudent(st model.Student) model.Student {
	if st.FaceTemplate != nil {
		tpl := *st.FaceTemplate
		st.FaceTemplate = &tpl
	}
	return st
}
