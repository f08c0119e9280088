package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"smartattendance/internal/metrics"
	"smartattendance/internal/model"
)

// ErrAborted is returned by Verify when the session was reset while the check was pending.
var ErrAborted = errors.New("verification aborted")

// Step is a marking session state.
type Step int

const (
	AwaitingIndex Step = iota
	AwaitingVerification
	Completed
)

func (s Step) String() string {
	switch s {
	case AwaitingIndex:
		return "awaiting_index"
	case AwaitingVerification:
		return "awaiting_verification"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for _, st := range []Step{AwaitingIndex, AwaitingVerification, Completed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown marking step %q", text)
}

// StudentRef is the part of a resolved student shown to the marking client.
type StudentRef struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	IndexNumber string `json:"indexNumber"`
}

// State is a point-in-time view of a marking session.
type State struct {
	Step      Step                    `json:"step"`
	Student   *StudentRef             `json:"student,omitempty"`
	Record    *model.AttendanceRecord `json:"record,omitempty"`
	Verifying bool                    `json:"verifying"`
}

// Marking walks one student through index lookup, verification and the ledger write.
// Only Reset and Abort are valid in every step.
type Marking struct {
	svc *Service

	mu      sync.Mutex
	step    Step
	student *model.Student
	record  *model.AttendanceRecord
	cancel  context.CancelFunc
	gen     uint64
}

func (m *Marking) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{Step: m.step, Verifying: m.cancel != nil}
	if m.student != nil {
		st.Student = &StudentRef{ID: m.student.ID, FullName: m.student.FullName, IndexNumber: m.student.IndexNumber}
	}
	if m.record != nil {
		rec := *m.record
		st.Record = &rec
	}
	return st
}

// SubmitIndex resolves the student. On failure the session stays awaiting an index.
func (m *Marking) SubmitIndex(ctx context.Context, indexNumber string) (model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != AwaitingIndex {
		return model.Student{}, model.ErrInvalidStep
	}
	st, err := m.svc.Resolve(ctx, indexNumber)
	if err != nil {
		return model.Student{}, err
	}
	m.student = &st
	m.step = AwaitingVerification
	return st, nil
}

// Verify waits out the verification delay, checks capture against the stored
// template and records attendance. Reset or Abort during the wait cancels it.
func (m *Marking) Verify(ctx context.Context, capture string) (model.AttendanceRecord, error) {
	m.mu.Lock()
	if m.step != AwaitingVerification || m.cancel != nil {
		m.mu.Unlock()
		return model.AttendanceRecord{}, model.ErrInvalidStep
	}
	vctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	gen := m.gen
	student := *m.student
	m.mu.Unlock()
	defer cancel()

	matched, verr := m.check(vctx, student, capture)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return model.AttendanceRecord{}, ErrAborted
	}
	m.cancel = nil
	if verr != nil {
		return model.AttendanceRecord{}, verr
	}
	if !matched {
		m.svc.metrics.Mark(metrics.OutcomeRejected)
		return model.AttendanceRecord{}, model.ErrVerificationFailed
	}

	rec, err := m.svc.Mark(ctx, student.ID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	m.record = &rec
	m.step = Completed
	return rec, nil
}

func (m *Marking) check(ctx context.Context, student model.Student, capture string) (bool, error) {
	if d := m.svc.delay; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ErrAborted
		}
	}
	var template string
	if student.FaceTemplate != nil {
		template = *student.FaceTemplate
	}
	ok, err := m.svc.verifier.Verify(ctx, template, capture)
	if err != nil {
		if ctx.Err() != nil {
			return false, ErrAborted
		}
		log.Printf("attendance: verifier error for %s: %v", student.IndexNumber, err)
		return false, fmt.Errorf("%w: %w", model.ErrVerificationFailed, err)
	}
	return ok, nil
}

// Reset clears all captured state and returns to AwaitingIndex.
func (m *Marking) Reset() {
	m.Abort()
}

// Abort cancels a pending verification, if any, and resets the session.
// It reports whether a verification was in flight.
func (m *Marking) Abort() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inFlight := m.cancel != nil
	if inFlight {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.step = AwaitingIndex
	m.student = nil
	m.record = nil
	return inFlight
}
