package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartattendance/internal/metrics"
	"smartattendance/internal/model"
	"smartattendance/internal/queue"
)

// Service records presence and resolves students for the marking workflow.
type Service struct {
	repo      Repository
	verifier  Verifier
	delay     time.Duration
	loc       *time.Location
	now       func() time.Time
	metrics   *metrics.Metrics
	publisher Publisher
}

type Option func(*Service)

// WithLocation sets the calendar used to decide which day a mark belongs to.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithVerifier(v Verifier) Option {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithVerifyDelay sets the pause before a capture is checked. Zero disables it.
func WithVerifyDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a ledger service with an accept-all verifier and local time.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		verifier: AcceptAll{},
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar day in the service location.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// Resolve finds the student behind an index number and checks a template is on file.
func (s *Service) Resolve(ctx context.Context, indexNumber string) (model.Student, error) {
	indexNumber = strings.TrimSpace(indexNumber)
	if indexNumber == "" {
		return model.Student{}, model.Invalid("indexNumber", "is required")
	}
	st, err := s.repo.GetStudentByIndex(ctx, indexNumber)
	if err != nil {
		return model.Student{}, err
	}
	if st == nil {
		s.metrics.Mark(metrics.OutcomeNotFound)
		return model.Student{}, fmt.Errorf("%w: index number %s", model.ErrStudentNotFound, indexNumber)
	}
	if !st.HasFaceTemplate() {
		s.metrics.Mark(metrics.OutcomeNoFaceData)
		return model.Student{}, model.ErrNoFaceData
	}
	return *st, nil
}

// Mark records the student present today. A second mark on the same day fails
// with *model.AlreadyMarkedError and leaves the ledger unchanged.
func (s *Service) Mark(ctx context.Context, studentID string) (model.AttendanceRecord, error) {
	st, err := s.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		s.metrics.Mark(metrics.OutcomeStorageFailure)
		return model.AttendanceRecord{}, err
	}
	if st == nil {
		s.metrics.Mark(metrics.OutcomeNotFound)
		return model.AttendanceRecord{}, model.ErrStudentNotFound
	}

	now := s.now().In(s.loc)
	rec := model.AttendanceRecord{
		ID:                 uuid.NewString(),
		StudentID:          st.ID,
		StudentFullName:    st.FullName,
		StudentIndexNumber: st.IndexNumber,
		Timestamp:          now,
		Date:               now.Format(model.DateLayout),
		Time:               now.Format(model.TimeLayout),
	}
	if err := s.repo.InsertAttendance(ctx, rec); err != nil {
		if errors.Is(err, model.ErrAlreadyMarked) {
			s.metrics.Mark(metrics.OutcomeAlreadyMarked)
			return model.AttendanceRecord{}, &model.AlreadyMarkedError{StudentName: st.FullName, IndexNumber: st.IndexNumber}
		}
		s.metrics.Mark(metrics.OutcomeStorageFailure)
		return model.AttendanceRecord{}, err
	}

	s.metrics.Mark(metrics.OutcomeMarked)
	s.publish(ctx, rec)
	return rec, nil
}

func (s *Service) publish(ctx context.Context, rec model.AttendanceRecord) {
	if s.publisher == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeAttendanceMarked, rec)
	if err == nil {
		err = s.publisher.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("attendance: publish %s for %s failed: %v", queue.TypeAttendanceMarked, rec.StudentID, err)
	}
}

// List returns ledger rows matching filter, oldest first.
func (s *Service) List(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	return s.repo.ListAttendance(ctx, filter)
}

func (s *Service) ForStudent(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return s.repo.ListAttendance(ctx, model.AttendanceFilter{StudentID: studentID})
}

// NewMarking starts a marking session bound to this service.
func (s *Service) NewMarking() *Marking {
	return &Marking{svc: s}
}

// MarkByIndex runs a fresh marking session through every step in one call.
func (s *Service) MarkByIndex(ctx context.Context, indexNumber, capture string) (model.AttendanceRecord, error) {
	m := s.NewMarking()
	if _, err := m.SubmitIndex(ctx, indexNumber); err != nil {
		return model.AttendanceRecord{}, err
	}
	return m.Verify(ctx, capture)
}
