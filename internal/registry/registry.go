// Package registry owns the student profile lifecycle.
package registry

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartattendance/internal/metrics"
	"smartattendance/internal/model"
)

// Repository is the subset of the store the registry writes through.
type Repository interface {
	CreateStudent(ctx context.Context, st model.Student) error
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudentByID(ctx context.Context, id string) (*model.Student, error)
	GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error)
	UpdateStudent(ctx context.Context, st model.Student) error
	DeleteStudent(ctx context.Context, id string) (bool, error)
}

// TemplateStore moves a captured face template to external storage and returns its reference.
type TemplateStore interface {
	StoreTemplate(ctx context.Context, data string) (string, error)
}

// Service registers, looks up and edits students.
type Service struct {
	repo      Repository
	templates TemplateStore
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

// WithTemplateStore uploads templates on register and update.
func WithTemplateStore(ts TemplateStore) Option {
	return func(s *Service) { s.templates = ts }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the registration timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a student. The index number must not be taken.
func (s *Service) Register(ctx context.Context, fullName, indexNumber string, faceTemplate *string) (model.Student, error) {
	fullName = strings.TrimSpace(fullName)
	indexNumber = strings.TrimSpace(indexNumber)
	if fullName == "" {
		return model.Student{}, model.Invalid("fullName", "is required")
	}
	if indexNumber == "" {
		return model.Student{}, model.Invalid("indexNumber", "is required")
	}

	existing, err := s.repo.GetStudentByIndex(ctx, indexNumber)
	if err != nil {
		return model.Student{}, err
	}
	if existing != nil {
		return model.Student{}, model.ErrDuplicateIndex
	}

	st := model.Student{
		ID:           uuid.NewString(),
		FullName:     fullName,
		IndexNumber:  indexNumber,
		FaceTemplate: s.storeTemplate(ctx, faceTemplate),
		RegisteredAt: s.now().UTC(),
	}
	// the store enforces uniqueness again for concurrent registrations
	if err := s.repo.CreateStudent(ctx, st); err != nil {
		return model.Student{}, err
	}
	s.metrics.StudentRegistered()
	return st, nil
}

// List returns every student in registration order.
func (s *Service) List(ctx context.Context) ([]model.Student, error) {
	return s.repo.ListStudents(ctx)
}

// Search filters the registry by a case-insensitive substring of name or index number.
func (s *Service) Search(ctx context.Context, term string) ([]model.Student, error) {
	all, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all, nil
	}
	out := make([]model.Student, 0, len(all))
	for _, st := range all {
		if strings.Contains(strings.ToLower(st.FullName), term) || strings.Contains(strings.ToLower(st.IndexNumber), term) {
			out = append(out, st)
		}
	}
	return out, nil
}

// FindByIndex returns nil when no student holds the index number.
func (s *Service) FindByIndex(ctx context.Context, indexNumber string) (*model.Student, error) {
	indexNumber = strings.TrimSpace(indexNumber)
	if indexNumber == "" {
		return nil, nil
	}
	return s.repo.GetStudentByIndex(ctx, indexNumber)
}

func (s *Service) FindByID(ctx context.Context, id string) (*model.Student, error) {
	return s.repo.GetStudentByID(ctx, id)
}

// Delete removes the profile and reports whether it existed. Attendance rows are kept.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.DeleteStudent(ctx, id)
}

// Update applies a partial edit and returns nil when the student does not exist.
func (s *Service) Update(ctx context.Context, id string, patch model.StudentPatch) (*model.Student, error) {
	current, err := s.repo.GetStudentByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return nil, model.Invalid("fullName", "must not be blank")
		}
		patch.FullName = &name
	}
	if patch.IndexNumber != nil {
		idx := strings.TrimSpace(*patch.IndexNumber)
		if idx == "" {
			return nil, model.Invalid("indexNumber", "must not be blank")
		}
		patch.IndexNumber = &idx
	}
	if patch.FaceTemplate != nil {
		patch.FaceTemplate = s.storeTemplate(ctx, patch.FaceTemplate)
	}

	next := patch.Apply(*current)
	if err := s.repo.UpdateStudent(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// storeTemplate keeps the raw template when no store is configured or the upload fails.
func (s *Service) storeTemplate(ctx context.Context, tpl *string) *string {
	if tpl == nil || strings.TrimSpace(*tpl) == "" {
		return nil
	}
	raw := *tpl
	if s.templates == nil {
		return &raw
	}
	ref, err := s.templates.StoreTemplate(ctx, raw)
	if err != nil {
		log.Printf("registry: template upload failed, keeping inline copy: %v", err)
		return &raw
	}
	return &ref
}
