package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartattendance/internal/model"
)

type sessionEntry struct {
	owner   string
	marking *Marking
	touched time.Time
}

// Sessions holds the in-progress marking sessions of connected clients.
type Sessions struct {
	svc *Service
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*sessionEntry
}

// NewSessions keeps idle sessions for ttl.
func NewSessions(svc *Service, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Sessions{svc: svc, ttl: ttl, now: time.Now, items: make(map[string]*sessionEntry)}
}

// Create opens a session owned by userID.
func (s *Sessions) Create(userID string) (string, *Marking) {
	id := uuid.NewString()
	m := s.svc.NewMarking()
	s.mu.Lock()
	s.items[id] = &sessionEntry{owner: userID, marking: m, touched: s.now()}
	s.mu.Unlock()
	return id, m
}

// Get returns the session if userID owns it and it has not expired.
func (s *Sessions) Get(id, userID string) (*Marking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.owner != userID {
		return nil, model.ErrSessionNotFound
	}
	now := s.now()
	if now.Sub(e.touched) > s.ttl {
		delete(s.items, id)
		e.marking.Abort()
		return nil, model.ErrSessionNotFound
	}
	e.touched = now
	return e.marking, nil
}

// Close aborts and forgets the session.
func (s *Sessions) Close(id, userID string) error {
	s.mu.Lock()
	e, ok := s.items[id]
	if !ok || e.owner != userID {
		s.mu.Unlock()
		return model.ErrSessionNotFound
	}
	delete(s.items, id)
	s.mu.Unlock()
	e.marking.Abort()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var expired []*Marking
	for id, e := range s.items {
		if now.Sub(e.touched) > s.ttl {
			expired = append(expired, e.marking)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
	for _, m := range expired {
		m.Abort()
	}
	return len(expired)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
