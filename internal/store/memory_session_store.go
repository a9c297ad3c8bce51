package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
)

var ErrSessionNotFound = errors.New("session not found")

// MemorySessionStore keeps sessions in a mutex-guarded map. Used by the API
// when no Postgres DSN is configured, and by tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	usage    []domain.UsageLog
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.Session),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok, nil
}

func (s *MemorySessionStore) UpdateStatus(_ context.Context, id, status string) (domain.Session, error) {
	return s.update(id, func(sess *domain.Session) {
		sess.Status = status
	})
}

func (s *MemorySessionStore) UpdateSettings(_ context.Context, id string, settings enhance.Settings, status string) (domain.Session, error) {
	return s.update(id, func(sess *domain.Session) {
		sess.Settings = settings.Clamped()
		sess.Status = status
		sess.ComparisonRatio = domain.DefaultComparisonRatio
	})
}

func (s *MemorySessionStore) UpdateComparison(_ context.Context, id string, ratio float64) (domain.Session, error) {
	return s.update(id, func(sess *domain.Session) {
		sess.ComparisonRatio = ratio
	})
}

func (s *MemorySessionStore) UpdateResult(_ context.Context, id, resultKey, status string) (domain.Session, error) {
	return s.update(id, func(sess *domain.Session) {
		sess.ResultKey = resultKey
		sess.Status = status
	})
}

// Reset discards the result and returns the session to created. Settings
// keep their last values.
func (s *MemorySessionStore) Reset(_ context.Context, id string) (domain.Session, error) {
	return s.update(id, func(sess *domain.Session) {
		sess.ResultKey = ""
		sess.Status = domain.SessionStatusCreated
		sess.ComparisonRatio = domain.DefaultComparisonRatio
	})
}

func (s *MemorySessionStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, usage)
	return nil
}

// UsageLogs returns a copy of the recorded usage entries, for tests.
func (s *MemorySessionStore) UsageLogs() []domain.UsageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UsageLog, len(s.usage))
	copy(out, s.usage)
	return out
}

func (s *MemorySessionStore) update(id string, apply func(*domain.Session)) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	apply(&sess)
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return sess, nil
}
