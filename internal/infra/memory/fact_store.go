package memory

import (
	"context"
	"sync"
	"time"

	"capital-quiz-service/internal/domain"
)

// FactStore is an in-memory implementation of app.FactStore. Writes are
// serialized by the mutex; readers get a copy of the log so aggregation
// never observes a half-applied write.
type FactStore struct {
	mu     sync.RWMutex
	clock  func() time.Time
	events []domain.AnswerEvent
}

func NewFactStore() *FactStore {
	return &FactStore{clock: time.Now}
}

// NewFactStoreWithClock allows deterministic recency windows in tests.
func NewFactStoreWithClock(now func() time.Time) *FactStore {
	return &FactStore{clock: now}
}

func (s *FactStore) Append(_ context.Context, event domain.AnswerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *FactStore) ScanAll(_ context.Context) ([]domain.AnswerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *FactStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.UserID != userID {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return nil
}

func (s *FactStore) CountRecent(_ context.Context, window time.Duration) (domain.HealthMetrics, error) {
	cutoff := s.clock().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]struct{})
	metrics := domain.HealthMetrics{}
	for _, ev := range s.events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		metrics.TotalEvents++
		users[ev.UserID] = struct{}{}
	}
	metrics.DistinctUsers = len(users)
	return metrics, nil
}
