package history

import (
	"context"
	"slices"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is a process-local [Store]. Records are lost on restart.
type MemStore struct {
	mu        sync.RWMutex
	summaries []Summary
	quizzes   []QuizAttempt
	canvas    []CanvasEntry
	referrals []Referral
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) SaveSummary(_ context.Context, s Summary) (Summary, error) {
	if err := s.Validate(); err != nil {
		return Summary{}, err
	}
	Stamp(&s.ID, &s.CreatedAt)
	m.mu.Lock()
	m.summaries = append(m.summaries, s)
	m.mu.Unlock()
	return s, nil
}

func (m *MemStore) SaveQuizAttempt(_ context.Context, a QuizAttempt) (QuizAttempt, error) {
	if err := a.Validate(); err != nil {
		return QuizAttempt{}, err
	}
	Stamp(&a.ID, &a.CreatedAt)
	a.Questions = slices.Clone(a.Questions)
	m.mu.Lock()
	m.quizzes = append(m.quizzes, a)
	m.mu.Unlock()
	return a, nil
}

func (m *MemStore) SaveCanvas(_ context.Context, e CanvasEntry) (CanvasEntry, error) {
	if err := e.Validate(); err != nil {
		return CanvasEntry{}, err
	}
	Stamp(&e.ID, &e.CreatedAt)
	m.mu.Lock()
	m.canvas = append(m.canvas, e)
	m.mu.Unlock()
	return e, nil
}

func (m *MemStore) SaveReferral(_ context.Context, r Referral) (Referral, error) {
	if err := r.Validate(); err != nil {
		return Referral{}, err
	}
	Stamp(&r.ID, &r.CreatedAt)
	m.mu.Lock()
	m.referrals = append(m.referrals, r)
	m.mu.Unlock()
	return r, nil
}

// Referrals returns a copy of every stored referral, oldest first.
func (m *MemStore) Referrals() []Referral {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.referrals)
}

func (m *MemStore) ListSummaries(_ context.Context, userID string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.summaries, userID, func(s Summary) (string, time.Time) { return s.UserID, s.CreatedAt }), nil
}

func (m *MemStore) ListQuizAttempts(_ context.Context, userID string) ([]QuizAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.quizzes, userID, func(a QuizAttempt) (string, time.Time) { return a.UserID, a.CreatedAt }), nil
}

func (m *MemStore) ListCanvas(_ context.Context, userID string) ([]CanvasEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.canvas, userID, func(e CanvasEntry) (string, time.Time) { return e.UserID, e.CreatedAt }), nil
}

func (m *MemStore) Counts(_ context.Context, userID string) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c Counts
	for _, s := range m.summaries {
		if s.UserID == userID {
			c.Summaries++
		}
	}
	for _, a := range m.quizzes {
		if a.UserID == userID {
			c.Quizzes++
		}
	}
	for _, e := range m.canvas {
		if e.UserID == userID {
			c.Canvas++
		}
	}
	return c, nil
}

// newestFirst filters records by user and orders them by descending time.
// Records with equal timestamps keep reverse insertion order.
func newestFirst[T any](all []T, userID string, key func(T) (string, time.Time)) []T {
	out := make([]T, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if uid, _ := key(all[i]); uid == userID {
			out = append(out, all[i])
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		_, ta := key(a)
		_, tb := key(b)
		return tb.Compare(ta)
	})
	return out
}
