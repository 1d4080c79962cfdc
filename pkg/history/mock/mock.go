// Package mock provides a test double for [history.Store].
//
// The mock records every call and, unless an *Err field is set, delegates to
// an embedded [history.MemStore] so reads observe earlier writes.
//
//	store := &mock.Store{}
//	store.SaveSummaryErr = errors.New("db down")
//	if got := store.CallCount("SaveSummary"); got != 1 { … }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/claire/pkg/history"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [history.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call
	mem   *history.MemStore

	SaveSummaryErr     error
	SaveQuizAttemptErr error
	SaveCanvasErr      error
	SaveReferralErr    error
	ListErr            error
	CountsErr          error
}

var _ history.Store = (*Store)(nil)

func (m *Store) record(method string, args ...any) *history.MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	if m.mem == nil {
		m.mem = history.NewMemStore()
	}
	return m.mem
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and stored records.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.mem = nil
}

func (m *Store) SaveSummary(ctx context.Context, s history.Summary) (history.Summary, error) {
	mem := m.record("SaveSummary", s)
	if m.SaveSummaryErr != nil {
		return history.Summary{}, m.SaveSummaryErr
	}
	return mem.SaveSummary(ctx, s)
}

func (m *Store) SaveQuizAttempt(ctx context.Context, a history.QuizAttempt) (history.QuizAttempt, error) {
	mem := m.record("SaveQuizAttempt", a)
	if m.SaveQuizAttemptErr != nil {
		return history.QuizAttempt{}, m.SaveQuizAttemptErr
	}
	return mem.SaveQuizAttempt(ctx, a)
}

func (m *Store) SaveCanvas(ctx context.Context, e history.CanvasEntry) (history.CanvasEntry, error) {
	mem := m.record("SaveCanvas", e)
	if m.SaveCanvasErr != nil {
		return history.CanvasEntry{}, m.SaveCanvasErr
	}
	return mem.SaveCanvas(ctx, e)
}

func (m *Store) SaveReferral(ctx context.Context, r history.Referral) (history.Referral, error) {
	mem := m.record("SaveReferral", r)
	if m.SaveReferralErr != nil {
		return history.Referral{}, m.SaveReferralErr
	}
	return mem.SaveReferral(ctx, r)
}

func (m *Store) ListSummaries(ctx context.Context, userID string) ([]history.Summary, error) {
	mem := m.record("ListSummaries", userID)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return mem.ListSummaries(ctx, userID)
}

func (m *Store) ListQuizAttempts(ctx context.Context, userID string) ([]history.QuizAttempt, error) {
	mem := m.record("ListQuizAttempts", userID)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return mem.ListQuizAttempts(ctx, userID)
}

func (m *Store) ListCanvas(ctx context.Context, userID string) ([]history.CanvasEntry, error) {
	mem := m.record("ListCanvas", userID)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return mem.ListCanvas(ctx, userID)
}

func (m *Store) Counts(ctx context.Context, userID string) (history.Counts, error) {
	mem := m.record("Counts", userID)
	if m.CountsErr != nil {
		return history.Counts{}, m.CountsErr
	}
	return mem.Counts(ctx, userID)
}
