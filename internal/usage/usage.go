// Package usage limits how often anonymous callers may use each reading tool.
//
// Counters live in an injected [Store]: a map for tests, SQLite for the local
// CLI and Redis for server replicas. The [Gate] reads and charges them;
// authenticated identities bypass it entirely. Resetting the counters, for
// example on login, is left to the caller through [Gate.Reset].
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/claire/internal/observe"
)

// DefaultLimit is the number of free uses per feature.
const DefaultLimit = 3

// KeyPrefix prefixes every counter key.
const KeyPrefix = "claire.usage."

// LocalSubject identifies the single user of a client-local store.
const LocalSubject = ""

// ErrUnknownFeature is returned by [ParseFeature] for unknown names.
var ErrUnknownFeature = errors.New("usage: unknown feature")

// Feature names a gated tool.
type Feature string

const (
	FeatureCanvas  Feature = "canvas"
	FeatureTTS     Feature = "tts"
	FeatureSummary Feature = "summary"
	FeatureQuiz    Feature = "quiz"
)

// Features returns every gated feature.
func Features() []Feature {
	return []Feature{FeatureCanvas, FeatureTTS, FeatureSummary, FeatureQuiz}
}

// ParseFeature maps a name to a Feature, case-insensitively.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Features() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
}

// Key returns the store key of subject's counter for f:
// "claire.usage.<feature>" for [LocalSubject] and
// "claire.usage.<subject>.<feature>" otherwise.
func Key(subject string, f Feature) string {
	if subject == LocalSubject {
		return KeyPrefix + string(f)
	}
	return KeyPrefix + subject + "." + string(f)
}

// Store is a persistent integer key/value store. Missing keys read as 0.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (int, error)
	Set(ctx context.Context, key string, value int) error
	// Increment adds one to key and returns the new value.
	Increment(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

// Identity is the caller as seen by the gate.
type Identity struct {
	// UserID is set for authenticated callers.
	UserID string
	// Subject identifies an anonymous caller (client ID or remote address).
	Subject string
}

// Authenticated reports whether the caller has a user ID.
func (id Identity) Authenticated() bool { return id.UserID != "" }

// Decision is the gate's verdict for one request.
type Decision struct {
	Feature   Feature `json:"feature"`
	Count     int     `json:"count"`
	Limit     int     `json:"limit"`
	Remaining int     `json:"remaining"`
	Reached   bool    `json:"reached"`
	// Allowed is false when the request must be rejected.
	Allowed bool `json:"allowed"`
	// Bypassed is true for authenticated callers, who are never counted.
	Bypassed bool `json:"bypassed,omitempty"`
}

// Option is a functional option for [NewGate].
type Option func(*Gate)

// WithLimit sets the number of free uses per feature.
func WithLimit(n int) Option {
	return func(g *Gate) { g.SetLimit(n) }
}

// WithMetrics records denials to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// Gate enforces the per-feature limit. It is safe for concurrent use.
type Gate struct {
	store   Store
	limit   atomic.Int64
	metrics *observe.Metrics
}

// NewGate creates a Gate over store.
func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{store: store}
	g.limit.Store(DefaultLimit)
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetLimit changes the limit. Values < 0 are ignored.
func (g *Gate) SetLimit(n int) {
	if n >= 0 {
		g.limit.Store(int64(n))
	}
}

// Limit returns the current limit.
func (g *Gate) Limit() int { return int(g.limit.Load()) }

// Count returns subject's counter for f. A store error is logged and the
// count reads as 0; the error is still returned.
func (g *Gate) Count(ctx context.Context, subject string, f Feature) (int, error) {
	n, err := g.store.Get(ctx, Key(subject, f))
	if err != nil {
		observe.Logger(ctx).Warn("usage: read counter", "feature", f, "err", err)
		return 0, fmt.Errorf("usage: count %s: %w", f, err)
	}
	return n, nil
}

// HasReachedLimit reports whether subject has used f at least Limit times.
func (g *Gate) HasReachedLimit(ctx context.Context, subject string, f Feature) (bool, error) {
	n, err := g.Count(ctx, subject, f)
	return n >= g.Limit(), err
}

// Increment charges one use of f and returns the new count.
func (g *Gate) Increment(ctx context.Context, subject string, f Feature) (int, error) {
	n, err := g.store.Increment(ctx, Key(subject, f))
	if err != nil {
		observe.Logger(ctx).Warn("usage: increment counter", "feature", f, "err", err)
		return 0, fmt.Errorf("usage: increment %s: %w", f, err)
	}
	return n, nil
}

// Remaining returns how many free uses of f subject has left.
func (g *Gate) Remaining(ctx context.Context, subject string, f Feature) (int, error) {
	n, err := g.Count(ctx, subject, f)
	return max(0, g.Limit()-n), err
}

// Reset clears every counter of subject.
func (g *Gate) Reset(ctx context.Context, subject string) error {
	var errs []error
	for _, f := range Features() {
		if err := g.store.Delete(ctx, Key(subject, f)); err != nil {
			errs = append(errs, fmt.Errorf("usage: reset %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// Status reports the gate's view of id and f without charging a use.
func (g *Gate) Status(ctx context.Context, id Identity, f Feature) (Decision, error) {
	if id.Authenticated() {
		return g.bypass(f), nil
	}
	n, err := g.Count(ctx, id.Subject, f)
	return g.decide(f, n), err
}

// Check decides whether id may use f and, for anonymous callers below the
// limit, charges the use. Authenticated callers always pass uncounted.
func (g *Gate) Check(ctx context.Context, id Identity, f Feature) (Decision, error) {
	if id.Authenticated() {
		return g.bypass(f), nil
	}

	n, err := g.Count(ctx, id.Subject, f)
	if d := g.decide(f, n); d.Reached {
		d.Allowed = false
		if g.metrics != nil {
			g.metrics.RecordUsageDenied(ctx, string(f))
		}
		slog.Debug("usage: limit reached", "feature", f, "count", n)
		return d, err
	}

	charged, incErr := g.Increment(ctx, id.Subject, f)
	if incErr != nil {
		return g.decide(f, n), errors.Join(err, incErr)
	}
	d := g.decide(f, charged)
	d.Allowed = true
	return d, err
}

func (g *Gate) bypass(f Feature) Decision {
	limit := g.Limit()
	return Decision{Feature: f, Limit: limit, Remaining: limit, Allowed: true, Bypassed: true}
}

func (g *Gate) decide(f Feature, count int) Decision {
	limit := g.Limit()
	return Decision{
		Feature:   f,
		Count:     count,
		Limit:     limit,
		Remaining: max(0, limit-count),
		Reached:   count >= limit,
		Allowed:   count < limit,
	}
}
