package usage

import (
	"context"
	"errors"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		subject string
		f       Feature
		want    string
	}{
		{LocalSubject, FeatureQuiz, "claire.usage.quiz"},
		{"client-42", FeatureTTS, "claire.usage.client-42.tts"},
	}
	for _, tt := range tests {
		if got := Key(tt.subject, tt.f); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.subject, tt.f, got, tt.want)
		}
	}
}

func TestParseFeature(t *testing.T) {
	for _, s := range []string{"canvas", "TTS", " summary ", "Quiz"} {
		if _, err := ParseFeature(s); err != nil {
			t.Errorf("ParseFeature(%q): %v", s, err)
		}
	}
	if _, err := ParseFeature("dance"); !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("ParseFeature(dance) error = %v, want ErrUnknownFeature", err)
	}
}

func TestGate_CountsUpToLimit(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemStore())

	for i := 1; i <= DefaultLimit; i++ {
		reached, err := g.HasReachedLimit(ctx, LocalSubject, FeatureSummary)
		if err != nil {
			t.Fatalf("HasReachedLimit: %v", err)
		}
		if reached {
			t.Fatalf("limit reached after %d uses, want %d", i-1, DefaultLimit)
		}
		n, err := g.Increment(ctx, LocalSubject, FeatureSummary)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != i {
			t.Errorf("Increment = %d, want %d", n, i)
		}
	}

	if reached, _ := g.HasReachedLimit(ctx, LocalSubject, FeatureSummary); !reached {
		t.Error("HasReachedLimit = false after limit uses")
	}
	if left, _ := g.Remaining(ctx, LocalSubject, FeatureSummary); left != 0 {
		t.Errorf("Remaining = %d, want 0", left)
	}
	// Features are counted independently.
	if left, _ := g.Remaining(ctx, LocalSubject, FeatureQuiz); left != DefaultLimit {
		t.Errorf("Remaining(quiz) = %d, want %d", left, DefaultLimit)
	}
}

func TestGate_Check(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemStore(), WithLimit(2))
	anon := Identity{Subject: "10.0.0.1"}

	for i := 1; i <= 2; i++ {
		d, err := g.Check(ctx, anon, FeatureQuiz)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !d.Allowed || d.Count != i {
			t.Errorf("use %d: decision = %+v, want allowed with count %d", i, d, i)
		}
	}
	d, _ := g.Check(ctx, anon, FeatureQuiz)
	if d.Allowed {
		t.Errorf("third use allowed: %+v", d)
	}
	if !d.Reached || d.Remaining != 0 || d.Count != 2 {
		t.Errorf("denied decision = %+v, want reached, count 2, remaining 0", d)
	}

	// Another anonymous subject has its own counter.
	if d, _ := g.Check(ctx, Identity{Subject: "10.0.0.2"}, FeatureQuiz); !d.Allowed {
		t.Errorf("other subject denied: %+v", d)
	}
}

func TestGate_AuthenticatedBypasses(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	g := NewGate(store, WithLimit(0))
	id := Identity{UserID: "user-1", Subject: "10.0.0.1"}

	for range 5 {
		d, err := g.Check(ctx, id, FeatureTTS)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !d.Allowed || !d.Bypassed {
			t.Fatalf("decision = %+v, want bypassed", d)
		}
	}
	if n, _ := store.Get(ctx, Key("10.0.0.1", FeatureTTS)); n != 0 {
		t.Errorf("counter = %d, want 0 for authenticated callers", n)
	}
}

func TestGate_Status(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemStore())
	anon := Identity{Subject: "c1"}

	_, _ = g.Check(ctx, anon, FeatureCanvas)
	d, err := g.Status(ctx, anon, FeatureCanvas)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if d.Count != 1 || d.Remaining != DefaultLimit-1 {
		t.Errorf("Status = %+v, want count 1", d)
	}
	// Status does not charge.
	if d, _ := g.Status(ctx, anon, FeatureCanvas); d.Count != 1 {
		t.Errorf("Count after second Status = %d, want 1", d.Count)
	}
}

func TestGate_Reset(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemStore())
	for _, f := range Features() {
		_, _ = g.Increment(ctx, "c1", f)
	}
	_, _ = g.Increment(ctx, "c2", FeatureQuiz)

	if err := g.Reset(ctx, "c1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, f := range Features() {
		if n, _ := g.Count(ctx, "c1", f); n != 0 {
			t.Errorf("Count(c1, %s) = %d, want 0", f, n)
		}
	}
	if n, _ := g.Count(ctx, "c2", FeatureQuiz); n != 1 {
		t.Errorf("Count(c2, quiz) = %d, want 1", n)
	}
}

func TestGate_SetLimit(t *testing.T) {
	g := NewGate(NewMemStore())
	g.SetLimit(10)
	if got := g.Limit(); got != 10 {
		t.Errorf("Limit = %d, want 10", got)
	}
	g.SetLimit(-1)
	if got := g.Limit(); got != 10 {
		t.Errorf("Limit after SetLimit(-1) = %d, want 10", got)
	}
}

// brokenStore fails every operation.
type brokenStore struct{ err error }

func (s brokenStore) Get(context.Context, string) (int, error)       { return 7, s.err }
func (s brokenStore) Set(context.Context, string, int) error         { return s.err }
func (s brokenStore) Increment(context.Context, string) (int, error) { return 0, s.err }
func (s brokenStore) Delete(context.Context, string) error           { return s.err }

func TestGate_StoreErrorReadsAsZero(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("disk full")
	g := NewGate(brokenStore{err: storeErr})

	n, err := g.Count(ctx, LocalSubject, FeatureQuiz)
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("Count error = %v, want %v", err, storeErr)
	}

	reached, err := g.HasReachedLimit(ctx, LocalSubject, FeatureQuiz)
	if reached || err == nil {
		t.Errorf("HasReachedLimit = %v, %v; want false with error", reached, err)
	}

	d, err := g.Check(ctx, Identity{Subject: "c1"}, FeatureQuiz)
	if !d.Allowed {
		t.Errorf("Check denied on store failure: %+v", d)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("Check error = %v, want %v", err, storeErr)
	}

	if err := g.Reset(ctx, "c1"); !errors.Is(err, storeErr) {
		t.Errorf("Reset error = %v, want %v", err, storeErr)
	}
}
