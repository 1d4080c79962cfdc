// Package gateway turns raw reading material into a dyslexia-friendly summary
// or a short multiple-choice quiz.
//
// The [Gateway] asks a remote LLM for the content and validates what comes
// back. Whatever happens on the remote side, the caller always receives a
// usable [Result]: a failed, slow, unconfigured or misbehaving model degrades
// to a locally computed fallback instead of an error. The only errors
// [Gateway.Generate] returns are caller mistakes ([ErrUnknownType] and
// [ErrEmptyInput]).
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/textkit"
	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/types"
)

// Sentinel errors for precondition failures.
var (
	// ErrUnknownType is returned when the content type is neither summary nor quiz.
	ErrUnknownType = errors.New("gateway: unknown content type")

	// ErrEmptyInput is returned when the text is empty after normalization.
	ErrEmptyInput = errors.New("gateway: text is required")
)

// Reasons attached to degraded results.
const (
	ReasonNotConfigured = "AI service is not configured"
	ReasonEmptyInput    = "text is required"
	ReasonUnknownType   = "type must be summary or quiz"
	ReasonTransport     = "AI service request failed"
	ReasonContract      = "AI service returned invalid content"
)

// Defaults applied by [New].
const (
	DefaultTimeout     = 20 * time.Second
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 450
	DefaultMaxAttempts = 1
	DefaultRetryDelay  = time.Second
)

// ContentType selects what the gateway produces.
type ContentType string

const (
	TypeSummary ContentType = "summary"
	TypeQuiz    ContentType = "quiz"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == TypeSummary || t == TypeQuiz
}

// Kind says whether a result came from the model or from the local fallback.
type Kind string

const (
	KindAI       Kind = "ai"
	KindFallback Kind = "fallback"
)

// Class categorises why a result degraded. It is used for logs and metrics.
type Class string

const (
	ClassNone      Class = "none"
	ClassInput     Class = "input"
	ClassConfig    Class = "config"
	ClassTransport Class = "transport"
	ClassContract  Class = "contract"
)

// Result is the outcome of [Gateway.Generate].
//
// For TypeSummary, Summary is set; for TypeQuiz, Questions is set. Degraded
// results carry the fallback content in the same fields plus a Reason.
type Result struct {
	Kind      Kind
	Type      ContentType
	Summary   string
	Questions []textkit.QuizQuestion
	Reason    string
	Class     Class
	Model     string
}

// Payload returns the summary string or the question list, whichever the
// result's type carries.
func (r Result) Payload() any {
	if r.Type == TypeQuiz && r.Questions != nil {
		return r.Questions
	}
	return r.Summary
}

// Degraded reports whether r is a fallback.
func (r Result) Degraded() bool { return r.Kind != KindAI }

// Option is a functional option for [New].
type Option func(*Gateway)

// WithMaxInputChars caps the normalized input length. Values <= 0 keep the default.
func WithMaxInputChars(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxInputChars = n
		}
	}
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.SetTimeout(d) }
}

// WithMaxAttempts sets how often a contract violation is retried in total.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.retryDelay = d
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = t }
}

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithModelName sets the model name reported when the backend omits it.
func WithModelName(name string) Option {
	return func(g *Gateway) { g.modelName = name }
}

// WithMetrics records request and latency metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway generates summaries and quizzes. It is safe for concurrent use.
type Gateway struct {
	llm llm.Provider

	maxInputChars int
	timeout       atomic.Int64
	maxAttempts   int
	retryDelay    time.Duration
	temperature   float64
	maxTokens     int
	modelName     string
	metrics       *observe.Metrics

	flight singleflight.Group
}

// New creates a Gateway. A nil provider is allowed: every request then
// degrades to the fallback with [ReasonNotConfigured].
func New(p llm.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		llm:           p,
		maxInputChars: textkit.DefaultMaxInputChars,
		maxAttempts:   DefaultMaxAttempts,
		retryDelay:    DefaultRetryDelay,
		temperature:   DefaultTemperature,
		maxTokens:     DefaultMaxTokens,
	}
	g.timeout.Store(int64(DefaultTimeout))
	for _, o := range opts {
		o(g)
	}
	return g
}

// Configured reports whether a remote provider is available.
func (g *Gateway) Configured() bool { return g.llm != nil }

// SetTimeout changes the per-call timeout. It may be called while requests
// are in flight; values <= 0 are ignored.
func (g *Gateway) SetTimeout(d time.Duration) {
	if d > 0 {
		g.timeout.Store(int64(d))
	}
}

// Timeout returns the current per-call timeout.
func (g *Gateway) Timeout() time.Duration {
	return time.Duration(g.timeout.Load())
}

// Generate produces content of type t for rawText.
//
// ErrUnknownType and ErrEmptyInput are returned together with a fallback
// result carrying a fallback summary. Every other failure yields a fallback
// result and a nil error.
func (g *Gateway) Generate(ctx context.Context, rawText string, t ContentType) (Result, error) {
	text := textkit.Normalize(rawText, g.maxInputChars)

	if !t.Valid() {
		res := Result{Kind: KindFallback, Type: t, Summary: textkit.FallbackSummary(text), Reason: ReasonUnknownType, Class: ClassInput}
		g.record(ctx, res)
		return res, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if text == "" {
		res := Result{Kind: KindFallback, Type: t, Summary: textkit.NoSummary, Reason: ReasonEmptyInput, Class: ClassInput}
		g.record(ctx, res)
		return res, ErrEmptyInput
	}

	fallback := fallbackFor(t, text)

	if g.llm == nil {
		observe.Logger(ctx).Error("gateway: "+ReasonNotConfigured, "class", ClassConfig, "type", t)
		fallback.Reason = ReasonNotConfigured
		fallback.Class = ClassConfig
		g.record(ctx, fallback)
		return fallback, nil
	}

	// Identical concurrent requests share one remote call. The shared call
	// runs detached from any single caller so that one caller giving up does
	// not fail the others; it stays bounded by the per-call timeout.
	key := string(t) + "\x00" + text
	ch := g.flight.DoChan(key, func() (any, error) {
		return g.remote(context.WithoutCancel(ctx), t, text, fallback), nil
	})

	var res Result
	select {
	case r := <-ch:
		res = r.Val.(Result)
		res.Questions = cloneQuestions(res.Questions)
	case <-ctx.Done():
		observe.Logger(ctx).Warn("gateway: caller gave up", "class", ClassTransport, "type", t, "err", ctx.Err())
		res = fallback
		res.Reason = ReasonTransport
		res.Class = ClassTransport
	}
	g.record(ctx, res)
	return res, nil
}

// remote runs up to maxAttempts model calls. Only contract violations are
// retried; a transport failure falls back immediately.
func (g *Gateway) remote(ctx context.Context, t ContentType, text string, fallback Result) Result {
	var class Class
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 && !sleep(ctx, g.retryDelay) {
			break
		}

		res, c, err := g.attempt(ctx, t, text)
		if err == nil {
			return res
		}
		class = c
		observe.Logger(ctx).Warn("gateway: content generation failed",
			"class", c, "type", t, "attempt", attempt, "err", err)
		if c != ClassContract {
			break
		}
	}

	fallback.Class = class
	fallback.Reason = ReasonTransport
	if class == ClassContract {
		fallback.Reason = ReasonContract
	}
	return fallback
}

// attempt performs one remote call and validates its output.
func (g *Gateway) attempt(ctx context.Context, t ContentType, text string) (Result, Class, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.Timeout())
	defer cancel()

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt(t),
		Messages:     []types.Message{{Role: types.RoleUser, Content: userPrompt(t, text)}},
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
	}

	start := time.Now()
	resp, err := g.llm.Complete(callCtx, req)
	if g.metrics != nil {
		g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return Result{}, ClassTransport, fmt.Errorf("gateway: complete: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return Result{}, ClassContract, errors.New("gateway: empty model response")
	}

	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		return Result{}, ClassContract, err
	}

	model := resp.Model
	if model == "" {
		model = g.modelName
	}
	res := Result{Kind: KindAI, Type: t, Class: ClassNone, Model: model}

	switch t {
	case TypeSummary:
		summary, err := decodeSummary(raw)
		if err != nil {
			return Result{}, ClassContract, err
		}
		res.Summary = summary
	case TypeQuiz:
		questions, err := decodeQuiz(raw)
		if err != nil {
			return Result{}, ClassContract, err
		}
		res.Questions = questions
	}
	return res, ClassNone, nil
}

func decodeSummary(raw []byte) (string, error) {
	var body struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("gateway: decode summary: %w", err)
	}
	if body.Summary == nil {
		return "", errors.New("gateway: summary field is missing")
	}
	summary := strings.TrimSpace(*body.Summary)
	if summary == "" {
		return "", errors.New("gateway: summary is empty")
	}
	if n := textkit.WordCount(summary); n > textkit.MaxSummaryWords {
		return "", fmt.Errorf("gateway: summary has %d words, limit is %d", n, textkit.MaxSummaryWords)
	}
	return summary, nil
}

func decodeQuiz(raw []byte) ([]textkit.QuizQuestion, error) {
	var body struct {
		Questions []textkit.QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("gateway: decode quiz: %w", err)
	}
	if err := textkit.ValidateQuiz(body.Questions); err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	return body.Questions, nil
}

func fallbackFor(t ContentType, text string) Result {
	res := Result{Kind: KindFallback, Type: t}
	if t == TypeQuiz {
		res.Questions = textkit.FallbackQuiz(text)
	} else {
		res.Summary = textkit.FallbackSummary(text)
	}
	return res
}

func (g *Gateway) record(ctx context.Context, res Result) {
	if g.metrics == nil {
		return
	}
	class := res.Class
	if class == "" {
		class = ClassNone
	}
	g.metrics.RecordContentRequest(ctx, string(res.Type), string(res.Kind), string(class))
}

// cloneQuestions deep-copies qs so callers sharing a coalesced result cannot
// observe each other's mutations.
func cloneQuestions(qs []textkit.QuizQuestion) []textkit.QuizQuestion {
	if qs == nil {
		return nil
	}
	out := make([]textkit.QuizQuestion, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

// sleep waits for d or until ctx is done. It reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
