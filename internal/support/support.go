// Package support implements the wellbeing companion chat.
//
// A [Companion] answers a student's message with a short, empathetic reply
// from an LLM. Messages that mention self-harm never reach the model: the
// companion answers with a fixed helpline message instead. Model replies
// that mention self-harm are flagged and carry the helpline as a notice.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/types"
)

const systemPrompt = "You are an emotional wellbeing companion designed to support students with dyslexia.\n" +
	"Provide empathetic, encouraging, and supportive responses.\n" +
	"Do not provide medical or psychological diagnoses.\n" +
	"Keep responses calm, human-like, and under 120 words."

// EmptyReply replaces a blank model answer.
const EmptyReply = "Sorry, I did not understand that."

// Defaults applied by [New].
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 256
	DefaultTimeout     = 20 * time.Second
)

var (
	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("support: message is required")

	// ErrNotConfigured is returned when no LLM provider is available.
	ErrNotConfigured = errors.New("support: AI service is not configured")
)

// Reply is the companion's answer.
type Reply struct {
	Content  string `json:"content"`
	IsCrisis bool   `json:"isCrisis"`
	Model    string `json:"model"`
	// Notice is the helpline message when the model reply signals a crisis.
	Notice string `json:"notice,omitempty"`
}

// Option is a functional option for [New].
type Option func(*Companion)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Companion) { c.temperature = t }
}

// WithMaxTokens overrides the reply token cap.
func WithMaxTokens(n int) Option {
	return func(c *Companion) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Companion) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithModelName sets the model name reported when the backend omits it.
func WithModelName(name string) Option {
	return func(c *Companion) { c.modelName = name }
}

// WithMetrics records message and crisis metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Companion) { c.metrics = m }
}

// Companion produces support chat replies. It is safe for concurrent use.
type Companion struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
	timeout     time.Duration
	modelName   string
	metrics     *observe.Metrics
}

// New creates a Companion. p may be nil; Reply then fails with
// ErrNotConfigured unless the message is pre-empted as a crisis.
func New(p llm.Provider, opts ...Option) *Companion {
	c := &Companion{
		llm:         p,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reply answers message given the earlier conversation. Only user and
// assistant turns of conversation are forwarded to the model.
func (c *Companion) Reply(ctx context.Context, message string, conversation []types.Message) (Reply, error) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return Reply{}, ErrEmptyMessage
	}

	if DetectCrisis(msg) {
		observe.Logger(ctx).Warn("support: crisis language in user message, answering with helpline")
		c.record(ctx, true, "user")
		return Reply{Content: HelplineMessage, IsCrisis: true, Model: c.modelName}, nil
	}

	if c.llm == nil {
		observe.Logger(ctx).Error("support: AI service is not configured", "class", "config")
		return Reply{}, ErrNotConfigured
	}

	history := make([]types.Message, 0, len(conversation)+1)
	for _, m := range conversation {
		if (m.Role == types.RoleUser || m.Role == types.RoleAssistant) && strings.TrimSpace(m.Content) != "" {
			history = append(history, types.Message{Role: m.Role, Content: m.Content})
		}
	}
	history = append(history, types.Message{Role: types.RoleUser, Content: msg})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.llm.Complete(callCtx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     history,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})
	if c.metrics != nil {
		c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		observe.Logger(ctx).Warn("support: completion failed", "class", "transport", "err", err)
		return Reply{}, fmt.Errorf("support: complete: %w", err)
	}

	reply := Reply{Content: EmptyReply, Model: c.modelName}
	if resp != nil {
		if s := strings.TrimSpace(resp.Content); s != "" {
			reply.Content = s
		}
		if resp.Model != "" {
			reply.Model = resp.Model
		}
	}
	if DetectCrisis(reply.Content) {
		reply.IsCrisis = true
		reply.Notice = HelplineMessage
	}
	c.record(ctx, reply.IsCrisis, "model")
	return reply, nil
}

func (c *Companion) record(ctx context.Context, crisis bool, source string) {
	if c.metrics != nil {
		c.metrics.RecordSupportMessage(ctx, crisis, source)
	}
}
