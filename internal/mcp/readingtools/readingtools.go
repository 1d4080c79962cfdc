// Package readingtools exposes the reading tools as an MCP server so that
// agents can call them over the streamable HTTP transport.
//
// Tools:
//   - "simplify": swaps complex words for plain synonyms.
//   - "summarize": summarises a passage through the content gateway.
//   - "quiz": builds a multiple-choice quiz through the content gateway.
//   - "mindmap": groups the passage's frequent words into topic nodes.
//
// Gateway-backed tools never fail on a model outage: they return the local
// fallback and set "degraded" with the reason.
package readingtools

import (
	"context"
	"errors"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/claire/internal/gateway"
	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/textkit"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "claire-reading-tools"

// Version is the implementation version announced to MCP clients.
const Version = "v1.0.0"

// TextArgs is the input shared by every reading tool.
type TextArgs struct {
	// Text is the passage to work on.
	Text string `json:"text" jsonschema:"the passage to work on"`
}

// SimplifyResult is the output of the "simplify" tool.
type SimplifyResult struct {
	Text string `json:"text"`
}

// SummaryResult is the output of the "summarize" tool.
type SummaryResult struct {
	Summary  string `json:"summary"`
	Degraded bool   `json:"degraded"`
	// Reason explains a degraded result.
	Reason string `json:"reason,omitempty"`
	Model  string `json:"model,omitempty"`
}

// QuizResult is the output of the "quiz" tool.
type QuizResult struct {
	Questions []textkit.QuizQuestion `json:"questions"`
	Degraded  bool                   `json:"degraded"`
	Reason    string                 `json:"reason,omitempty"`
	Model     string                 `json:"model,omitempty"`
}

// MindMapResult is the output of the "mindmap" tool.
type MindMapResult struct {
	Nodes []textkit.MindMapNode `json:"nodes"`
}

// errEmptyText is reported as a tool error when the passage is blank.
var errEmptyText = errors.New("text is required")

// Option is a functional option for [NewServer].
type Option func(*tools)

// WithMetrics records tool calls and latencies to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *tools) { t.metrics = m }
}

type tools struct {
	gateway *gateway.Gateway
	metrics *observe.Metrics
}

// NewServer builds an MCP server with the reading tools registered. g may be
// nil, in which case "summarize" and "quiz" are not offered.
func NewServer(g *gateway.Gateway, opts ...Option) *mcpsdk.Server {
	t := &tools{gateway: g}
	for _, o := range opts {
		o(t)
	}

	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: Version}, nil)

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "simplify",
		Description: "Replace complex words in a passage with plain synonyms for easier reading.",
	}, instrument(t.metrics, "simplify", t.simplify))

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "mindmap",
		Description: "Build up to three topic nodes, each with related words from the passage.",
	}, instrument(t.metrics, "mindmap", t.mindMap))

	if g != nil {
		mcpsdk.AddTool(s, &mcpsdk.Tool{
			Name:        "summarize",
			Description: "Summarise a passage in at most 120 words. Falls back to an extractive summary when the model is unavailable.",
		}, instrument(t.metrics, "summarize", t.summarize))

		mcpsdk.AddTool(s, &mcpsdk.Tool{
			Name:        "quiz",
			Description: "Create a 3 to 5 question multiple-choice quiz about a passage.",
		}, instrument(t.metrics, "quiz", t.quiz))
	}
	return s
}

// Handler serves s over the streamable HTTP transport.
func Handler(s *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s }, nil)
}

func (t *tools) simplify(_ context.Context, _ *mcpsdk.CallToolRequest, in TextArgs) (*mcpsdk.CallToolResult, SimplifyResult, error) {
	text := textkit.Normalize(in.Text, 0)
	if text == "" {
		return nil, SimplifyResult{}, errEmptyText
	}
	return nil, SimplifyResult{Text: textkit.Simplify(text)}, nil
}

func (t *tools) mindMap(_ context.Context, _ *mcpsdk.CallToolRequest, in TextArgs) (*mcpsdk.CallToolResult, MindMapResult, error) {
	if textkit.Normalize(in.Text, 0) == "" {
		return nil, MindMapResult{}, errEmptyText
	}
	nodes := textkit.MindMap(in.Text)
	if nodes == nil {
		nodes = []textkit.MindMapNode{}
	}
	return nil, MindMapResult{Nodes: nodes}, nil
}

func (t *tools) summarize(ctx context.Context, _ *mcpsdk.CallToolRequest, in TextArgs) (*mcpsdk.CallToolResult, SummaryResult, error) {
	res, err := t.gateway.Generate(ctx, in.Text, gateway.TypeSummary)
	if err != nil {
		return nil, SummaryResult{}, err
	}
	out := SummaryResult{Summary: res.Summary, Degraded: res.Degraded(), Model: res.Model}
	if out.Degraded {
		out.Reason = res.Reason
	}
	return nil, out, nil
}

func (t *tools) quiz(ctx context.Context, _ *mcpsdk.CallToolRequest, in TextArgs) (*mcpsdk.CallToolResult, QuizResult, error) {
	res, err := t.gateway.Generate(ctx, in.Text, gateway.TypeQuiz)
	if err != nil {
		return nil, QuizResult{}, err
	}
	out := QuizResult{Questions: res.Questions, Degraded: res.Degraded(), Model: res.Model}
	if out.Degraded {
		out.Reason = res.Reason
	}
	if out.Questions == nil {
		out.Questions = []textkit.QuizQuestion{}
	}
	return nil, out, nil
}

// instrument wraps h with call counting and latency recording.
func instrument[In, Out any](m *observe.Metrics, name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)

		status := "ok"
		if err != nil {
			status = "error"
			observe.Logger(ctx).Warn("readingtools: tool failed", "tool", name, "err", err)
		}
		if m != nil {
			m.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(observe.Attr("tool", name)))
			m.RecordToolCall(ctx, name, status)
		}
		return res, out, err
	}
}
