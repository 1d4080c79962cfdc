// Package observe wires Claire into OpenTelemetry: metric instruments,
// tracing, request-scoped slog loggers and the HTTP middleware that sets all
// of them up per request.
//
// [InitProvider] installs the global providers and a Prometheus exporter for
// /metrics. Production code records through [DefaultMetrics]; tests build
// their own [Metrics] with [NewMetrics] on a private MeterProvider.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/claire"

// Metrics holds every instrument Claire records. The instrument
// descriptions in [NewMetrics] list their attributes.
type Metrics struct {
	// Latencies in seconds.
	STTDuration           metric.Float64Histogram
	LLMDuration           metric.Float64Histogram
	TTSDuration           metric.Float64Histogram // per chunk
	ToolExecutionDuration metric.Float64Histogram
	HTTPRequestDuration   metric.Float64Histogram

	ContentRequests    metric.Int64Counter
	SpeechChunks       metric.Int64Counter
	SpeechSessions     metric.Int64Counter
	SupportMessages    metric.Int64Counter
	CrisisFlags        metric.Int64Counter
	UsageDenied        metric.Int64Counter
	ProviderRequests   metric.Int64Counter
	ProviderErrors     metric.Int64Counter
	ToolCalls          metric.Int64Counter
	BreakerTransitions metric.Int64Counter

	ActiveSpeechSessions metric.Int64UpDownCounter
}

// latencyBuckets reach 20s since remote completions often take several.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20,
}

// NewMetrics creates every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.STTDuration, "claire.stt.duration", "Latency of speech-to-text transcription."},
		{&met.LLMDuration, "claire.llm.duration", "Latency of LLM completions."},
		{&met.TTSDuration, "claire.tts.duration", "Latency of text-to-speech synthesis per chunk."},
		{&met.ToolExecutionDuration, "claire.tool_execution.duration", "Latency of MCP tool execution."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ContentRequests, "claire.content.requests", "Content gateway results by type (summary|quiz), kind (ai|fallback) and failure class."},
		{&met.SpeechChunks, "claire.speech.chunks", "Speech chunks by status (played|failed|cancelled)."},
		{&met.SpeechSessions, "claire.speech.sessions", "Finished speech sessions by outcome."},
		{&met.SupportMessages, "claire.support.messages", "Support chat replies by crisis flag."},
		{&met.CrisisFlags, "claire.support.crisis_flags", "Crisis detections by source (user|model)."},
		{&met.UsageDenied, "claire.usage.denied", "Anonymous requests rejected by the usage gate."},
		{&met.ProviderRequests, "claire.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "claire.provider.errors", "Total provider errors by provider and kind."},
		{&met.ToolCalls, "claire.tool.calls", "Total tool invocations by tool name and status."},
		{&met.BreakerTransitions, "claire.breaker.transitions", "Circuit breaker state changes by breaker and state."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ActiveSpeechSessions, err = m.Int64UpDownCounter("claire.speech.active",
		metric.WithDescription("Number of speech sessions currently playing."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("claire.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide instruments, created on first use
// from [otel.GetMeterProvider]. Call [InitProvider] first for them to be
// exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr shortens attribute.String at call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func add(ctx context.Context, c metric.Int64Counter, kv ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(kv...))
}

// RecordProviderRequest counts one call to a provider backend.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	add(ctx, m.ProviderRequests, Attr("provider", provider), Attr("kind", kind), Attr("status", status))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	add(ctx, m.ProviderErrors, Attr("provider", provider), Attr("kind", kind))
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	add(ctx, m.ToolCalls, Attr("tool", tool), Attr("status", status))
}

// RecordContentRequest counts a gateway result. kind is "ai" or "fallback";
// class names the failure that forced a fallback, or "none".
func (m *Metrics) RecordContentRequest(ctx context.Context, contentType, kind, class string) {
	add(ctx, m.ContentRequests, Attr("type", contentType), Attr("kind", kind), Attr("class", class))
}

func (m *Metrics) RecordSpeechChunk(ctx context.Context, status string) {
	add(ctx, m.SpeechChunks, Attr("status", status))
}

func (m *Metrics) RecordSpeechSession(ctx context.Context, outcome string) {
	add(ctx, m.SpeechSessions, Attr("outcome", outcome))
}

// RecordSupportMessage counts a companion reply. A flagged reply also counts
// as a crisis detection attributed to source ("user" or "model").
func (m *Metrics) RecordSupportMessage(ctx context.Context, crisis bool, source string) {
	add(ctx, m.SupportMessages, Attr("crisis", strconv.FormatBool(crisis)))
	if crisis {
		add(ctx, m.CrisisFlags, Attr("source", source))
	}
}

func (m *Metrics) RecordUsageDenied(ctx context.Context, feature string) {
	add(ctx, m.UsageDenied, Attr("feature", feature))
}

func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	add(ctx, m.BreakerTransitions, Attr("breaker", name), Attr("state", to))
}
