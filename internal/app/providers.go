package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/claire/internal/config"
	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/resilience"
	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/provider/llm/anyllm"
	"github.com/MrWong99/claire/pkg/provider/llm/openai"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/stt/whisper"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/provider/tts/coqui"
	"github.com/MrWong99/claire/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/claire/pkg/provider/tts/remote"
	"github.com/MrWong99/claire/pkg/provider/tts/sarvam"
	"github.com/MrWong99/claire/pkg/types"
)

// anyLLMBackends are the LLM names served through any-llm-go. groq and
// openai use the OpenAI-compatible client instead.
var anyLLMBackends = []string{"anthropic", "gemini", "deepseek", "mistral", "llamacpp", "ollama"}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation package.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("groq", func(entry config.ProviderEntry) (llm.Provider, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = openai.GroqBaseURL
		}
		return openai.New(entry.APIKey, entry.Model, openai.WithBaseURL(baseURL))
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyLLMBackends {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("sarvam", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []sarvam.Option
		if entry.BaseURL != "" {
			opts = append(opts, sarvam.WithEndpoint(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sarvam.WithModel(entry.Model))
		}
		return sarvam.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithDefaultSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("remote", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []remote.Option
		if entry.APIKey != "" {
			opts = append(opts, remote.WithHeader("Authorization", "Bearer "+entry.APIKey))
		}
		return remote.New(entry.BaseURL, opts...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// BuildProviders instantiates the providers named in cfg using reg. A
// provider with fallbacks is wrapped in a resilience chain whose circuit
// breakers report their transitions to m. Every concrete provider is
// instrumented with request, error and latency metrics.
//
// A primary name that is not registered is skipped with a warning; any other
// construction error is returned.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	ps := &Providers{}
	pc := cfg.Providers
	fbCfg := fallbackConfig(m)

	p, err := buildChain("llm", pc.LLM, pc.LLMFallbacks, reg.CreateLLM,
		func(e config.ProviderEntry, p llm.Provider) llm.Provider { return &instrumentedLLM{Provider: p, name: e.Name, metrics: m} },
		func(first llm.Provider, name string) chain[llm.Provider] {
			return resilience.NewLLMFallback(first, name, fbCfg)
		})
	if err != nil {
		return nil, err
	}
	ps.LLM = p

	t, err := buildChain("tts", pc.TTS, pc.TTSFallbacks, reg.CreateTTS,
		func(e config.ProviderEntry, p tts.Provider) tts.Provider { return &instrumentedTTS{Provider: p, name: e.Name, metrics: m} },
		func(first tts.Provider, name string) chain[tts.Provider] {
			return resilience.NewTTSFallback(first, name, fbCfg)
		})
	if err != nil {
		return nil, err
	}
	ps.TTS = t

	s, err := buildChain("stt", pc.STT, pc.STTFallbacks, reg.CreateSTT,
		func(e config.ProviderEntry, p stt.Provider) stt.Provider { return &instrumentedSTT{Provider: p, name: e.Name, metrics: m} },
		func(first stt.Provider, name string) chain[stt.Provider] {
			return resilience.NewSTTFallback(first, name, fbCfg)
		})
	if err != nil {
		return nil, err
	}
	ps.STT = s

	return ps, nil
}

// chain is a fallback wrapper that is itself a provider of kind P.
type chain[P any] interface {
	AddFallback(name string, p P)
}

// buildChain creates the primary and its fallbacks. It returns the zero P
// when no primary is configured or registered.
func buildChain[P any](
	kind string,
	primary config.ProviderEntry,
	fallbacks []config.ProviderEntry,
	create func(config.ProviderEntry) (P, error),
	instrument func(config.ProviderEntry, P) P,
	newChain func(first P, name string) chain[P],
) (P, error) {
	var zero P
	if primary.Name == "" {
		return zero, nil
	}

	first, err := create(primary)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not registered, skipping", "kind", kind, "name", primary.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("app: create %s provider %q: %w", kind, primary.Name, err)
	}
	first = instrument(primary, first)
	slog.Info("provider created", "kind", kind, "name", primary.Name, "model", primary.Model)

	if len(fallbacks) == 0 {
		return first, nil
	}

	c := newChain(first, primary.Name)
	for _, fb := range fallbacks {
		p, err := create(fb)
		if err != nil {
			return zero, fmt.Errorf("app: create %s fallback %q: %w", kind, fb.Name, err)
		}
		c.AddFallback(fb.Name, instrument(fb, p))
		slog.Info("fallback provider created", "kind", kind, "name", fb.Name, "model", fb.Model)
	}
	out, ok := c.(P)
	if !ok {
		return zero, fmt.Errorf("app: %s fallback chain does not implement the provider interface", kind)
	}
	return out, nil
}

// isProviderFault excludes caller mistakes from breaker accounting: an
// empty recording is rejected by every STT backend alike.
func isProviderFault(err error) bool {
	return resilience.IsProviderFailure(err) && !errors.Is(err, stt.ErrEmptyAudio)
}

// fallbackConfig exports breaker transitions as metrics.
func fallbackConfig(m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			IsFailure: isProviderFault,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
				if m != nil {
					m.RecordBreakerTransition(context.Background(), name, to.String())
				}
			},
		},
	}
}

// ── Instrumentation ───────────────────────────────────────────────────────────

// status maps an error to the "status" metric attribute.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

type instrumentedLLM struct {
	llm.Provider
	name    string
	metrics *observe.Metrics
}

func (p *instrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.Provider.Complete(ctx, req)
	recordProvider(ctx, p.metrics, p.name, "llm", err)
	return resp, err
}

type instrumentedTTS struct {
	tts.Provider
	name    string
	metrics *observe.Metrics
}

func (p *instrumentedTTS) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	clip, err := p.Provider.Synthesize(ctx, text, voice)
	recordProvider(ctx, p.metrics, p.name, "tts", err)
	return clip, err
}

type instrumentedSTT struct {
	stt.Provider
	name    string
	metrics *observe.Metrics
}

func (p *instrumentedSTT) Transcribe(ctx context.Context, audio stt.Audio) (types.Transcript, error) {
	start := time.Now()
	tr, err := p.Provider.Transcribe(ctx, audio)
	if p.metrics != nil {
		p.metrics.STTDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds())
	}
	recordProvider(ctx, p.metrics, p.name, "stt", err)
	return tr, err
}

func recordProvider(ctx context.Context, m *observe.Metrics, name, kind string, err error) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.RecordProviderRequest(ctx, name, kind, status(err))
	if err != nil && !errors.Is(err, context.Canceled) {
		m.RecordProviderError(ctx, name, kind)
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
