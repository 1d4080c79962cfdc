package resilience

import (
	"context"

	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

// chain carries the registration and introspection methods shared by the
// provider-typed wrappers below.
type chain[P any] struct {
	group *FallbackGroup[P]
}

// AddFallback appends p after the providers already in the chain.
func (c chain[P]) AddFallback(name string, p P) { c.group.AddFallback(name, p) }

// Breakers reports each backend's breaker state by name.
func (c chain[P]) Breakers() map[string]State { return c.group.States() }

// LLMFallback is an [llm.Provider] that fails over between LLM backends.
type LLMFallback struct{ chain[llm.Provider] }

// TTSFallback is a [tts.Provider] that fails over between TTS backends.
type TTSFallback struct{ chain[tts.Provider] }

// STTFallback is an [stt.Provider] that fails over between STT backends.
type STTFallback struct{ chain[stt.Provider] }

var (
	_ llm.Provider = (*LLMFallback)(nil)
	_ tts.Provider = (*TTSFallback)(nil)
	_ stt.Provider = (*STTFallback)(nil)
)

func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{chain[llm.Provider]{NewFallbackGroup(primary, name, cfg)}}
}

func NewTTSFallback(primary tts.Provider, name string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{chain[tts.Provider]{NewFallbackGroup(primary, name, cfg)}}
}

func NewSTTFallback(primary stt.Provider, name string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{chain[stt.Provider]{NewFallbackGroup(primary, name, cfg)}}
}

func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities describes the primary model. Prompts are sized for it even
// when a fallback ends up answering.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	return f.group.Primary().Capabilities()
}

func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*types.AudioClip, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

func (f *TTSFallback) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

func (f *STTFallback) Transcribe(ctx context.Context, audio stt.Audio) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (types.Transcript, error) {
		return p.Transcribe(ctx, audio)
	})
}
