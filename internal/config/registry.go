package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
)

// ErrProviderNotRegistered means no factory exists for a configured name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type P from its config entry.
type Factory[P any] func(ProviderEntry) (P, error)

// factories is the name table of one provider kind.
type factories[P any] struct {
	kind   string
	mu     sync.RWMutex
	byName map[string]Factory[P]
}

func (f *factories[P]) register(name string, fn Factory[P]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byName == nil {
		f.byName = make(map[string]Factory[P])
	}
	f.byName[name] = fn
}

func (f *factories[P]) create(e ProviderEntry) (P, error) {
	f.mu.RLock()
	fn, ok := f.byName[e.Name]
	f.mu.RUnlock()

	var zero P
	if !ok {
		return zero, fmt.Errorf("%w: %s %q", ErrProviderNotRegistered, f.kind, e.Name)
	}
	p, err := fn(e)
	if err != nil {
		return zero, fmt.Errorf("config: build %s %q: %w", f.kind, e.Name, err)
	}
	return p, nil
}

// Registry resolves provider names from the config to constructors. A later
// registration under the same name replaces the earlier one. It is safe for
// concurrent use.
type Registry struct {
	llm factories[llm.Provider]
	tts factories[tts.Provider]
	stt factories[stt.Provider]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.llm.kind, r.tts.kind, r.stt.kind = "llm", "tts", "stt"
	return r
}

func (r *Registry) RegisterLLM(name string, fn Factory[llm.Provider]) { r.llm.register(name, fn) }
func (r *Registry) RegisterTTS(name string, fn Factory[tts.Provider]) { r.tts.register(name, fn) }
func (r *Registry) RegisterSTT(name string, fn Factory[stt.Provider]) { r.stt.register(name, fn) }

// CreateLLM builds the LLM named by e.Name, or fails with
// [ErrProviderNotRegistered].
func (r *Registry) CreateLLM(e ProviderEntry) (llm.Provider, error) { return r.llm.create(e) }

// CreateTTS is CreateLLM for speech synthesis.
func (r *Registry) CreateTTS(e ProviderEntry) (tts.Provider, error) { return r.tts.create(e) }

// CreateSTT is CreateLLM for transcription.
func (r *Registry) CreateSTT(e ProviderEntry) (stt.Provider, error) { return r.stt.create(e) }
