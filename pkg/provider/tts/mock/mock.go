// Package mock is a scriptable [tts.Provider] that records which chunks and
// voices reach the synthesiser.
//
//	p := &mock.Provider{ListVoicesResult: []types.VoiceProfile{{ID: "anushka"}}}
//	clip, _ := p.Synthesize(ctx, "Hello.", voice) // WAV-typed clip holding "Hello."
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

// SynthesizeCall is one recorded Synthesize invocation.
type SynthesizeCall struct {
	Ctx   context.Context
	Text  string
	Voice types.VoiceProfile
}

// Provider returns canned clips. Set fields before first use.
type Provider struct {
	// Clip is returned on success. When nil, each call gets a fresh
	// "audio/wav" clip whose bytes are the input text.
	Clip          *types.AudioClip
	SynthesizeErr error

	// SynthesizeFunc overrides Clip and SynthesizeErr. It runs unlocked.
	SynthesizeFunc func(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error)

	ListVoicesResult []types.VoiceProfile
	ListVoicesErr    error

	mu              sync.Mutex
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements [tts.Provider]. It records the call, then answers
// from SynthesizeFunc, SynthesizeErr or Clip, in that order. With none set it
// echoes the text as the clip body.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	p.mu.Unlock()

	switch {
	case p.SynthesizeFunc != nil:
		return p.SynthesizeFunc(ctx, text, voice)
	case p.SynthesizeErr != nil:
		return nil, p.SynthesizeErr
	case p.Clip != nil:
		return p.Clip, nil
	}
	return &types.AudioClip{Data: []byte(text), MIMEType: "audio/wav"}, nil
}

// Texts lists the synthesised chunks in call order. It is safe to call
// while synthesis is still running.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	texts := make([]string, 0, len(p.SynthesizeCalls))
	for _, c := range p.SynthesizeCalls {
		texts = append(texts, c.Text)
	}
	return texts
}

// ListVoices implements [tts.Provider].
func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	return p.ListVoicesResult, p.ListVoicesErr
}
