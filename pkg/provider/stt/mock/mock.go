// Package mock is a scriptable [stt.Provider].
//
//	p := &mock.Provider{Result: types.Transcript{Text: "hello"}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/types"
)

// TranscribeCall is one recorded Transcribe invocation.
type TranscribeCall struct {
	Ctx   context.Context
	Audio stt.Audio
}

// Provider answers every call with Result, or with Err when set.
type Provider struct {
	Result types.Transcript
	Err    error

	mu              sync.Mutex
	TranscribeCalls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements [stt.Provider] and records the call.
func (p *Provider) Transcribe(ctx context.Context, audio stt.Audio) (types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: audio})
	if p.Err != nil {
		return types.Transcript{}, p.Err
	}
	return p.Result, nil
}

// CallCount is safe to call concurrently with Transcribe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
