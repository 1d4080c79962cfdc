// Package mock is a scriptable [llm.Provider] for tests of the content
// gateway, the support companion and the HTTP handlers built on them.
//
//	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"summary":"Hi."}`}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/types"
)

// CompleteCall is one recorded Complete invocation.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider answers with canned values. Configure it before first use; read
// CompleteCalls after the code under test has returned, or use CallCount
// while calls may still be running.
type Provider struct {
	// CompleteResponse and CompleteErr are returned as is.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// CompleteFunc replaces the canned reply when set. It runs unlocked so
	// it may block until ctx is done.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	ModelCapabilities types.ModelCapabilities

	mu            sync.Mutex
	CompleteCalls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements [llm.Provider]. CompleteFunc, when set, takes
// precedence over CompleteResponse and CompleteErr.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return p.CompleteResponse, p.CompleteErr
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() types.ModelCapabilities { return p.ModelCapabilities }

// CallCount is safe to call concurrently with Complete.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset forgets recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.CompleteCalls = nil
	p.mu.Unlock()
}
