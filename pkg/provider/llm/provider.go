// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (Groq, OpenAI, a local
// Ollama instance, ...) and exposes a uniform request/response interface so
// the content gateway and the support companion never couple to a specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/claire/pkg/types"
)

// Provider is the abstraction over any LLM backend.
//
// Each method should propagate context cancellation promptly: when ctx is
// cancelled or its deadline expires the method must return as quickly as
// possible with an error wrapping ctx.Err().
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is constant for the lifetime of the
	// Provider instance.
	Capabilities() types.ModelCapabilities
}
