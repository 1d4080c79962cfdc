// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Sarvam AI, ElevenLabs, a
// local Coqui server, or Claire's own /api/tts endpoint) and turns one bounded
// piece of text into one playable [types.AudioClip]. Long passages are split
// into chunks by the caller; providers never see more than one chunk at a time.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/claire/pkg/types"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a single audio clip using voice. The
	// voice's Language tag is passed through to the backend unchanged; an
	// empty voice ID selects the provider's default speaker.
	//
	// Returns an error if the request fails, the backend answers with a
	// non-success status, the response cannot be decoded, or ctx is done.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error)

	// ListVoices returns the voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
