// Package types defines the shared types used across Claire packages.
//
// Providers, the content gateway, the speech controller and the HTTP layer all
// exchange these values. Each package keeps its own domain types; only data
// that crosses package boundaries lives here to avoid circular imports.
package types

import "time"

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// Roles accepted in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}

// VoiceProfile describes a TTS voice selection.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g. "anushka" for Sarvam).
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is a BCP-47 language tag passed through to the provider (e.g. "en-IN").
	Language string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// AudioClip is one complete, playable unit of synthesized speech.
//
// Exactly one of Data or URL is set: providers either return the encoded audio
// bytes inline or point at a remotely hosted file.
type AudioClip struct {
	// Data is the encoded audio (WAV, MP3, ...). Nil when URL is set.
	Data []byte

	// MIMEType describes Data, e.g. "audio/wav" or "audio/mpeg".
	MIMEType string

	// URL is a remote location of the audio. Empty when Data is set.
	URL string
}

// IsEmpty reports whether the clip carries neither inline audio nor a URL.
func (c *AudioClip) IsEmpty() bool {
	return c == nil || (len(c.Data) == 0 && c.URL == "")
}

// Transcript is the result of a speech-to-text request.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the detected or requested language, when reported.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}
