// Package stt defines the Provider interface for Speech-to-Text backends.
//
// Voice input in Claire is batch oriented: the browser records a short clip,
// uploads it, and waits for the transcript. A provider therefore turns one
// complete recording into one [types.Transcript].
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/claire/pkg/types"
)

// ErrEmptyAudio is returned when Transcribe is called without audio data.
var ErrEmptyAudio = errors.New("stt: audio must not be empty")

// Audio is one recorded utterance.
type Audio struct {
	// Data is the encoded recording (WAV, WebM, OGG, ...).
	Data []byte

	// MIMEType describes Data, e.g. "audio/wav". May be empty when unknown.
	MIMEType string

	// Language is a BCP-47 hint (e.g. "en-IN"). Empty lets the backend detect it.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a complete recording into text.
	//
	// Returns ErrEmptyAudio if audio.Data is empty, or an error if the backend
	// rejects the request or ctx is done.
	Transcribe(ctx context.Context, audio Audio) (types.Transcript, error)
}
