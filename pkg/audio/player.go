// Package audio defines how synthesized speech clips are played back.
//
// A [Player] starts playback of one [types.AudioClip] and hands back a
// [Handle]. The handle exposes an awaitable completion channel so callers can
// play clips strictly one after another with ordinary sequential code, and a
// Stop method that silences the clip immediately.
package audio

import (
	"context"
	"errors"

	"github.com/MrWong99/claire/pkg/types"
)

// ErrStopped is reported by [Handle.Err] when playback ended because Stop was
// called rather than because the clip played to the end.
var ErrStopped = errors.New("audio: playback stopped")

// Player starts audio playback.
//
// Play must begin playback and return without waiting for the clip to finish;
// completion is observed through the returned Handle. Implementations must be
// safe for concurrent use.
type Player interface {
	Play(ctx context.Context, clip *types.AudioClip) (Handle, error)
}

// Handle controls one playing clip.
type Handle interface {
	// Done is closed when playback has ended for any reason: played to the
	// end, failed, or stopped.
	Done() <-chan struct{}

	// Err reports why playback ended. It is nil after a clean finish,
	// ErrStopped after Stop, and the playback failure otherwise. Only
	// meaningful once Done is closed.
	Err() error

	// Stop halts playback. It is idempotent and safe to call after Done.
	Stop()
}

// Wait blocks until h finishes or ctx is done and returns the playback error.
// When ctx ends first the handle is stopped, Wait blocks until playback has
// actually ended, and ctx.Err() is returned.
func Wait(ctx context.Context, h Handle) error {
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		h.Stop()
		<-h.Done()
		return ctx.Err()
	}
}
