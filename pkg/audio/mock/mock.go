// Package mock provides a scriptable implementation of [audio.Player] for
// unit tests.
//
// By default every clip "plays" until the test finishes it explicitly via
// [Handle.Finish], which lets tests observe the exact moment a caller is
// waiting on playback. Set AutoFinish to complete clips immediately.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/claire/pkg/audio"
	"github.com/MrWong99/claire/pkg/types"
)

// Player is a mock implementation of [audio.Player]. Safe for concurrent use.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play and no handle is created.
	PlayErr error

	// AutoFinish makes every handle finish as soon as it is created, with
	// FinishErr as its result.
	AutoFinish bool

	// FinishErr is the playback result used by AutoFinish.
	FinishErr error

	// OnPlay, if set, is called after each handle is created, outside the lock.
	OnPlay func(h *Handle)

	// Clips records every clip passed to Play, in order.
	Clips []*types.AudioClip

	// Handles records every handle returned by Play, in order.
	Handles []*Handle

	started chan *Handle
}

// Play records clip and returns a new handle.
func (p *Player) Play(_ context.Context, clip *types.AudioClip) (audio.Handle, error) {
	p.mu.Lock()
	p.Clips = append(p.Clips, clip)
	if p.PlayErr != nil {
		err := p.PlayErr
		p.mu.Unlock()
		return nil, err
	}
	h := NewHandle()
	p.Handles = append(p.Handles, h)
	auto, finishErr, onPlay := p.AutoFinish, p.FinishErr, p.OnPlay
	started := p.started
	p.mu.Unlock()

	if auto {
		h.Finish(finishErr)
	}
	if onPlay != nil {
		onPlay(h)
	}
	if started != nil {
		started <- h
	}
	return h, nil
}

// Started returns a channel that receives every handle created from now on.
// The channel is buffered with capacity n; Play blocks when it is full.
func (p *Player) Started(n int) <-chan *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = make(chan *Handle, n)
	return p.started
}

// HandleCount returns the number of handles created so far.
func (p *Player) HandleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Handles)
}

// Reset clears all recorded calls.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clips = nil
	p.Handles = nil
}

// Handle is a mock [audio.Handle] completed by the test.
type Handle struct {
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	err     error
	stopped int
}

// NewHandle returns an unfinished handle.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Finish ends playback with err. Later calls are ignored.
func (h *Handle) Finish(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// Done implements [audio.Handle].
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err implements [audio.Handle].
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop implements [audio.Handle]. It finishes the handle with
// [audio.ErrStopped] and counts the call.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped++
	h.mu.Unlock()
	h.Finish(audio.ErrStopped)
}

// StopCount reports how many times Stop was called.
func (h *Handle) StopCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

var (
	_ audio.Player = (*Player)(nil)
	_ audio.Handle = (*Handle)(nil)
)
