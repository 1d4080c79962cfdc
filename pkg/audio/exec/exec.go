// Package exec provides an [audio.Player] that plays clips through an external
// command-line player such as ffplay, mpv or aplay.
//
// Inline clip data is piped to the command's stdin. For URL clips the stdin
// placeholder argument ("-") is replaced with the URL, which works for players
// that can stream from HTTP themselves (ffplay, mpv).
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"

	"github.com/MrWong99/claire/pkg/audio"
	"github.com/MrWong99/claire/pkg/types"
)

// DefaultCommand plays a clip from stdin with ffplay and exits at the end.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}

// StdinPlaceholder is the argument that stands for "read from stdin".
const StdinPlaceholder = "-"

// Player runs one process per clip.
type Player struct {
	name string
	args []string
}

// New creates a Player that runs command. An empty command selects
// [DefaultCommand]. The binary is resolved lazily on each Play.
func New(command ...string) *Player {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Player{name: command[0], args: slices.Clone(command[1:])}
}

// Play starts the player process for clip and returns immediately.
func (p *Player) Play(_ context.Context, clip *types.AudioClip) (audio.Handle, error) {
	if clip.IsEmpty() {
		return nil, errors.New("exec: clip has no audio")
	}

	args := slices.Clone(p.args)
	var stdin []byte
	if len(clip.Data) > 0 {
		stdin = clip.Data
	} else {
		i := slices.Index(args, StdinPlaceholder)
		if i < 0 {
			return nil, fmt.Errorf("exec: %s cannot play URL clips without a %q argument", p.name, StdinPlaceholder)
		}
		args[i] = clip.URL
	}

	// The process is not tied to ctx: its lifetime is governed by the handle.
	cmd := exec.Command(p.name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec: start %s: %w", p.name, err)
	}

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go h.wait(&stderr)

	slog.Debug("exec: playback started", "player", p.name, "pid", cmd.Process.Pid, "bytes", len(stdin), "url", clip.URL)
	return h, nil
}

type handle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

func (h *handle) wait(stderr *bytes.Buffer) {
	err := h.cmd.Wait()

	h.mu.Lock()
	switch {
	case h.stopped:
		h.err = audio.ErrStopped
	case err != nil:
		h.err = fmt.Errorf("exec: player exited: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	h.mu.Unlock()
	close(h.done)
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *handle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	select {
	case <-h.done:
		return
	default:
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("exec: failed to kill player", "pid", h.cmd.Process.Pid, "err", err)
	}
}

var _ audio.Player = (*Player)(nil)
