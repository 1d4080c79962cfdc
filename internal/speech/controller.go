// Package speech reads text aloud one chunk at a time.
//
// A [Controller] splits text into sentence-aligned chunks, synthesizes each
// chunk through a [Synthesizer] and plays the resulting clip through an
// [audio.Player] before moving on to the next. Chunks are played strictly in
// order and never overlap. A session ends when every chunk has played, when
// [Controller.Cancel] is called, or at the first synthesis or playback
// failure; none of these surface as a Go error from [Controller.Speak].
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/pkg/audio"
	"github.com/MrWong99/claire/pkg/types"
)

// Defaults applied by [NewController].
const (
	DefaultVoice        = "anushka"
	DefaultLanguage     = "en-IN"
	DefaultChunkTimeout = 20 * time.Second
)

// Synthesizer turns one chunk of text into a playable clip. Every
// tts.Provider satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error)
}

// State is the controller's playback state.
type State int

const (
	// Idle means no session is active.
	Idle State = iota
	// Speaking means a session is synthesizing or playing chunks.
	Speaking
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// errIllegalTransition is returned by transition for moves the state machine
// does not allow.
var errIllegalTransition = errors.New("speech: illegal state transition")

// Outcome says how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeStopped   Outcome = "stopped"
)

// SpeakOptions selects the voice for one Speak call. Empty fields use the
// controller defaults.
type SpeakOptions struct {
	Voice       string
	LanguageTag string
}

// Result reports how a Speak call ended.
type Result struct {
	Outcome Outcome
	// Chunks is the number of chunks the text was split into.
	Chunks int
	// Played is the number of chunks that played to the end.
	Played int
	// Err is the failure that stopped the session. Nil unless Outcome is
	// OutcomeStopped.
	Err error
}

// Option is a functional option for [NewController].
type Option func(*Controller)

// WithMaxChunkChars sets the chunk size limit in runes.
func WithMaxChunkChars(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxChunk = n
		}
	}
}

// WithDefaultVoice sets the voice used when SpeakOptions.Voice is empty.
func WithDefaultVoice(v string) Option {
	return func(c *Controller) { c.defaultVoice = v }
}

// WithDefaultLanguage sets the language tag used when
// SpeakOptions.LanguageTag is empty.
func WithDefaultLanguage(tag string) Option {
	return func(c *Controller) { c.defaultLang = tag }
}

// WithChunkTimeout bounds each synthesis request.
func WithChunkTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.chunkTimeout = d
		}
	}
}

// WithMetrics records chunk and session metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// session is the per-Speak state. handles is guarded by Controller.mu.
type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	handles   map[audio.Handle]struct{}
	done      chan struct{}
}

// Controller plays text as a sequence of synthesized chunks. All methods are
// safe for concurrent use.
type Controller struct {
	synth  Synthesizer
	player audio.Player

	maxChunk     int
	defaultVoice string
	defaultLang  string
	chunkTimeout time.Duration
	metrics      *observe.Metrics

	// startMu serialises session start so that concurrent Speak calls queue
	// behind each other's cancellation instead of racing for the slot.
	startMu sync.Mutex

	mu      sync.Mutex
	state   State
	current *session
}

// NewController creates an idle Controller.
func NewController(synth Synthesizer, player audio.Player, opts ...Option) *Controller {
	c := &Controller{
		synth:        synth,
		player:       player,
		maxChunk:     DefaultMaxChunkChars,
		defaultVoice: DefaultVoice,
		defaultLang:  DefaultLanguage,
		chunkTimeout: DefaultChunkTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsSpeaking reports whether a session is active.
func (c *Controller) IsSpeaking() bool {
	return c.State() == Speaking
}

// transition moves the state machine from one state to another. Must be
// called with c.mu held.
func (c *Controller) transition(from, to State) error {
	if c.state != from || from == to {
		return fmt.Errorf("%w: %s -> %s (current %s)", errIllegalTransition, from, to, c.state)
	}
	c.state = to
	return nil
}

// Speak reads text aloud and blocks until the session completes, is
// cancelled, or stops on a failure. A session already in progress is
// cancelled first and fully wound down before the new one starts.
//
// Cancelling ctx has the same effect as [Controller.Cancel] for this session.
func (c *Controller) Speak(ctx context.Context, text string, opts SpeakOptions) Result {
	s := c.start(ctx)
	res := c.run(s, text, opts)
	c.finish(s, res)
	return res
}

// start waits for any previous session to end and installs a new one.
func (c *Controller) start(ctx context.Context) *session {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	for {
		c.mu.Lock()
		prev := c.current
		if prev == nil {
			break
		}
		c.mu.Unlock()
		c.Cancel()
		<-prev.done
	}
	defer c.mu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:     sctx,
		cancel:  cancel,
		handles: make(map[audio.Handle]struct{}),
		done:    make(chan struct{}),
	}
	if err := c.transition(Idle, Speaking); err != nil {
		// Unreachable while current is nil; keep the machine consistent anyway.
		slog.Error("speech: start session", "err", err)
		c.state = Speaking
	}
	c.current = s
	if c.metrics != nil {
		c.metrics.ActiveSpeechSessions.Add(ctx, 1)
	}
	return s
}

// finish clears the session and returns the controller to Idle.
func (c *Controller) finish(s *session, res Result) {
	c.mu.Lock()
	handles := s.handles
	s.handles = nil
	if c.current == s {
		c.current = nil
		if err := c.transition(Speaking, Idle); err != nil {
			slog.Error("speech: end session", "err", err)
		}
	}
	c.mu.Unlock()

	for h := range handles {
		h.Stop()
	}
	s.cancel()
	if c.metrics != nil {
		ctx := context.WithoutCancel(s.ctx)
		c.metrics.ActiveSpeechSessions.Add(ctx, -1)
		c.metrics.RecordSpeechSession(ctx, string(res.Outcome))
	}
	close(s.done)
}

// Cancel stops the active session: it flags the session as cancelled,
// aborts its in-flight synthesis request and stops every playing clip before
// returning. It is a no-op when Idle and safe to call any number of times
// from any goroutine.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.cancelled.Store(true)
	s.cancel()
	handles := s.handles
	s.handles = make(map[audio.Handle]struct{})
	c.mu.Unlock()

	for h := range handles {
		h.Stop()
	}
}

// run plays every chunk of text in order.
func (c *Controller) run(s *session, text string, opts SpeakOptions) Result {
	chunks := SplitChunks(text, c.maxChunk)
	res := Result{Chunks: len(chunks)}
	voice := types.VoiceProfile{
		ID:       orDefault(opts.Voice, c.defaultVoice),
		Language: orDefault(opts.LanguageTag, c.defaultLang),
	}
	log := observe.Logger(s.ctx)

	for i, chunk := range chunks {
		if c.isCancelled(s) {
			res.Outcome = OutcomeCancelled
			return res
		}

		clip, err := c.synthesize(s, chunk, voice)
		if c.isCancelled(s) {
			// The clip, if any, belongs to a cancelled session.
			c.recordChunk(s, "cancelled")
			res.Outcome = OutcomeCancelled
			return res
		}
		if err != nil {
			c.recordChunk(s, "failed")
			log.Warn("speech: synthesis failed", "chunk", i+1, "of", len(chunks), "err", err)
			res.Outcome = OutcomeStopped
			res.Err = fmt.Errorf("speech: synthesize chunk %d: %w", i+1, err)
			return res
		}

		h, err := c.player.Play(s.ctx, clip)
		if err != nil {
			c.recordChunk(s, "failed")
			log.Warn("speech: playback failed to start", "chunk", i+1, "err", err)
			res.Outcome = OutcomeStopped
			res.Err = fmt.Errorf("speech: play chunk %d: %w", i+1, err)
			return res
		}
		if !c.register(s, h) {
			h.Stop()
			c.recordChunk(s, "cancelled")
			res.Outcome = OutcomeCancelled
			return res
		}

		err = audio.Wait(s.ctx, h)
		c.unregister(s, h)

		if c.isCancelled(s) {
			c.recordChunk(s, "cancelled")
			res.Outcome = OutcomeCancelled
			return res
		}
		if err != nil {
			c.recordChunk(s, "failed")
			log.Warn("speech: playback failed", "chunk", i+1, "err", err)
			res.Outcome = OutcomeStopped
			res.Err = fmt.Errorf("speech: play chunk %d: %w", i+1, err)
			return res
		}
		c.recordChunk(s, "played")
		res.Played++
	}

	res.Outcome = OutcomeCompleted
	return res
}

// isCancelled reports whether Cancel was called or the caller's context ended.
func (c *Controller) isCancelled(s *session) bool {
	return s.cancelled.Load() || s.ctx.Err() != nil
}

func (c *Controller) synthesize(s *session, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	ctx, cancel := context.WithTimeout(s.ctx, c.chunkTimeout)
	defer cancel()

	start := time.Now()
	clip, err := c.synth.Synthesize(ctx, text, voice)
	if c.metrics != nil {
		c.metrics.TTSDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds())
	}
	if err == nil && clip.IsEmpty() {
		err = errors.New("empty audio clip")
	}
	return clip, err
}

// register adds h to the session's registry. It reports false when the
// session was cancelled after playback started; the caller must stop h.
func (c *Controller) register(s *session, h audio.Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.cancelled.Load() || s.handles == nil {
		return false
	}
	s.handles[h] = struct{}{}
	return true
}

func (c *Controller) unregister(s *session, h audio.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(s.handles, h)
}

func (c *Controller) recordChunk(s *session, status string) {
	if c.metrics != nil {
		c.metrics.RecordSpeechChunk(context.WithoutCancel(s.ctx), status)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
