package speech

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/claire/pkg/audio"
	audiomock "github.com/MrWong99/claire/pkg/audio/mock"
	ttsmock "github.com/MrWong99/claire/pkg/provider/tts/mock"
	"github.com/MrWong99/claire/pkg/types"
)

// receive waits for a value on ch or fails the test after a second.
func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}

func TestSpeak_PlaysChunksInOrder(t *testing.T) {
	synth := &ttsmock.Provider{}
	player := &audiomock.Player{AutoFinish: true}
	c := NewController(synth, player, WithMaxChunkChars(4))

	res := c.Speak(context.Background(), "One. Two. Three.", SpeakOptions{})

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %q, want %q (err %v)", res.Outcome, OutcomeCompleted, res.Err)
	}
	if res.Chunks != 3 || res.Played != 3 {
		t.Errorf("Chunks/Played = %d/%d, want 3/3", res.Chunks, res.Played)
	}
	want := []string{"One.", "Two.", "Three."}
	if got := synth.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("synthesized = %q, want %q", got, want)
	}
	if n := len(player.Clips); n != 3 {
		t.Fatalf("played clips = %d, want 3", n)
	}
	if got := string(player.Clips[2].Data); got != "Three." {
		t.Errorf("third clip = %q, want Three.", got)
	}
	if c.State() != Idle {
		t.Errorf("State = %v, want Idle", c.State())
	}
}

func TestSpeak_Voice(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		synth := &ttsmock.Provider{}
		c := NewController(synth, &audiomock.Player{AutoFinish: true})
		c.Speak(context.Background(), "Hello.", SpeakOptions{})

		v := synth.SynthesizeCalls[0].Voice
		if v.ID != "anushka" || v.Language != "en-IN" {
			t.Errorf("voice = %+v, want anushka/en-IN", v)
		}
	})
	t.Run("overrides", func(t *testing.T) {
		synth := &ttsmock.Provider{}
		c := NewController(synth, &audiomock.Player{AutoFinish: true},
			WithDefaultVoice("meera"), WithDefaultLanguage("hi-IN"))
		c.Speak(context.Background(), "Hello.", SpeakOptions{Voice: "arvind"})

		v := synth.SynthesizeCalls[0].Voice
		if v.ID != "arvind" || v.Language != "hi-IN" {
			t.Errorf("voice = %+v, want arvind/hi-IN", v)
		}
	})
}

func TestSpeak_CancelAfterFirstChunkStarts(t *testing.T) {
	synth := &ttsmock.Provider{}
	player := &audiomock.Player{}
	started := player.Started(4)
	c := NewController(synth, player, WithMaxChunkChars(4))

	done := make(chan Result, 1)
	go func() { done <- c.Speak(context.Background(), "One. Two. Three.", SpeakOptions{}) }()

	h := receive(t, started)
	if !c.IsSpeaking() {
		t.Error("IsSpeaking = false while a chunk plays")
	}
	c.Cancel()
	c.Cancel()

	res := receive(t, done)
	if res.Outcome != OutcomeCancelled {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCancelled)
	}
	if res.Played != 0 {
		t.Errorf("Played = %d, want 0", res.Played)
	}
	if got := synth.Texts(); len(got) != 1 {
		t.Errorf("synthesis calls = %q, want exactly one", got)
	}
	if h.StopCount() == 0 {
		t.Error("playing handle was not stopped")
	}
	if !errors.Is(h.Err(), audio.ErrStopped) {
		t.Errorf("handle Err = %v, want ErrStopped", h.Err())
	}
	if n := player.HandleCount(); n != 1 {
		t.Errorf("handles = %d, want 1", n)
	}
	if c.IsSpeaking() {
		t.Error("IsSpeaking = true after cancel")
	}
}

func TestSpeak_CancelDuringSynthesis(t *testing.T) {
	entered := make(chan struct{}, 1)
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, text string, _ types.VoiceProfile) (*types.AudioClip, error) {
			entered <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	player := &audiomock.Player{AutoFinish: true}
	c := NewController(synth, player)

	done := make(chan Result, 1)
	go func() { done <- c.Speak(context.Background(), "Hello there.", SpeakOptions{}) }()

	receive(t, entered)
	c.Cancel()

	res := receive(t, done)
	if res.Outcome != OutcomeCancelled {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCancelled)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
	if n := player.HandleCount(); n != 0 {
		t.Errorf("handles = %d, want 0", n)
	}
}

func TestSpeak_SynthesisFailureStops(t *testing.T) {
	synthErr := errors.New("503 from upstream")
	synth := &ttsmock.Provider{SynthesizeErr: synthErr}
	player := &audiomock.Player{AutoFinish: true}
	c := NewController(synth, player, WithMaxChunkChars(4))

	res := c.Speak(context.Background(), "One. Two. Three.", SpeakOptions{})
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeStopped)
	}
	if !errors.Is(res.Err, synthErr) {
		t.Errorf("Err = %v, want wrapping %v", res.Err, synthErr)
	}
	if got := synth.Texts(); len(got) != 1 {
		t.Errorf("synthesis calls = %d, want 1 (no retry, no skip)", len(got))
	}
	if n := player.HandleCount(); n != 0 {
		t.Errorf("handles = %d, want 0", n)
	}
	if c.State() != Idle {
		t.Errorf("State = %v, want Idle", c.State())
	}
}

func TestSpeak_EmptyClipStops(t *testing.T) {
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(context.Context, string, types.VoiceProfile) (*types.AudioClip, error) {
			return &types.AudioClip{}, nil
		},
	}
	c := NewController(synth, &audiomock.Player{AutoFinish: true})

	res := c.Speak(context.Background(), "Hello.", SpeakOptions{})
	if res.Outcome != OutcomeStopped || res.Err == nil {
		t.Errorf("result = %+v, want stopped with an error", res)
	}
}

func TestSpeak_PlaybackFailureStops(t *testing.T) {
	playErr := errors.New("device unplugged")
	synth := &ttsmock.Provider{}
	var mu sync.Mutex
	n := 0
	player := &audiomock.Player{
		OnPlay: func(h *audiomock.Handle) {
			mu.Lock()
			n++
			second := n == 2
			mu.Unlock()
			if second {
				h.Finish(playErr)
				return
			}
			h.Finish(nil)
		},
	}
	c := NewController(synth, player, WithMaxChunkChars(4))

	res := c.Speak(context.Background(), "One. Two. Three.", SpeakOptions{})
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeStopped)
	}
	if !errors.Is(res.Err, playErr) {
		t.Errorf("Err = %v, want wrapping %v", res.Err, playErr)
	}
	if res.Played != 1 {
		t.Errorf("Played = %d, want 1", res.Played)
	}
	if got := synth.Texts(); len(got) != 2 {
		t.Errorf("synthesis calls = %q, want 2", got)
	}
}

func TestSpeak_PlayErrorStops(t *testing.T) {
	c := NewController(&ttsmock.Provider{}, &audiomock.Player{PlayErr: errors.New("no player")})

	res := c.Speak(context.Background(), "Hello.", SpeakOptions{})
	if res.Outcome != OutcomeStopped || res.Err == nil {
		t.Errorf("result = %+v, want stopped with an error", res)
	}
}

func TestSpeak_CallerContextCancels(t *testing.T) {
	player := &audiomock.Player{}
	started := player.Started(1)
	c := NewController(&ttsmock.Provider{}, player)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- c.Speak(ctx, "Hello.", SpeakOptions{}) }()

	h := receive(t, started)
	cancel()

	res := receive(t, done)
	if res.Outcome != OutcomeCancelled {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCancelled)
	}
	if h.StopCount() == 0 {
		t.Error("handle was not stopped")
	}
}

func TestSpeak_NewSessionCancelsPrevious(t *testing.T) {
	synth := &ttsmock.Provider{}
	player := &audiomock.Player{}
	started := player.Started(4)
	c := NewController(synth, player)

	first := make(chan Result, 1)
	go func() { first <- c.Speak(context.Background(), "First session.", SpeakOptions{}) }()
	h1 := receive(t, started)

	second := make(chan Result, 1)
	go func() { second <- c.Speak(context.Background(), "Second session.", SpeakOptions{}) }()

	if res := receive(t, first); res.Outcome != OutcomeCancelled {
		t.Errorf("first Outcome = %q, want %q", res.Outcome, OutcomeCancelled)
	}
	h2 := receive(t, started)
	select {
	case <-h1.Done():
	default:
		t.Error("second session started while the first was still playing")
	}
	h2.Finish(nil)

	if res := receive(t, second); res.Outcome != OutcomeCompleted {
		t.Errorf("second Outcome = %q, want %q", res.Outcome, OutcomeCompleted)
	}
	want := []string{"First session.", "Second session."}
	if got := synth.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("synthesized = %q, want %q", got, want)
	}
}

func TestCancel_IdleIsNoop(t *testing.T) {
	c := NewController(&ttsmock.Provider{}, &audiomock.Player{AutoFinish: true})
	c.Cancel()
	c.Cancel()
	if c.State() != Idle {
		t.Errorf("State = %v, want Idle", c.State())
	}

	// A later session starts fresh.
	if res := c.Speak(context.Background(), "Fresh.", SpeakOptions{}); res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCompleted)
	}
}

func TestTransition(t *testing.T) {
	c := NewController(&ttsmock.Provider{}, &audiomock.Player{})
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transition(Idle, Idle); err == nil {
		t.Error("Idle -> Idle allowed")
	}
	if err := c.transition(Speaking, Idle); err == nil {
		t.Error("Speaking -> Idle allowed while Idle")
	}
	if err := c.transition(Idle, Speaking); err != nil {
		t.Errorf("Idle -> Speaking: %v", err)
	}
	if err := c.transition(Idle, Speaking); err == nil {
		t.Error("double start allowed")
	}
	if err := c.transition(Speaking, Idle); err != nil {
		t.Errorf("Speaking -> Idle: %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Speaking, "speaking"},
		{State(7), "State(7)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
