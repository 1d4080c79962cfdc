package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestEncodeWAV_ParseWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("info = %+v, want 16000 Hz mono 16-bit", info)
	}
	if info.DataOffset != 44 {
		t.Errorf("DataOffset = %d, want 44", info.DataOffset)
	}
	if !bytes.Equal(wav[info.DataOffset:], pcm) {
		t.Errorf("payload = %v, want %v", wav[info.DataOffset:], pcm)
	}
}

func TestParseWAV_SkipsExtraChunks(t *testing.T) {
	base := EncodeWAV([]byte{9, 9}, 22050, 2)

	// Insert an odd-sized LIST chunk between fmt and data.
	list := []byte("LIST")
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, 3)
	list = append(list, size...)
	list = append(list, 'a', 'b', 'c', 0) // padded to even length

	var wav []byte
	wav = append(wav, base[:36]...)
	wav = append(wav, list...)
	wav = append(wav, base[36:]...)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != 22050 || info.Channels != 2 {
		t.Errorf("info = %+v", info)
	}
	if !bytes.Equal(wav[info.DataOffset:], []byte{9, 9}) {
		t.Errorf("payload = %v", wav[info.DataOffset:])
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"short":    []byte("RIFF"),
		"not riff": []byte("RIFX0000WAVEfmt "),
		"not wave": []byte("RIFF0000AVI fmt "),
		"no data":  EncodeWAV(nil, 8000, 1)[:36],
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseWAV(in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// fakeHandle is a minimal Handle for exercising Wait.
type fakeHandle struct {
	done    chan struct{}
	err     error
	stopped bool
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Err() error            { return h.err }

func (h *fakeHandle) Stop() {
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func TestWait(t *testing.T) {
	t.Run("finished", func(t *testing.T) {
		h := &fakeHandle{done: make(chan struct{}), err: errors.New("device busy")}
		close(h.done)
		if err := Wait(context.Background(), h); err == nil || err.Error() != "device busy" {
			t.Errorf("Wait = %v, want device busy", err)
		}
	})

	t.Run("context done stops handle", func(t *testing.T) {
		h := &fakeHandle{done: make(chan struct{})}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := Wait(ctx, h); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait = %v, want DeadlineExceeded", err)
		}
		if !h.stopped {
			t.Error("expected handle to be stopped")
		}
	})
}
