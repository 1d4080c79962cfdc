package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

func TestTTS_Binary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tts", `{"text":" Hello there. "}`, "Accept", "audio/*, application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}
	if got := rec.Body.String(); got != "Hello there." {
		t.Errorf("body = %q, want the mock clip", got)
	}
	v := f.tts.SynthesizeCalls[0].Voice
	if v.ID != "anushka" || v.Language != "en-IN" {
		t.Errorf("voice = %+v, want anushka/en-IN defaults", v)
	}
}

func TestTTS_VoiceFromRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.do(http.MethodPost, "/api/tts", `{"text":"Namaste.","speaker":"meera","target_language_code":"hi-IN"}`)

	v := f.tts.SynthesizeCalls[0].Voice
	if v.ID != "meera" || v.Language != "hi-IN" {
		t.Errorf("voice = %+v, want meera/hi-IN", v)
	}
}

func TestTTS_JSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tts", `{"text":"Hello."}`, "Accept", "application/json")
	body := decode[tts.Envelope](t, rec)
	if len(body.Audios) != 1 {
		t.Fatalf("audios = %v, want one entry", body.Audios)
	}
	data, err := base64.StdEncoding.DecodeString(body.Audios[0])
	if err != nil || string(data) != "Hello." {
		t.Errorf("audio = %q (%v), want Hello.", data, err)
	}
}

func TestTTS_URLClip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tts.Clip = &types.AudioClip{URL: "https://cdn.example/clip.mp3"}

	rec := f.do(http.MethodPost, "/api/tts", `{"text":"Hello."}`)
	body := decode[tts.Envelope](t, rec)
	if body.AudioURL != "https://cdn.example/clip.mp3" {
		t.Errorf("audioUrl = %q", body.AudioURL)
	}
}

func TestTTS_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		body     string
		setup    func(*fixture)
		mutate   func(*Config)
		wantCode int
	}{
		{name: "empty text", body: `{"text":"  "}`, wantCode: http.StatusBadRequest},
		{
			name:     "synthesis failure",
			body:     `{"text":"Hello."}`,
			setup:    func(f *fixture) { f.tts.SynthesizeErr = errors.New("quota exceeded") },
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "empty clip",
			body:     `{"text":"Hello."}`,
			setup:    func(f *fixture) { f.tts.Clip = &types.AudioClip{} },
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "not configured",
			body:     `{"text":"Hello."}`,
			mutate:   func(c *Config) { c.TTS = nil },
			wantCode: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var f *fixture
			if tt.mutate != nil {
				f = newFixture(t, tt.mutate)
			} else {
				f = newFixture(t)
			}
			if tt.setup != nil {
				tt.setup(f)
			}
			rec := f.do(http.MethodPost, "/api/tts", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestTTS_DoesNotChargePerChunk(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gate.SetLimit(1)

	for _, text := range []string{"One.", "Two.", "Three."} {
		if rec := f.do(http.MethodPost, "/api/tts", `{"text":"`+text+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", text, rec.Code)
		}
	}
	if got := f.tts.Texts(); len(got) != 3 {
		t.Errorf("synthesized = %q, want all three chunks", got)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stt.Result = types.Transcript{Text: "read this aloud", Language: "en"}

	rec := f.do(http.MethodPost, "/api/transcribe?language=en-IN", "RIFF....", "Content-Type", "audio/wav")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[transcribeResponse](t, rec)
	if !body.Success || body.Text != "read this aloud" || body.Language != "en" {
		t.Errorf("body = %+v", body)
	}
	call := f.stt.TranscribeCalls[0]
	if string(call.Audio.Data) != "RIFF...." || call.Audio.MIMEType != "audio/wav" || call.Audio.Language != "en-IN" {
		t.Errorf("audio = %+v", call.Audio)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()
	t.Run("empty audio", func(t *testing.T) {
		f := newFixture(t)
		f.stt.Err = stt.ErrEmptyAudio
		if rec := f.do(http.MethodPost, "/api/transcribe", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
	t.Run("backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.stt.Err = errors.New("whisper crashed")
		rec := f.do(http.MethodPost, "/api/transcribe", "RIFF")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "whisper crashed") {
			t.Error("backend error leaked to the client")
		}
	})
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.STT = nil })
		if rec := f.do(http.MethodPost, "/api/transcribe", "RIFF"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}
