package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/claire/pkg/provider/stt"
)

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("language"); got != "hi" {
			t.Errorf("language = %q, want hi", got)
		}
		if got := r.FormValue("model"); got != "small" {
			t.Errorf("model = %q, want small", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		if hdr.Filename != "audio.webm" {
			t.Errorf("filename = %q, want audio.webm", hdr.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "rec" {
			t.Errorf("file = %q, want rec", data)
		}
		_, _ = w.Write([]byte(`{"text":"  namaste duniya \n","language":"hi","duration":1.5}`))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithModel("small"))
	got, err := p.Transcribe(context.Background(), stt.Audio{Data: []byte("rec"), MIMEType: "audio/webm;codecs=opus", Language: "hi-IN"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "namaste duniya" {
		t.Errorf("Text = %q, want trimmed text", got.Text)
	}
	if got.Language != "hi" {
		t.Errorf("Language = %q, want hi", got.Language)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}
}

func TestTranscribe_DefaultsLanguageToAuto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("language"); got != "auto" {
			t.Errorf("language = %q, want auto", got)
		}
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	got, err := p.Transcribe(context.Background(), stt.Audio{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Language != "" {
		t.Errorf("Language = %q, want empty for auto detection", got.Language)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	p, _ := New("http://unused")
	if _, err := p.Transcribe(context.Background(), stt.Audio{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	p, _ = New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Audio{Data: []byte("x")}); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"":                    ".wav",
		"audio/wav":           ".wav",
		"audio/ogg":           ".ogg",
		"audio/mpeg":          ".mp3",
		"audio/webm;codecs=x": ".webm",
	}
	for in, want := range tests {
		if got := extensionFor(in); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}
