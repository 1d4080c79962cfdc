package tts

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/claire/pkg/types"
)

func response(status int, contentType string, body []byte) *http.Response {
	rec := httptest.NewRecorder()
	if contentType != "" {
		rec.Header().Set("Content-Type", contentType)
	}
	rec.WriteHeader(status)
	_, _ = rec.Write(body)
	return rec.Result()
}

func TestDecodeResponse_JSONAudios(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt ")
	body := []byte(`{"audios":["` + base64.StdEncoding.EncodeToString(wav) + `"]}`)

	clip, err := DecodeResponse(response(http.StatusOK, "application/json; charset=utf-8", body))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !bytes.Equal(clip.Data, wav) {
		t.Errorf("Data = %q, want %q", clip.Data, wav)
	}
	if clip.MIMEType != "audio/wav" {
		t.Errorf("MIMEType = %q, want audio/wav", clip.MIMEType)
	}
}

func TestDecodeResponse_JSONAudioURL(t *testing.T) {
	body := []byte(`{"audioUrl":"https://cdn.example.com/a.mp3"}`)
	clip, err := DecodeResponse(response(http.StatusOK, "application/json", body))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if clip.URL != "https://cdn.example.com/a.mp3" {
		t.Errorf("URL = %q", clip.URL)
	}
	if len(clip.Data) != 0 {
		t.Errorf("Data = %d bytes, want none", len(clip.Data))
	}
}

func TestDecodeResponse_Binary(t *testing.T) {
	mp3 := []byte{0xFF, 0xFB, 0x90, 0x00}
	clip, err := DecodeResponse(response(http.StatusOK, "audio/mpeg", mp3))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !bytes.Equal(clip.Data, mp3) || clip.MIMEType != "audio/mpeg" {
		t.Errorf("clip = %+v", clip)
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
	}{
		{"non-2xx", http.StatusBadGateway, "application/json", `{"error":"upstream"}`},
		{"empty json", http.StatusOK, "application/json", `{}`},
		{"bad base64", http.StatusOK, "application/json", `{"audios":["***"]}`},
		{"malformed json", http.StatusOK, "application/json", `{"audios":`},
		{"empty binary", http.StatusOK, "audio/wav", ``},
		{"text/html", http.StatusOK, "text/html", `<html></html>`},
		{"missing content type", http.StatusOK, "", `abc`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeResponse(response(tc.status, tc.contentType, []byte(tc.body))); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := Envelope{Audios: []string{""}}
	if _, err := env.Clip(); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Clip() err = %v, want ErrEmptyAudio", err)
	}

	urlOnly := EnvelopeFor(&types.AudioClip{URL: "https://x/y.wav"})
	if urlOnly.AudioURL != "https://x/y.wav" || len(urlOnly.Audios) != 0 {
		t.Errorf("EnvelopeFor(url) = %+v", urlOnly)
	}
}
