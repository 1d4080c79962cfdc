package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/claire/pkg/types"
)

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestSynthesize_DefaultsAndDecoding(t *testing.T) {
	wav := []byte("RIFF-fake-wav")
	var got synthRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-subscription-key") != "sk_test" {
			t.Errorf("api-subscription-key = %q", r.Header.Get("api-subscription-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "r1",
			"audios":     []string{base64.StdEncoding.EncodeToString(wav)},
		})
	}))
	defer srv.Close()

	p, err := New("sk_test", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := p.Synthesize(context.Background(), "Hello there.", types.VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(clip.Data, wav) || clip.MIMEType != "audio/wav" {
		t.Errorf("clip = %+v", clip)
	}
	if got.Speaker != DefaultSpeaker || got.TargetLanguageCode != DefaultLanguage {
		t.Errorf("request = %+v, want default speaker and language", got)
	}
	if got.Text != "Hello there." {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestSynthesize_PassesVoiceThrough(t *testing.T) {
	var got synthRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	p, _ := New("k", WithEndpoint(srv.URL), WithModel("bulbul:v2"))
	if _, err := p.Synthesize(context.Background(), "Hi.", types.VoiceProfile{ID: "karun", Language: "hi-IN"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got.Speaker != "karun" || got.TargetLanguageCode != "hi-IN" || got.Model != "bulbul:v2" {
		t.Errorf("request = %+v", got)
	}
}

func TestSynthesize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New("k", WithEndpoint(srv.URL))
	if _, err := p.Synthesize(context.Background(), "Hi.", types.VoiceProfile{}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("k")
	if _, err := p.Synthesize(context.Background(), "", types.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	p, _ := New("k")
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	found := false
	for _, v := range voices {
		if v.ID == DefaultSpeaker {
			found = true
		}
		if v.Provider != "sarvam" {
			t.Errorf("Provider = %q, want sarvam", v.Provider)
		}
	}
	if !found {
		t.Errorf("default speaker %q not listed", DefaultSpeaker)
	}
}
