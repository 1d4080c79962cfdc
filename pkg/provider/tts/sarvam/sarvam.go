// Package sarvam provides a TTS provider backed by the Sarvam AI
// text-to-speech REST API. It implements the tts.Provider interface.
//
// Sarvam answers with a JSON envelope carrying base64 WAV audio
// ({"audios": ["..."]}); responses are decoded with [tts.DecodeResponse], so
// URL and raw binary answers are handled too.
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

const (
	// DefaultEndpoint is the Sarvam AI text-to-speech endpoint.
	DefaultEndpoint = "https://api.sarvam.ai/text-to-speech"

	// DefaultSpeaker is used when the voice profile carries no ID.
	DefaultSpeaker = "anushka"

	// DefaultLanguage is used when the voice profile carries no language tag.
	DefaultLanguage = "en-IN"

	defaultTimeout = 30 * time.Second
)

// speakers is the bulbul:v2 speaker catalogue.
var speakers = []string{"anushka", "manisha", "vidya", "arya", "abhilash", "karun", "hitesh"}

// Option is a functional option for configuring the Sarvam Provider.
type Option func(*Provider)

// WithEndpoint overrides the synthesis endpoint URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithModel sets the Sarvam model (e.g. "bulbul:v2"). Empty uses the API default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// Provider implements tts.Provider backed by Sarvam AI.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// New creates a new Sarvam Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type synthRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
	Model              string `json:"model,omitempty"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	if text == "" {
		return nil, errors.New("sarvam: text must not be empty")
	}

	body, err := json.Marshal(synthRequest{
		Text:               text,
		TargetLanguageCode: orDefault(voice.Language, DefaultLanguage),
		Speaker:            orDefault(voice.ID, DefaultSpeaker),
		Model:              p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("sarvam: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sarvam: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sarvam: POST %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	clip, err := tts.DecodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("sarvam: %w", err)
	}
	return clip, nil
}

// ListVoices implements tts.Provider. Sarvam has no catalogue endpoint, so
// the documented speaker list is returned.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	out := make([]types.VoiceProfile, 0, len(speakers))
	for _, s := range speakers {
		out = append(out, types.VoiceProfile{ID: s, Name: s, Provider: "sarvam", Language: DefaultLanguage})
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var _ tts.Provider = (*Provider)(nil)
