// Package remote provides a TTS provider that calls a Claire server's speech
// synthesis endpoint (POST /api/tts). The CLI uses it so that API keys stay on
// the server.
package remote

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

// Option is a functional option for configuring the remote Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// WithHeader adds a static header to every request (e.g. X-User-ID).
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers.Set(key, value)
	}
}

// Provider implements tts.Provider against a Claire /api/tts endpoint.
type Provider struct {
	endpoint   string
	httpClient *http.Client
	headers    http.Header
}

// New creates a Provider posting to endpoint, e.g. "http://localhost:8080/api/tts".
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("remote: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		headers:    http.Header{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Request is the JSON body accepted by the speech synthesis endpoint.
type Request struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code,omitempty"`
	Speaker            string `json:"speaker,omitempty"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	body, err := json.Marshal(Request{
		Text:               text,
		TargetLanguageCode: voice.Language,
		Speaker:            voice.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}
	for k, vs := range p.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*, application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: POST %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	clip, err := tts.DecodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	return clip, nil
}

// ListVoices implements tts.Provider. The endpoint does not expose a
// catalogue, so the list is always empty.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	return nil, nil
}

var _ tts.Provider = (*Provider)(nil)
