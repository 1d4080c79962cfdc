// Package coqui synthesises speech on a self-hosted Coqui server, the
// offline TTS option for deployments without a hosted speech API.
//
// Two server flavours are spoken. [APIModeStandard] targets the stock
// Coqui TTS server (GET /api/tts, voices from GET /details).
// [APIModeXTTS] targets the XTTS v2 API server (POST /tts_to_audio/,
// voices from GET /studio_speakers). Either way the reply is a complete WAV
// file that is validated and passed on untouched.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/claire/pkg/audio"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

var _ tts.Provider = (*Provider)(nil)

// APIMode selects the server flavour.
type APIMode string

const (
	APIModeStandard APIMode = "standard"
	APIModeXTTS     APIMode = "xtts"
)

const (
	pathSynthStandard = "/api/tts"
	pathDetails       = "/details"
	pathSynthXTTS     = "/tts_to_audio/"
	pathSpeakers      = "/studio_speakers"

	providerName = "coqui"
)

// Provider is a Coqui [tts.Provider]. It is safe for concurrent use.
type Provider struct {
	base    string
	mode    APIMode
	lang    string
	speaker string
	client  *http.Client
}

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage is used for voice profiles without a language. Default "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.lang = lang }
}

// WithTimeout bounds each request. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithAPIMode selects the server flavour. Default [APIModeStandard].
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.mode = mode }
}

// WithDefaultSpeaker names the speaker used when the requested voice is not
// a Coqui voice. XTTS cannot synthesise without one; single-speaker
// standard models need none.
func WithDefaultSpeaker(speaker string) Option {
	return func(p *Provider) { p.speaker = speaker }
}

// New targets the server at baseURL, e.g. "http://localhost:5002".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: server URL is required")
	}
	p := &Provider{
		base:   strings.TrimRight(baseURL, "/"),
		mode:   APIModeStandard,
		lang:   "en",
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// xttsBody is the POST /tts_to_audio/ payload.
type xttsBody struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// details is the GET /details reply. Speakers is empty for single-speaker
// models.
type details struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Synthesize renders text as one WAV clip.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("coqui: nothing to synthesise")
	}
	req, err := p.synthRequest(ctx, text, p.speakerFor(voice), p.langFor(voice))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return nil, err
	}
	hdr, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	if hdr.DataOffset >= len(wav) {
		return nil, tts.ErrEmptyAudio
	}
	return &types.AudioClip{Data: wav, MIMEType: "audio/wav"}, nil
}

func (p *Provider) synthRequest(ctx context.Context, text, speaker, lang string) (*http.Request, error) {
	if p.mode != APIModeXTTS {
		q := url.Values{"text": {text}}
		if speaker != "" {
			q.Set("speaker_id", speaker)
		}
		if lang != "" {
			q.Set("language_id", lang)
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, p.base+pathSynthStandard+"?"+q.Encode(), nil)
	}

	if speaker == "" {
		return nil, errors.New("coqui: xtts needs a speaker; set a default speaker or pick a coqui voice")
	}
	body, err := json.Marshal(xttsBody{Text: text, SpeakerWav: speaker, Language: lang})
	if err != nil {
		return nil, fmt.Errorf("coqui: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+pathSynthXTTS, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and returns the body of a 200 reply, capped at
// [tts.MaxResponseBytes].
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, tts.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s: %w", req.URL.Path, err)
	}
	return data, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	data, err := p.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("coqui: decode %s: %w", path, err)
	}
	return nil
}

func (p *Provider) speakerFor(voice types.VoiceProfile) string {
	if voice.Provider == providerName && voice.ID != "" {
		return voice.ID
	}
	return p.speaker
}

// langFor keeps the primary subtag of the voice's BCP-47 tag, which is what
// Coqui models are keyed by.
func (p *Provider) langFor(voice types.VoiceProfile) string {
	if primary, _, _ := strings.Cut(voice.Language, "-"); primary != "" {
		return strings.ToLower(primary)
	}
	return p.lang
}

// ListVoices returns the studio speakers in XTTS mode, sorted by name. In
// standard mode it returns one voice per speaker of a multi-speaker model,
// or a single unnamed voice for a single-speaker model.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	if p.mode == APIModeXTTS {
		var speakers map[string]json.RawMessage
		if err := p.getJSON(ctx, pathSpeakers, &speakers); err != nil {
			return nil, err
		}
		var voices []types.VoiceProfile
		for _, name := range slices.Sorted(maps.Keys(speakers)) {
			voices = append(voices, types.VoiceProfile{
				ID: name, Name: name, Provider: providerName,
				Metadata: map[string]string{"type": "studio"},
			})
		}
		return voices, nil
	}

	var d details
	if err := p.getJSON(ctx, pathDetails, &d); err != nil {
		return nil, err
	}
	meta := map[string]string{"model": d.ModelName}
	if len(d.Speakers) == 0 {
		return []types.VoiceProfile{{Name: d.ModelName, Provider: providerName, Language: d.Language, Metadata: meta}}, nil
	}
	voices := make([]types.VoiceProfile, 0, len(d.Speakers))
	for _, s := range d.Speakers {
		voices = append(voices, types.VoiceProfile{ID: s, Name: s, Provider: providerName, Language: d.Language, Metadata: meta})
	}
	return voices, nil
}
