// Package elevenlabs synthesises speech through the ElevenLabs stream-input
// WebSocket API.
//
// Each Synthesize call drains one stream into one clip. PCM formats come back
// wrapped in a WAV header and MP3 formats unchanged. Voice IDs are opaque, so
// only profiles tagged "elevenlabs" pick their own voice. Any other profile,
// such as the Sarvam speakers Claire uses by default, gets the configured
// default voice.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/claire/pkg/audio"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/types"
)

const (
	defaultWSBaseURL  = "wss://api.elevenlabs.io"
	defaultAPIBaseURL = "https://api.elevenlabs.io"
	defaultModel      = "eleven_flash_v2_5"
	defaultOutputFmt  = "pcm_16000"

	// providerName tags voice profiles that belong to this provider.
	providerName = "elevenlabs"

	// maxMessageBytes bounds a single WebSocket message (base64 audio chunk).
	maxMessageBytes = 8 << 20
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000", "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithDefaultVoice sets the voice ID used for profiles that do not belong to
// ElevenLabs.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// WithBaseURLs overrides the WebSocket and REST base URLs. Used by tests.
func WithBaseURLs(wsBase, apiBase string) Option {
	return func(p *Provider) {
		p.wsBaseURL = strings.TrimRight(wsBase, "/")
		p.apiBaseURL = strings.TrimRight(apiBase, "/")
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	wsBaseURL    string
	apiBaseURL   string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		wsBaseURL:    defaultWSBaseURL,
		apiBaseURL:   defaultAPIBaseURL,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// textMessage is the JSON payload sent to ElevenLabs for a text fragment.
type textMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey             string         `json:"xi_api_key,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio in the output format
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize streams text over one WebSocket session and gathers every
// audio frame into a single clip.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*types.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("elevenlabs: nothing to synthesise")
	}
	voiceID := p.voiceFor(voice)
	if voiceID == "" {
		return nil, errors.New("elevenlabs: no voice ID configured")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voiceID, voice.Language), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	if err := p.send(ctx, conn, text); err != nil {
		return nil, err
	}
	data, err := drain(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, tts.ErrEmptyAudio
	}
	return p.clip(data), nil
}

// send writes the session preamble, the text and the end-of-input marker.
// The preamble must be a single space carrying the key and settings.
func (p *Provider) send(ctx context.Context, conn *websocket.Conn, text string) error {
	for _, m := range []textMessage{
		{Text: " ", XiAPIKey: p.apiKey, VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}},
		{Text: text + " ", TryTriggerGeneration: true},
		{Text: ""},
	} {
		if err := wsjson.Write(ctx, conn, m); err != nil {
			return fmt.Errorf("elevenlabs: write: %w", err)
		}
	}
	return nil
}

// drain reads audio frames until the final frame or a normal close.
func drain(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var out bytes.Buffer
	for {
		var frame audioResponse
		err := wsjson.Read(ctx, conn, &frame)
		switch {
		case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
			return out.Bytes(), nil
		case err != nil:
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		case frame.Error != "":
			return nil, fmt.Errorf("elevenlabs: server error: %s", frame.Error)
		}
		if frame.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			out.Write(pcm)
		}
		if frame.IsFinal {
			conn.Close(websocket.StatusNormalClosure, "done")
			return out.Bytes(), nil
		}
	}
}

// clip packages raw stream output according to the output format.
func (p *Provider) clip(data []byte) *types.AudioClip {
	if rate, ok := pcmSampleRate(p.outputFormat); ok {
		return &types.AudioClip{Data: audio.EncodeWAV(data, rate, 1), MIMEType: "audio/wav"}
	}
	return &types.AudioClip{Data: data, MIMEType: "audio/mpeg"}
}

func (p *Provider) voiceFor(voice types.VoiceProfile) string {
	if voice.Provider == providerName && voice.ID != "" {
		return voice.ID
	}
	return p.defaultVoice
}

// streamURL constructs the WebSocket URL for a given voice.
func (p *Provider) streamURL(voiceID, language string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	if lang := primaryLanguage(language); lang != "" {
		q.Set("language_code", lang)
	}
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.wsBaseURL, url.PathEscape(voiceID), q.Encode())
}

// pcmSampleRate parses "pcm_16000" style formats.
func pcmSampleRate(format string) (int, bool) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, false
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// primaryLanguage reduces a BCP-47 tag such as "en-IN" to "en".
func primaryLanguage(tag string) string {
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns the voices visible to the API key. Labels and the
// category end up in the profile metadata.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: status %d", resp.StatusCode)
	}

	var body voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	voices := make([]types.VoiceProfile, len(body.Voices))
	for i, v := range body.Voices {
		meta := maps.Clone(v.Labels)
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		voices[i] = types.VoiceProfile{ID: v.VoiceID, Name: v.Name, Provider: providerName, Metadata: meta}
	}
	return voices, nil
}
