package tts

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrWong99/claire/pkg/types"
)

// MaxResponseBytes caps how much of a synthesis response body is read.
const MaxResponseBytes = 32 << 20

// ErrEmptyAudio is returned when a synthesis response is well formed but
// carries no audio.
var ErrEmptyAudio = errors.New("tts: response contains no audio")

// Envelope is the JSON shape shared by Sarvam AI and Claire's /api/tts
// endpoint. Either Audios or AudioURL is populated.
type Envelope struct {
	Audios   []string `json:"audios,omitempty"`
	AudioURL string   `json:"audioUrl,omitempty"`
}

// DecodeResponse turns a successful synthesis HTTP response into a clip.
// It branches on the Content-Type header:
//
//   - application/json with "audios": the first entry is base64 WAV audio.
//   - application/json with "audioUrl": the clip points at the remote file.
//   - audio/*: the body is the encoded audio itself.
//
// Non-2xx responses are reported as errors including a snippet of the body.
// The caller still owns resp.Body and must close it.
func DecodeResponse(resp *http.Response) (*types.AudioClip, error) {
	body := io.LimitReader(resp.Body, MaxResponseBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, fmt.Errorf("tts: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("tts: parse content type %q: %w", resp.Header.Get("Content-Type"), err)
	}

	switch {
	case mediaType == "application/json":
		var env Envelope
		if err := json.NewDecoder(body).Decode(&env); err != nil {
			return nil, fmt.Errorf("tts: decode json: %w", err)
		}
		return env.Clip()

	case strings.HasPrefix(mediaType, "audio/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("tts: read audio: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyAudio
		}
		return &types.AudioClip{Data: data, MIMEType: mediaType}, nil

	default:
		return nil, fmt.Errorf("tts: unsupported content type %q", mediaType)
	}
}

// Clip converts the envelope into a clip, preferring inline audio over a URL.
func (e Envelope) Clip() (*types.AudioClip, error) {
	if len(e.Audios) > 0 && e.Audios[0] != "" {
		data, err := base64.StdEncoding.DecodeString(e.Audios[0])
		if err != nil {
			return nil, fmt.Errorf("tts: decode base64 audio: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyAudio
		}
		return &types.AudioClip{Data: data, MIMEType: "audio/wav"}, nil
	}
	if e.AudioURL != "" {
		return &types.AudioClip{URL: e.AudioURL}, nil
	}
	return nil, ErrEmptyAudio
}

// EnvelopeFor builds the JSON envelope describing clip.
func EnvelopeFor(clip *types.AudioClip) Envelope {
	if clip.URL != "" && len(clip.Data) == 0 {
		return Envelope{AudioURL: clip.URL}
	}
	return Envelope{Audios: []string{base64.StdEncoding.EncodeToString(clip.Data)}}
}
