package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
	"github.com/MrWong99/claire/pkg/provider/tts/remote"
	"github.com/MrWong99/claire/pkg/types"
)

// handleTTS serves POST /api/tts. Inline audio is returned as binary unless
// the client asks for JSON only; hosted audio is always {audioUrl}.
//
// One read-aloud spans many chunk requests, so this handler does not charge
// the tts quota. Clients charge once per session via POST /api/usage/tts.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req remote.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.cfg.TTS == nil {
		writeError(w, http.StatusServiceUnavailable, "speech service is not configured")
		return
	}

	voice := types.VoiceProfile{ID: req.Speaker, Language: req.TargetLanguageCode}
	if voice.ID == "" {
		voice.ID = s.cfg.DefaultVoice
	}
	if voice.Language == "" {
		voice.Language = s.cfg.DefaultLanguage
	}

	clip, err := s.cfg.TTS.Synthesize(r.Context(), text, voice)
	if err == nil && clip.IsEmpty() {
		err = tts.ErrEmptyAudio
	}
	if err != nil {
		observe.Logger(r.Context()).Error("api: synthesize", "voice", voice.ID, "err", err)
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	if len(clip.Data) == 0 || wantsJSON(r) {
		writeJSON(w, http.StatusOK, tts.EnvelopeFor(clip))
		return
	}
	mimeType := clip.MIMEType
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Data)
}

// wantsJSON reports whether the client accepts JSON but no audio type.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "audio/")
}

type transcribeResponse struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// handleTranscribe serves POST /api/transcribe. The body is the recording;
// the optional "language" query parameter is passed on as a hint.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.cfg.STT == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription service is not configured")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "audio is too large")
		return
	}

	tr, err := s.cfg.STT.Transcribe(r.Context(), stt.Audio{
		Data:     data,
		MIMEType: r.Header.Get("Content-Type"),
		Language: r.URL.Query().Get("language"),
	})
	switch {
	case errors.Is(err, stt.ErrEmptyAudio):
		writeError(w, http.StatusBadRequest, "audio is required")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("api: transcribe", "err", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Success: true, Text: tr.Text, Language: tr.Language})
}
