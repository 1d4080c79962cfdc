// Package api serves Claire's JSON HTTP API: content generation, speech
// synthesis, transcription, the support chat, usage counters, reading
// history and therapist referrals.
//
// Identity is trusted from headers set by the upstream identity provider:
// X-User-ID marks an authenticated reader, X-Client-ID (or the remote IP)
// identifies an anonymous one for the usage gate.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrWong99/claire/internal/gateway"
	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/support"
	"github.com/MrWong99/claire/internal/usage"
	"github.com/MrWong99/claire/pkg/history"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
)

// Request headers carrying the caller's identity.
const (
	HeaderUserID   = "X-User-ID"
	HeaderClientID = "X-Client-ID"
)

// Body size limits.
const (
	maxJSONBytes  = 1 << 20
	maxAudioBytes = 25 << 20
)

// Config holds the dependencies of a [Server]. Nil providers disable the
// endpoints that need them; those answer 503.
type Config struct {
	Gateway   *gateway.Gateway
	Companion *support.Companion
	TTS       tts.Provider
	STT       stt.Provider
	Gate      *usage.Gate
	History   history.Store
	Metrics   *observe.Metrics

	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string

	// DefaultVoice and DefaultLanguage apply to /api/tts requests that name
	// no speaker or language.
	DefaultVoice    string
	DefaultLanguage string
}

// Server routes and serves the API. It is safe for concurrent use.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "anushka"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-IN"
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/content", s.handleContent)
	s.mux.HandleFunc("POST /api/tts", s.handleTTS)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("GET /api/usage/{feature}", s.handleUsageStatus)
	s.mux.HandleFunc("POST /api/usage/{feature}", s.handleUsageCharge)
	s.mux.HandleFunc("GET /api/history", s.withUser(s.handleHistoryCounts))
	s.mux.HandleFunc("GET /api/history/{kind}", s.withUser(s.handleHistoryList))
	s.mux.HandleFunc("POST /api/history/summaries", s.withUser(s.handleSaveSummary))
	s.mux.HandleFunc("POST /api/history/quiz-attempts", s.withUser(s.handleSaveQuizAttempt))
	s.mux.HandleFunc("POST /api/history/canvas", s.withUser(s.handleSaveCanvas))
	s.mux.HandleFunc("POST /api/referrals", s.handleReferral)
	return s
}

// Handle mounts an extra handler, e.g. health probes, /metrics or /mcp.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Mux exposes the underlying mux for packages that register themselves,
// such as health.Handler.Register.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// ServeHTTP applies CORS and dispatches to the routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := s.cfg.CORSOrigin; origin != "" {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+HeaderUserID+", "+HeaderClientID+", "+observe.HeaderCorrelationID)
		h.Set("Access-Control-Expose-Headers", observe.HeaderCorrelationID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// Handler returns the API wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	if s.cfg.Metrics == nil {
		return s
	}
	return observe.Middleware(s.cfg.Metrics)(s)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// identity extracts the caller as seen by the usage gate.
func identity(r *http.Request) usage.Identity {
	id := usage.Identity{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID))}
	id.Subject = strings.TrimSpace(r.Header.Get(HeaderClientID))
	if id.Subject == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		id.Subject = host
	}
	return id
}

// charge runs the usage gate for f. It writes a 429 and returns false when
// the caller is over the limit. A store failure lets the request through.
func (s *Server) charge(w http.ResponseWriter, r *http.Request, f usage.Feature) bool {
	if s.cfg.Gate == nil {
		return true
	}
	d, err := s.cfg.Gate.Check(r.Context(), identity(r), f)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: usage gate degraded", "feature", f, "err", err)
	}
	if !d.Allowed {
		writeJSON(w, http.StatusTooManyRequests, limitResponse{
			errorResponse: errorResponse{Error: "free usage limit reached; sign in to continue"},
			Usage:         d,
		})
		return false
	}
	return true
}

type limitResponse struct {
	errorResponse
	Usage usage.Decision `json:"usage"`
}
