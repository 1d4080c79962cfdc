package api

import (
	"net/http"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/usage"
)

// handleUsageStatus serves GET /api/usage/{feature} without charging.
func (s *Server) handleUsageStatus(w http.ResponseWriter, r *http.Request) {
	f, ok := s.usageFeature(w, r)
	if !ok {
		return
	}
	d, err := s.cfg.Gate.Status(r.Context(), identity(r), f)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: usage status degraded", "feature", f, "err", err)
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUsageCharge serves POST /api/usage/{feature}: it charges one use of a
// client-side tool such as the canvas. Over the limit it answers 429.
func (s *Server) handleUsageCharge(w http.ResponseWriter, r *http.Request) {
	f, ok := s.usageFeature(w, r)
	if !ok {
		return
	}
	d, err := s.cfg.Gate.Check(r.Context(), identity(r), f)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: usage charge degraded", "feature", f, "err", err)
	}
	status := http.StatusOK
	if !d.Allowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, d)
}

func (s *Server) usageFeature(w http.ResponseWriter, r *http.Request) (usage.Feature, bool) {
	if s.cfg.Gate == nil {
		writeError(w, http.StatusServiceUnavailable, "usage tracking is not configured")
		return "", false
	}
	f, err := usage.ParseFeature(r.PathValue("feature"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown feature")
		return "", false
	}
	return f, true
}
