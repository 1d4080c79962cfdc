package api

import (
	"errors"
	"net/http"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/support"
	"github.com/MrWong99/claire/pkg/types"
)

type chatRequest struct {
	Message      string          `json:"message"`
	Conversation []types.Message `json:"conversation"`
}

type chatResponse struct {
	Success bool `json:"success"`
	support.Reply
}

// handleChat serves POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.Companion == nil {
		writeError(w, http.StatusServiceUnavailable, support.ErrNotConfigured.Error())
		return
	}

	reply, err := s.cfg.Companion.Reply(r.Context(), req.Message, req.Conversation)
	switch {
	case errors.Is(err, support.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, support.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "AI service is not configured")
	case err != nil:
		observe.Logger(r.Context()).Error("api: support reply", "err", err)
		writeError(w, http.StatusBadGateway, "AI service request failed")
	default:
		writeJSON(w, http.StatusOK, chatResponse{Success: true, Reply: reply})
	}
}
