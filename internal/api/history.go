package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/pkg/history"
)

type userKey struct{}

// withUser rejects requests without X-User-ID and puts the user ID into the
// request context.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		if !id.Authenticated() {
			writeError(w, http.StatusUnauthorized, "sign in to use history")
			return
		}
		if s.cfg.History == nil {
			writeError(w, http.StatusServiceUnavailable, "history is not configured")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id.UserID)))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// handleHistoryCounts serves GET /api/history.
func (s *Server) handleHistoryCounts(w http.ResponseWriter, r *http.Request) {
	c, err := s.cfg.History.Counts(r.Context(), userID(r))
	if err != nil {
		s.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleHistoryList serves GET /api/history/{kind}.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	kind, err := history.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.historyError(w, r, err)
		return
	}

	ctx, uid := r.Context(), userID(r)
	var list any
	switch kind {
	case history.KindSummaries:
		list, err = s.cfg.History.ListSummaries(ctx, uid)
	case history.KindQuizAttempts:
		list, err = s.cfg.History.ListQuizAttempts(ctx, uid)
	case history.KindCanvas:
		list, err = s.cfg.History.ListCanvas(ctx, uid)
	}
	if err != nil {
		s.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveSummary(w http.ResponseWriter, r *http.Request) {
	var in history.Summary
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID, in.UserID = "", userID(r)
	out, err := s.cfg.History.SaveSummary(r.Context(), in)
	s.saved(w, r, out, err)
}

func (s *Server) handleSaveQuizAttempt(w http.ResponseWriter, r *http.Request) {
	var in history.QuizAttempt
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID, in.UserID = "", userID(r)
	out, err := s.cfg.History.SaveQuizAttempt(r.Context(), in)
	s.saved(w, r, out, err)
}

func (s *Server) handleSaveCanvas(w http.ResponseWriter, r *http.Request) {
	var in history.CanvasEntry
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID, in.UserID = "", userID(r)
	out, err := s.cfg.History.SaveCanvas(r.Context(), in)
	s.saved(w, r, out, err)
}

type referralResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// handleReferral serves POST /api/referrals. Anonymous readers may send
// referrals too.
func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}
	var in history.Referral
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID = ""
	out, err := s.cfg.History.SaveReferral(r.Context(), in)
	if err != nil {
		s.historyError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("api: therapist referral received", "id", out.ID)
	writeJSON(w, http.StatusCreated, referralResponse{Success: true, ID: out.ID})
}

func (s *Server) saved(w http.ResponseWriter, r *http.Request, record any, err error) {
	if err != nil {
		s.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) historyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, history.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		observe.Logger(r.Context()).Error("api: history store", "err", err)
		writeError(w, http.StatusInternalServerError, "history store failed")
	}
}
