package api

import (
	"net/http"

	"github.com/MrWong99/claire/internal/gateway"
	"github.com/MrWong99/claire/internal/textkit"
	"github.com/MrWong99/claire/internal/usage"
)

type contentRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// contentBody carries either a summary or a question list.
type contentBody struct {
	Summary   string                 `json:"summary,omitempty"`
	Questions []textkit.QuizQuestion `json:"questions,omitempty"`
}

type contentResponse struct {
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	contentBody
	Model    string       `json:"model,omitempty"`
	Error    string       `json:"error,omitempty"`
	Fallback *contentBody `json:"fallback,omitempty"`
}

func bodyOf(res gateway.Result) contentBody {
	if res.Type == gateway.TypeQuiz && res.Questions != nil {
		return contentBody{Questions: res.Questions}
	}
	return contentBody{Summary: res.Summary}
}

// handleContent serves POST /api/content. Generation failures degrade to a
// local fallback and still answer 200; only bad input is a 400.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.Gateway == nil {
		writeError(w, http.StatusServiceUnavailable, gateway.ReasonNotConfigured)
		return
	}

	t := gateway.ContentType(req.Type)
	// Bad input is answered before the caller is charged.
	if !t.Valid() || textkit.Normalize(req.Text, 0) == "" {
		res, _ := s.cfg.Gateway.Generate(r.Context(), req.Text, t)
		badContent(w, res)
		return
	}

	if !s.charge(w, r, featureFor(t)) {
		return
	}

	res, err := s.cfg.Gateway.Generate(r.Context(), req.Text, t)
	if err != nil {
		badContent(w, res)
		return
	}
	if res.Degraded() {
		fb := bodyOf(res)
		writeJSON(w, http.StatusOK, contentResponse{Type: string(t), Error: res.Reason, Fallback: &fb})
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{
		Success:     true,
		Type:        string(t),
		contentBody: bodyOf(res),
		Model:       res.Model,
	})
}

func badContent(w http.ResponseWriter, res gateway.Result) {
	fb := contentBody{Summary: res.Summary}
	writeJSON(w, http.StatusBadRequest, contentResponse{Error: res.Reason, Fallback: &fb})
}

func featureFor(t gateway.ContentType) usage.Feature {
	if t == gateway.TypeQuiz {
		return usage.FeatureQuiz
	}
	return usage.FeatureSummary
}
