package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/MrWong99/claire/internal/gateway"
	"github.com/MrWong99/claire/internal/textkit"
	"github.com/MrWong99/claire/internal/usage"
	"github.com/MrWong99/claire/pkg/provider/llm"
)

const quizJSON = `{"questions":[
{"question":"What do cats like?","options":["naps","rain","math","noise"],"answer":0},
{"question":"Where do cats sleep?","options":["sun","sea","sky","snow"],"answer":0},
{"question":"How do cats feel?","options":["sad","calm","loud","cold"],"answer":1}
]}`

func TestContent_Summary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/content", `{"text":"Cats like naps in the sun.","type":"summary"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[contentResponse](t, rec)
	if !body.Success || body.Summary != "Cats like naps." || body.Model != "llama-test" || body.Type != "summary" {
		t.Errorf("body = %+v", body)
	}
	if body.Fallback != nil {
		t.Errorf("Fallback = %+v, want nil", body.Fallback)
	}
}

func TestContent_Quiz(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: quizJSON}

	rec := f.do(http.MethodPost, "/api/content", `{"text":"Cats like naps in the sun.","type":"quiz"}`)
	body := decode[contentResponse](t, rec)
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, body = %+v", rec.Code, body)
	}
	if len(body.Questions) != 3 || body.Questions[1].Options[0] != "sun" {
		t.Errorf("questions = %+v", body.Questions)
	}
	if body.Summary != "" {
		t.Errorf("summary = %q, want empty for quiz", body.Summary)
	}
}

func TestContent_DegradesToFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.CompleteErr = errors.New("upstream 503")

	rec := f.do(http.MethodPost, "/api/content", `{"text":"Cats like naps. Dogs like walks.","type":"summary"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[contentResponse](t, rec)
	if body.Success {
		t.Error("Success = true for a degraded result")
	}
	if body.Error != gateway.ReasonTransport {
		t.Errorf("Error = %q, want %q", body.Error, gateway.ReasonTransport)
	}
	if body.Fallback == nil || body.Fallback.Summary == "" {
		t.Errorf("Fallback = %+v, want a summary", body.Fallback)
	}
}

func TestContent_NotConfiguredFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.Gateway = gateway.New(nil) })

	rec := f.do(http.MethodPost, "/api/content", `{"text":"Cats like naps.","type":"quiz"}`)
	body := decode[contentResponse](t, rec)
	if rec.Code != http.StatusOK || body.Success {
		t.Fatalf("status = %d, body = %+v", rec.Code, body)
	}
	if body.Error != gateway.ReasonNotConfigured {
		t.Errorf("Error = %q, want %q", body.Error, gateway.ReasonNotConfigured)
	}
	if body.Fallback == nil || len(body.Fallback.Questions) == 0 {
		t.Errorf("Fallback = %+v, want questions", body.Fallback)
	}
}

func TestContent_BadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		body        string
		wantError   string
		wantSummary string
	}{
		{"empty text", `{"text":"   ","type":"summary"}`, gateway.ReasonEmptyInput, textkit.NoSummary},
		{"unknown type", `{"text":"Cats like naps.","type":"poem"}`, gateway.ReasonUnknownType, textkit.FallbackSummary("Cats like naps.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			rec := f.do(http.MethodPost, "/api/content", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decode[contentResponse](t, rec)
			if body.Success || body.Error != tt.wantError {
				t.Errorf("body = %+v, want error %q", body, tt.wantError)
			}
			if body.Fallback == nil || body.Fallback.Summary != tt.wantSummary {
				t.Errorf("Fallback = %+v, want summary %q", body.Fallback, tt.wantSummary)
			}
			if n := f.llm.CallCount(); n != 0 {
				t.Errorf("LLM calls = %d, want 0", n)
			}
			for _, feat := range []usage.Feature{usage.FeatureSummary, usage.FeatureQuiz} {
				if n, _ := f.gate.Count(context.Background(), "192.0.2.1", feat); n != 0 {
					t.Errorf("%s count = %d, want 0 (bad input is not charged)", feat, n)
				}
			}
		})
	}
}

func TestContent_Quota(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gate.SetLimit(2)
	req := `{"text":"Cats like naps.","type":"summary"}`

	for i := range 2 {
		if rec := f.do(http.MethodPost, "/api/content", req, HeaderClientID, "c1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := f.do(http.MethodPost, "/api/content", req, HeaderClientID, "c1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := decode[limitResponse](t, rec)
	if !body.Usage.Reached || body.Usage.Remaining != 0 || body.Usage.Feature != usage.FeatureSummary {
		t.Errorf("usage = %+v", body.Usage)
	}
	if n := f.llm.CallCount(); n != 2 {
		t.Errorf("LLM calls = %d, want 2 (the denied request must not reach the model)", n)
	}

	// Quiz has its own counter; other clients and signed-in users are unaffected.
	if rec := f.do(http.MethodPost, "/api/content", `{"text":"Cats like naps.","type":"quiz"}`, HeaderClientID, "c1"); rec.Code == http.StatusTooManyRequests {
		t.Error("quiz denied although only summary reached the limit")
	}
	if rec := f.do(http.MethodPost, "/api/content", req, HeaderClientID, "c2"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/content", req, HeaderClientID, "c1", HeaderUserID, "u1"); rec.Code != http.StatusOK {
		t.Errorf("signed-in status = %d, want 200", rec.Code)
	}
}
