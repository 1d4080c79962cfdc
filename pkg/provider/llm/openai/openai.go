// Package openai talks to any OpenAI-compatible chat completions endpoint.
// Claire's default deployment is Groq: pass [WithBaseURL]([GroqBaseURL])
// together with a Groq API key.
package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/types"
)

// GroqBaseURL is Groq's OpenAI-compatible API root.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Provider is an [llm.Provider] for one model behind an OpenAI-style API.
type Provider struct {
	client oai.Client
	model  string
	opts   []option.RequestOption
}

var _ llm.Provider = (*Provider)(nil)

// Option adjusts the SDK client built by [New].
type Option func(*Provider)

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.opts = append(p.opts, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(p *Provider) { p.opts = append(p.opts, option.WithOrganization(org)) }
}

// WithHTTPClient replaces the HTTP client, e.g. with an httptest client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.opts = append(p.opts, option.WithHTTPClient(hc)) }
}

// WithTimeout bounds every request, including reading the reply.
func WithTimeout(d time.Duration) Option {
	return WithHTTPClient(&http.Client{Timeout: d})
}

// New returns a provider for model. The SDK's own retries are disabled:
// failed calls are retried by moving down the fallback chain instead.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if model == "" {
		return nil, errors.New("openai: model is required")
	}
	p := &Provider{
		model: model,
		opts:  []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
	}
	for _, o := range opts {
		o(p)
	}
	p.client = oai.NewClient(p.opts...)
	return p, nil
}

// Complete sends one chat completion. The reported model is the one named
// by the server, or the configured model when the server leaves it out.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %s: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %s returned no choices", p.model)
	}

	out := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   cmp.Or(resp.Model, p.model),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	return out, nil
}

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return oai.ChatCompletionNewParams{}, errors.New("openai: request has no messages")
	}
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for i, m := range req.Messages {
		msg, err := toSDK(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, fmt.Errorf("openai: message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	params := oai.ChatCompletionNewParams{Model: shared.ChatModel(p.model), Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func toSDK(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case types.RoleUser:
		return oai.UserMessage(m.Content), nil
	case types.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	case types.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role %q", m.Role)
}

// limits by model-name prefix, most specific first.
var limits = []struct {
	prefix         string
	window, maxOut int
}{
	{"llama-3.3-70b", 131_072, 32_768},
	{"llama-3.1-8b", 131_072, 131_072},
	{"gpt-4o", 128_000, 16_384},
	{"gpt-4", 8_192, 4_096},
	{"gpt-3.5-turbo", 16_385, 4_096},
}

// Capabilities reports known limits for Groq and OpenAI models, or a
// 128k/4k default.
func (p *Provider) Capabilities() types.ModelCapabilities {
	name := strings.ToLower(p.model)
	for _, l := range limits {
		if strings.HasPrefix(name, l.prefix) {
			return types.ModelCapabilities{ContextWindow: l.window, MaxOutputTokens: l.maxOut}
		}
	}
	return types.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}
