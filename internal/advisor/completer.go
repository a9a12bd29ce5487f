package advisor

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roofing-insights/internal/resilience"
	"github.com/sells-group/roofing-insights/pkg/anthropic"
	"github.com/sells-group/roofing-insights/pkg/openai"
)

// CompletionRequest is a single system+user completion.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
}

// Completion is the raw text answer plus usage.
type Completion struct {
	Provider     string
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
}

// Completer calls an external completion service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// AnthropicCompleter adapts the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCompleter creates a Completer for model.
func NewAnthropicCompleter(client anthropic.Client, model string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	temp := 0.2
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: int64(req.MaxTokens),
		System: []anthropic.SystemBlock{
			{Text: req.System, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, upstreamError(ctx, "anthropic", anthropic.StatusCode(err), err)
	}
	return &Completion{
		Provider:     "anthropic",
		Model:        c.model,
		Text:         resp.Text(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// OpenAICompleter adapts an OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter creates a Completer for model.
func NewOpenAICompleter(client openai.Client, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	resp, err := c.client.CreateChat(ctx, openai.ChatRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		User:        req.User,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return nil, upstreamError(ctx, "openai", openai.StatusCode(err), err)
	}
	return &Completion{
		Provider:     "openai",
		Model:        c.model,
		Text:         resp.Content,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

// upstreamError classifies a client error so the circuit breaker can tell a
// sick provider from a bad request.
func upstreamError(ctx context.Context, provider string, status int, err error) error {
	if status != 0 {
		return &resilience.UpstreamError{Provider: provider, StatusCode: status, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return eris.Wrapf(context.DeadlineExceeded, "%s: completion timed out", provider)
		}
		return ctxErr
	}
	return err
}
