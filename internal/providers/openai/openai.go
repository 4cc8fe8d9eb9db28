// Package openai implements the suggestion collaborator on top of any
// OpenAI compatible chat completion endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"
)

// SystemPrompt is sent ahead of every rendered request.
const SystemPrompt = "You are a senior C++ engineer who reviews game development code. " +
	"You answer with one fenced cpp code block followed by a short explanation of the changes."

// Options configures the provider.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	// Prompt is the user message template. Empty uses suggest.DefaultPrompt.
	Prompt string
	Vars   map[string]any
}

// Provider asks a chat model for an improved snippet.
type Provider struct {
	client *goopenai.Client
	opts   Options
	log    zerolog.Logger
}

// New creates a provider for the endpoint described by opts.
func New(opts Options, log zerolog.Logger) *Provider {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		opts:   opts,
		log:    log,
	}
}

// Suggest renders the request, calls the model and extracts the first
// fenced code block of the reply.
func (p *Provider) Suggest(ctx context.Context, c suggest.Context) (suggest.Suggestion, error) {
	prompt := p.opts.Prompt
	if prompt == "" {
		prompt = suggest.DefaultPrompt
	}
	content, err := c.Render(prompt, p.opts.Vars)
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("render prompt: %w", err)
	}

	req := goopenai.ChatCompletionRequest{
		Model: p.opts.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: content},
		},
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	}

	p.log.Debug().Ctx(ctx).
		Str("model", p.opts.Model).
		Int("prompt_bytes", len(content)).
		Bool("complete", c.Complete).
		Msg("requesting suggestion")

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return suggest.Suggestion{}, classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return suggest.Suggestion{}, fmt.Errorf("%w: no choices", suggest.ErrMalformed)
	}

	choice := resp.Choices[0]
	p.log.Debug().Ctx(ctx).
		Str("finish_reason", string(choice.FinishReason)).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("suggestion received")

	if choice.Message.Refusal != "" {
		return suggest.Suggestion{}, fmt.Errorf("%w: %s", suggest.ErrRefused, choice.Message.Refusal)
	}
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return suggest.Suggestion{}, fmt.Errorf("%w: content filtered", suggest.ErrRefused)
	}

	s, err := suggest.ParseReply(choice.Message.Content)
	if err != nil {
		if choice.FinishReason == goopenai.FinishReasonLength {
			return suggest.Suggestion{}, fmt.Errorf("%w: reply truncated at max tokens", err)
		}
		return suggest.Suggestion{}, fmt.Errorf("%w: no fenced code block in reply", err)
	}
	return s, nil
}

// classify wraps transport and API errors with the collaborator sentinels.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", suggest.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %w", suggest.ErrTimeout, err)
		case http.StatusForbidden, http.StatusUnavailableForLegalReasons:
			return fmt.Errorf("%w: %w", suggest.ErrRefused, err)
		}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %w", suggest.ErrTimeout, err)
		}
	}

	return fmt.Errorf("chat completion: %w", err)
}
