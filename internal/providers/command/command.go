// Package command implements the suggestion collaborator as an external
// program. The program reads a JSON request on stdin and answers on stdout,
// either with a JSON response or with free text holding a fenced code block.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/pkg/executil"
	"github.com/rs/zerolog"
)

// Request is written to the program's stdin.
type Request struct {
	Goal     string             `json:"goal"`
	Prompt   string             `json:"prompt"`
	Code     string             `json:"code"`
	Complete bool               `json:"complete"`
	Omitted  int                `json:"omitted"`
	Findings []analysis.Finding `json:"findings"`
	Vars     map[string]any     `json:"vars,omitempty"`
}

// Response is the structured answer a program may print.
type Response struct {
	Code      string `json:"code"`
	Rationale string `json:"rationale"`
	Refusal   string `json:"refusal"`
}

// Options configures the provider.
type Options struct {
	// Command is the program and its arguments.
	Command []string
	// Prompt is rendered into Request.Prompt. Empty uses suggest.DefaultPrompt.
	Prompt string
	Vars   map[string]any
}

// Provider runs an external program per suggestion.
type Provider struct {
	exec executil.Executor
	opts Options
	log  zerolog.Logger
}

// New creates a provider. opts.Command must not be empty.
func New(exec executil.Executor, opts Options, log zerolog.Logger) (*Provider, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("command provider: no command configured")
	}
	return &Provider{exec: exec, opts: opts, log: log}, nil
}

// Suggest runs the program with the encoded request.
func (p *Provider) Suggest(ctx context.Context, c suggest.Context) (suggest.Suggestion, error) {
	tmpl := p.opts.Prompt
	if tmpl == "" {
		tmpl = suggest.DefaultPrompt
	}
	prompt, err := c.Render(tmpl, p.opts.Vars)
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("render prompt: %w", err)
	}

	payload, err := json.Marshal(Request{
		Goal:     c.Goal,
		Prompt:   prompt,
		Code:     c.Code(),
		Complete: c.Complete,
		Omitted:  c.Omitted(),
		Findings: c.Findings,
		Vars:     p.opts.Vars,
	})
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("encode request: %w", err)
	}

	name, args := p.opts.Command[0], p.opts.Command[1:]
	p.log.Debug().Ctx(ctx).Str("command", name).Int("request_bytes", len(payload)).Msg("running suggestion command")

	out, err := p.exec.RunInput(ctx, bytes.NewReader(payload), name, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return suggest.Suggestion{}, fmt.Errorf("%w: %w", suggest.ErrTimeout, err)
			}
			return suggest.Suggestion{}, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return suggest.Suggestion{}, err
	}

	return parse(out)
}

// parse accepts a JSON Response or a free-form reply.
func parse(out []byte) (suggest.Suggestion, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return suggest.Suggestion{}, fmt.Errorf("%w: empty output", suggest.ErrMalformed)
	}

	if trimmed[0] == '{' {
		var resp Response
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return suggest.Suggestion{}, fmt.Errorf("%w: decode response: %w", suggest.ErrMalformed, err)
		}
		if resp.Refusal != "" {
			return suggest.Suggestion{}, fmt.Errorf("%w: %s", suggest.ErrRefused, resp.Refusal)
		}
		if strings.TrimSpace(resp.Code) == "" {
			return suggest.Suggestion{}, fmt.Errorf("%w: response has no code", suggest.ErrMalformed)
		}
		code := resp.Code
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		return suggest.Suggestion{Text: code, Rationale: strings.TrimSpace(resp.Rationale)}, nil
	}

	s, err := suggest.ParseReply(string(out))
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("%w: no fenced code block in output", err)
	}
	return s, nil
}
