package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content, finish string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		BaseURL:     srv.URL + "/v1",
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   4000,
		Vars:        map[string]any{"standard": "c++20"},
	}, zerolog.Nop())
}

func request() suggest.Context {
	return suggest.NewBuilder(0).Build("int main() { return 0; }\n", nil, "modernize")
}

func TestSuggest_Success(t *testing.T) {
	var got chatRequest
	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("Here you go:\n```cpp\nint main() {}\n```\nRemoved the redundant return.", "stop"))
	})

	s, err := p.Suggest(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "int main() {}\n", s.Text)
	assert.Contains(t, s.Rationale, "Removed the redundant return.")

	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 0.0001)
	assert.Equal(t, 4000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Goal: modernize")
	assert.Contains(t, got.Messages[1].Content, "int main() { return 0; }")
}

func TestSuggest_CustomPromptUsesVars(t *testing.T) {
	var got chatRequest
	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion("```\nint x = 1;\n```", "stop"))
	})
	p.opts.Prompt = "Target {{ .Vars.standard }}: {{ .Goal }}"

	_, err := p.Suggest(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Target c++20: modernize", got.Messages[1].Content)
}

func TestSuggest_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		failure suggest.Failure
	}{
		{
			name:    "reply without code block",
			status:  http.StatusOK,
			body:    completion("I cannot see any problems.", "stop"),
			failure: suggest.FailureMalformed,
		},
		{
			name:    "truncated reply",
			status:  http.StatusOK,
			body:    completion("```cpp\nint x", "length"),
			failure: suggest.FailureMalformed,
		},
		{
			name:    "content filter",
			status:  http.StatusOK,
			body:    completion("", "content_filter"),
			failure: suggest.FailureRefused,
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    map[string]any{"id": "x", "object": "chat.completion", "choices": []any{}},
			failure: suggest.FailureMalformed,
		},
		{
			name:    "gateway timeout",
			status:  http.StatusGatewayTimeout,
			body:    map[string]any{"error": map[string]any{"message": "upstream timed out", "type": "timeout"}},
			failure: suggest.FailureTimeout,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    map[string]any{"error": map[string]any{"message": "boom", "type": "server_error"}},
			failure: suggest.FailureUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			})

			_, err := p.Suggest(context.Background(), request())
			require.Error(t, err)
			assert.Equal(t, tt.failure, suggest.Classify(err), "error: %v", err)
		})
	}
}

func TestSuggest_DeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Suggest(ctx, request())
	require.Error(t, err)
	assert.Equal(t, suggest.FailureTimeout, suggest.Classify(err))
}

func TestSuggest_BadPrompt(t *testing.T) {
	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	p.opts.Prompt = "{{ .Missing }}"

	_, err := p.Suggest(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render prompt")
}
