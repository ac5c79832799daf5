package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

type staticPrompts map[string]string

func (p staticPrompts) Load(name string) (string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return "", domain.ErrNotFound
}

func (p staticPrompts) Reload() {}

func TestLLMService_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"value":"x"}`, Done: true})
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "test-model", Temperature: 0.1, MaxTokens: 256})
	out, err := svc.Generate(context.Background(), "hello", driven.GenerateOptions{JSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"value":"x"}`, out)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 256, got.Options.NumPredict)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
}

func TestLLMService_Chat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "hi"}, Done: true})
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	out, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "hello"}}, driven.ChatOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, DefaultLLMModel, got.Model)
	assert.Equal(t, 10, got.Options.NumPredict)
}

func TestLLMService_Summarise_UsesPromptStore(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  short  ", Done: true})
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	svc.SetPromptStore(staticPrompts{driven.PromptSummarise: "In %d chars: %s"})

	out, err := svc.Summarise(context.Background(), "long text", 80)
	require.NoError(t, err)
	assert.Equal(t, "short", out)
	assert.Equal(t, "In 80 chars: long text", got.Prompt)
	assert.Equal(t, 20, got.Options.NumPredict)
}

func TestLLMService_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "server error", status: http.StatusInternalServerError, transient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewLLMService(LLMConfig{BaseURL: srv.URL}).Generate(context.Background(), "x", driven.GenerateOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.Is(err, domain.ErrTransient))
		})
	}
}

func TestLLMService_ConnectionRefused_IsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: url}).Generate(context.Background(), "x", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestLLMService_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}
