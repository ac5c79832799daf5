package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

type summarisingLLM struct {
	err   error
	calls int
}

func (s *summarisingLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	return "", nil
}

func (s *summarisingLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return "", nil
}

func (s *summarisingLLM) Summarise(_ context.Context, content string, maxLength int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return strings.Fields(content)[0] + " summary", nil
}

func (s *summarisingLLM) ModelName() string          { return "test" }
func (s *summarisingLLM) Ping(context.Context) error { return nil }
func (s *summarisingLLM) Close() error               { return nil }

func TestNew_RequiresLLM(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestProcess(t *testing.T) {
	llm := &summarisingLLM{}
	p, err := New(llm, WithMinChars(10))
	require.NoError(t, err)

	chunks := []domain.Chunk{
		{ID: "a", Content: "orders are placed by customers"},
		{ID: "b", Content: "short"},
		{ID: "c", Content: "already summarised content", Summary: "kept"},
	}

	out, err := p.Process(context.Background(), &domain.Document{}, chunks)

	require.NoError(t, err)
	assert.Equal(t, "orders summary", out[0].Summary)
	assert.Empty(t, out[1].Summary)
	assert.Equal(t, "kept", out[2].Summary)
	assert.Equal(t, 1, llm.calls)
}

func TestProcess_FailureLeavesChunk(t *testing.T) {
	p, err := New(&summarisingLLM{err: errors.New("boom")}, WithMinChars(0))
	require.NoError(t, err)

	out, err := p.Process(context.Background(), &domain.Document{}, []domain.Chunk{{ID: "a", Content: "text"}})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Summary)
}

func TestProcess_Cancelled(t *testing.T) {
	p, err := New(&summarisingLLM{err: context.Canceled}, WithMinChars(0))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), &domain.Document{}, []domain.Chunk{{ID: "a", Content: "text"}})

	assert.ErrorIs(t, err, context.Canceled)
}
