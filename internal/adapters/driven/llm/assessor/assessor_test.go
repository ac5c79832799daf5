package assessor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// scriptedLLM answers every Generate call with a fixed reply.
type scriptedLLM struct {
	reply   string
	err     error
	prompts []string
	opts    []driven.GenerateOptions
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	return s.reply, s.err
}

func (s *scriptedLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return "", nil
}

func (s *scriptedLLM) Summarise(context.Context, string, int) (string, error) { return "", nil }
func (s *scriptedLLM) ModelName() string                                      { return "test-model" }
func (s *scriptedLLM) Ping(context.Context) error                             { return nil }
func (s *scriptedLLM) Close() error                                           { return nil }

func orderView() *domain.NodeView {
	e := &domain.DataEntity{ID: domain.EntityID("Order"), Name: "Order"}
	return &domain.NodeView{Ref: e.Ref(), Entity: e}
}

func amountView() *domain.NodeView {
	f := &domain.Field{ID: domain.FieldID("Order", "amount"), EntityID: domain.EntityID("Order"), Name: "amount"}
	return &domain.NodeView{Ref: f.Ref(), Field: f}
}

func gapOf(kind domain.GapKind, target string) *domain.MetadataGap {
	return &domain.MetadataGap{
		ID:          domain.GapID("rule", target),
		RuleID:      "rule",
		Kind:        kind,
		Target:      domain.NodeRef{Type: domain.NodeTypeEntity, ID: target},
		Description: "missing",
	}
}

var orderHits = []domain.SemanticHit{
	{ChunkID: "chunk:1", Content: "# Orders\n\nAn Order is placed by a customer. Amounts are in cents.", Score: 0.8},
	{ChunkID: "chunk:2", Content: "- `amount` (decimal): total charged", Score: 0.6},
}

func TestAssess_NoHits(t *testing.T) {
	a := New(&scriptedLLM{}, nil)

	got, err := a.Assess(context.Background(), gapOf(domain.GapMissingDescription, "entity:order"), orderView(), nil)

	require.NoError(t, err)
	assert.Empty(t, got.Value)
	assert.Zero(t, got.Confidence)
}

func TestAssess_LLM(t *testing.T) {
	llm := &scriptedLLM{reply: "```json\n{\"value\": \"A customer purchase\", \"confidence\": 0.9, \"chunk_id\": \"chunk:1\"}\n```"}
	a := New(llm, nil)

	got, err := a.Assess(context.Background(), gapOf(domain.GapMissingDescription, "entity:order"), orderView(), orderHits)

	require.NoError(t, err)
	assert.Equal(t, "A customer purchase", got.Value)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []string{"chunk:1"}, got.Evidence)
	require.Len(t, llm.prompts, 1)
	assert.True(t, llm.opts[0].JSON)
	assert.Contains(t, llm.prompts[0], `entity "Order"`)
	assert.Contains(t, llm.prompts[0], "[chunk:2]")
}

func TestAssess_LLMClampsAndDefaultsEvidence(t *testing.T) {
	a := New(&scriptedLLM{reply: `{"value": "decimal", "confidence": 3, "chunk_id": "chunk:missing"}`}, nil)

	got, err := a.Assess(context.Background(), gapOf(domain.GapMissingDataType, "field:order.amount"), amountView(), orderHits)

	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, []string{"chunk:1"}, got.Evidence)
}

func TestAssess_LLMUnparseable(t *testing.T) {
	a := New(&scriptedLLM{reply: "I cannot tell."}, nil)

	got, err := a.Assess(context.Background(), gapOf(domain.GapMissingDescription, "entity:order"), orderView(), orderHits)

	require.NoError(t, err)
	assert.Empty(t, got.Value)
	assert.Zero(t, got.Confidence)
}

func TestAssess_LLMError(t *testing.T) {
	a := New(&scriptedLLM{err: domain.ErrTransient}, nil)

	_, err := a.Assess(context.Background(), gapOf(domain.GapMissingDescription, "entity:order"), orderView(), orderHits)

	assert.True(t, errors.Is(err, domain.ErrTransient))
}

func TestAssess_Heuristic(t *testing.T) {
	a := New(nil, nil)

	tests := []struct {
		name      string
		gap       *domain.MetadataGap
		node      *domain.NodeView
		wantValue string
		wantChunk string
	}{
		{"description", gapOf(domain.GapMissingDescription, "entity:order"), orderView(), "An Order is placed by a customer", "chunk:1"},
		{"data type", gapOf(domain.GapMissingDataType, "field:order.amount"), amountView(), "decimal", "chunk:2"},
		{"cross reference unsupported", gapOf(domain.GapMissingCrossReference, "entity:order"), orderView(), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Assess(context.Background(), tt.gap, tt.node, orderHits)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got.Value)
			if tt.wantChunk == "" {
				assert.Zero(t, got.Confidence)
				return
			}
			assert.Equal(t, []string{tt.wantChunk}, got.Evidence)
			assert.Greater(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, heuristicCeiling)
		})
	}
}

func TestDataTypeOf(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"- `amount` (decimal): total", "decimal"},
		{"amount: int64", "int64"},
		{"The amount is a float", "float"},
		{"no type here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dataTypeOf(tt.content, "amount"), tt.content)
	}
}

func TestSentenceMentioning_WholeWord(t *testing.T) {
	assert.Empty(t, sentenceMentioning("Orders are listed here.", "Order"))
	assert.Equal(t, "Each Order has an id", sentenceMentioning("Intro text. Each Order has an id.", "Order"))
}
