package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

func TestExtractGapID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid gap URI", "mce://gaps/g-1", "g-1"},
		{"escaped separator", "mce://gaps/field-type%7Cfield:orders.total", "field-type|field:orders.total"},
		{"invalid prefix", "file://gaps/g-1", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractGapID(tt.uri))
		})
	}
}

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestServer_handleSummaryResource(t *testing.T) {
	summary := &driving.LedgerSummary{Total: 2, Open: 2, ByStatus: map[domain.GapStatus]int{domain.GapOpen: 2}}
	server := newTestServer(t, &mockGapService{summary: summary}, &mockOrchestrator{})

	result, err := server.handleSummaryResource(context.Background(), readRequest("mce://ledger/summary"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var decoded SummaryOutput
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &decoded))
	assert.Equal(t, 2, decoded.Total)
	assert.Equal(t, 2, decoded.ByStatus["open"])
}

func TestServer_handleRunStatusResource(t *testing.T) {
	orch := &mockOrchestrator{status: &domain.RunStatus{RunID: "run-9", Phase: domain.PhaseTerminated}}
	server := newTestServer(t, &mockGapService{}, orch)

	result, err := server.handleRunStatusResource(context.Background(), readRequest("mce://run/status"))

	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, `"run_id": "run-9"`)
}

func TestServer_handleGapResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns gap", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{details: &driving.GapDetails{Gap: sampleGap()}}, &mockOrchestrator{})

		result, err := server.handleGapResource(ctx, readRequest("mce://gaps/g-1"))

		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, "entity:orders")
	})

	t.Run("unknown gap is resource not found", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{err: domain.ErrNotFound}, &mockOrchestrator{})

		_, err := server.handleGapResource(ctx, readRequest("mce://gaps/missing"))

		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("malformed URI is resource not found", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{}, &mockOrchestrator{})

		_, err := server.handleGapResource(ctx, readRequest("mce://other"))

		require.Error(t, err)
	})
}
