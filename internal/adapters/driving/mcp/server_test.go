package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with required ports", func(t *testing.T) {
		server, err := NewServer(&Ports{Gaps: &mockGapService{}, Orchestrator: &mockOrchestrator{}})

		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("fails without gap service", func(t *testing.T) {
		_, err := NewServer(&Ports{Orchestrator: &mockOrchestrator{}})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingGapService)
	})

	t.Run("fails without orchestrator", func(t *testing.T) {
		_, err := NewServer(&Ports{Gaps: &mockGapService{}})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingOrchestrator)
	})

	t.Run("fails with nil ports", func(t *testing.T) {
		_, err := NewServer(nil)

		require.Error(t, err)
	})
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   Ports
		wantErr error
	}{
		{"all set", Ports{Gaps: &mockGapService{}, Orchestrator: &mockOrchestrator{}}, nil},
		{"missing gaps", Ports{Orchestrator: &mockOrchestrator{}}, ErrMissingGapService},
		{"missing orchestrator", Ports{Gaps: &mockGapService{}}, ErrMissingOrchestrator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
