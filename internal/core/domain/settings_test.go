package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.InDelta(t, 0.6, s.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, 10, s.MaxPasses)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 5, s.SemanticTopK)
	assert.Equal(t, 3, s.CollaboratorRetries)
	assert.Equal(t, 200*time.Millisecond, s.RetryBackoff)
}

func TestSettings_WithDefaults(t *testing.T) {
	s := Settings{MaxAttempts: 5, Workers: 1}.WithDefaults()
	assert.Equal(t, 5, s.MaxAttempts)
	assert.Equal(t, 1, s.Workers)
	assert.InDelta(t, DefaultConfidenceThreshold, s.ConfidenceThreshold, 1e-9)
	assert.Equal(t, DefaultMaxPasses, s.MaxPasses)
	assert.Equal(t, DefaultRetryBackoff, s.RetryBackoff)
}

func TestSettings_WithDefaults_KeepsZeroRetries(t *testing.T) {
	s := Settings{CollaboratorRetries: 0}.WithDefaults()
	assert.Equal(t, 0, s.CollaboratorRetries)
}
