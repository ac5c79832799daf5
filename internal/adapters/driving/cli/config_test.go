package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
)

func TestConfigCmd_Use(t *testing.T) {
	assert.Equal(t, "config", configCmd.Use)
	assert.Equal(t, "show", configShowCmd.Use)
}

func TestConfigShow_NotLoaded(t *testing.T) {
	setupServices(t, Services{})

	_, err := execute(t, context.Background(), "config")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration not loaded")
}

func TestConfigShow(t *testing.T) {
	setupServices(t, Services{Config: testConfig()})

	out, err := execute(t, context.Background(), "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Confidence threshold: 0.60")
	assert.Contains(t, out, "Rate limit:           off")
	assert.Contains(t, out, "Provider: none (heuristic assessment)")
	assert.Contains(t, out, "Model:    nomic-embed-text")
	assert.Contains(t, out, "Code paths: ./internal")
	assert.Contains(t, out, "Data dir:   (default)")
	assert.NotContains(t, out, "Warning:")
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = file.ProviderOpenAI
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.APIKey = "sk-secret-abcd"
	setupServices(t, Services{Config: cfg})

	out, err := execute(t, context.Background(), "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Provider: openai")
	assert.Contains(t, out, "API key:  ****abcd")
	assert.NotContains(t, out, "sk-secret")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "****bcde", maskSecret("abcde"))
}

func TestConfigShow_InvalidWarns(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestrator.ConfidenceThreshold = 1.5
	setupServices(t, Services{Config: cfg})

	out, err := execute(t, context.Background(), "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "MCE_*")
}
