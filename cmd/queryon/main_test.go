package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vidinsight-tech/queryon/internal/config"
)

func TestIsRunningAsSystemdService(t *testing.T) {
	t.Setenv("INVOCATION_ID", "")
	t.Setenv("WATCHDOG_USEC", "")
	assert.False(t, isRunningAsSystemdService())

	t.Setenv("INVOCATION_ID", "abc123")
	assert.True(t, isRunningAsSystemdService())

	t.Setenv("INVOCATION_ID", "")
	t.Setenv("WATCHDOG_USEC", "1000")
	assert.True(t, isRunningAsSystemdService())
}

func TestLLMConfig_MapsEveryField(t *testing.T) {
	cfg := &config.Config{
		LLMProvider:       "openai",
		LLMAPIKey:         "key",
		LLMBaseURL:        "https://api.openai.com/v1",
		LLMModel:          "gpt-4o-mini",
		LLMEmbeddingModel: "text-embedding-3-small",
		LLMDimensions:     1536,
		LLMTimeoutSeconds: 20,
	}

	got := llmConfig(cfg)

	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", got.BaseURL)
	assert.Equal(t, "gpt-4o-mini", got.ChatModel)
	assert.Equal(t, "text-embedding-3-small", got.EmbeddingModel)
	assert.Equal(t, 1536, got.Dimensions)
	assert.Equal(t, 20, got.TimeoutSeconds)
}

func TestTerminationSignals_NonEmpty(t *testing.T) {
	assert.NotEmpty(t, terminationSignals)
}
