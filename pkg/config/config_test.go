package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigConvenienceMethods(t *testing.T) {
	llmProviders := map[string]*LLMProviderConfig{
		"test-provider": {
			Type:                LLMProviderTypeAnthropic,
			Model:               "test-model",
			MaxToolResultTokens: 100000,
		},
	}

	cfg := &Config{
		configDir:           "/test/config",
		LLMProviderRegistry: NewLLMProviderRegistry(llmProviders),
		ActiveLLMProvider:   "test-provider",
	}

	t.Run("ConfigDir", func(t *testing.T) {
		assert.Equal(t, "/test/config", cfg.ConfigDir())
	})

	t.Run("GetLLMProvider success", func(t *testing.T) {
		provider, err := cfg.GetLLMProvider("test-provider")
		require.NoError(t, err)
		assert.NotNil(t, provider)
		assert.Equal(t, "test-model", provider.Model)
	})

	t.Run("GetLLMProvider not found", func(t *testing.T) {
		_, err := cfg.GetLLMProvider("nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("ActiveLLMProviderConfig success", func(t *testing.T) {
		provider, err := cfg.ActiveLLMProviderConfig()
		require.NoError(t, err)
		assert.Equal(t, "test-model", provider.Model)
	})
}

func TestConfigStats(t *testing.T) {
	cfg := &Config{
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{"l1": {}, "l2": {}, "l3": {}, "l4": {}}),
		Crawl:               CrawlConfig{MaxSteps: 500, Mode: CrawlModeExplore},
	}

	stats := cfg.Stats()
	assert.Equal(t, 4, stats.LLMProviders)
	assert.Equal(t, 500, stats.MaxSteps)
	assert.Equal(t, CrawlModeExplore, stats.CrawlMode)
}
