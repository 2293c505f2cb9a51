package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestYAML(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crawlforge.yaml"), []byte(contents), 0o644))
}

func TestInitialize_FromYAML(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, `
target_app:
  package: com.example.app
  activity: .MainActivity
device:
  server_url: http://127.0.0.1:4723
crawl:
  mode: explore
  max_steps: 200
llm_providers:
  claude:
    type: anthropic
    model: claude-3-5-sonnet
    api_key_env: ANTHROPIC_API_KEY
    max_tool_result_tokens: 20000
llm_provider: claude
`)

	ctx := context.Background()
	cfg, err := Initialize(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "com.example.app", cfg.TargetApp.Package)
	assert.Equal(t, ".MainActivity", cfg.TargetApp.Activity)
	assert.Equal(t, 200, cfg.Crawl.MaxSteps)
	assert.Equal(t, CrawlModeExplore, cfg.Crawl.Mode)
	assert.True(t, cfg.LLMProviderRegistry.Has("claude"))
	assert.True(t, cfg.LLMProviderRegistry.Has("mock"))
	assert.Equal(t, "claude", cfg.ActiveLLMProvider)

	stats := cfg.Stats()
	assert.Equal(t, 2, stats.LLMProviders)
	assert.Equal(t, 200, stats.MaxSteps)
}

func TestInitialize_MissingYAMLUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_PACKAGE", "com.example.fallback")

	ctx := context.Background()
	cfg, err := Initialize(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, "com.example.fallback", cfg.TargetApp.Package)
	assert.Equal(t, DefaultMaxCrawlSteps, cfg.Crawl.MaxSteps)
	assert.True(t, cfg.LLMProviderRegistry.Has("mock"))
}

func TestInitialize_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, `
target_app:
  package: com.example.app
device:
  server_url: http://127.0.0.1:4723
crawl:
  max_steps: 50
`)

	t.Setenv("MAX_CRAWL_STEPS", "999")
	t.Setenv("APP_PACKAGE", "com.example.override")
	t.Setenv("MAX_CRAWL_DURATION_SECONDS", "60")
	t.Setenv("WAIT_AFTER_ACTION", "1500")
	t.Setenv("MULTI_ACTION_STOP_ON_ERROR", "false")
	t.Setenv("VISUAL_SIMILARITY_THRESHOLD", "0.75")

	ctx := context.Background()
	cfg, err := Initialize(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 999, cfg.Crawl.MaxSteps)
	assert.Equal(t, "com.example.override", cfg.TargetApp.Package)
	assert.Equal(t, 60*time.Second, cfg.Crawl.MaxDuration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawl.Wait.AfterAction)
	assert.False(t, cfg.Crawl.MultiActionStopOnError)
	assert.InDelta(t, 0.75, cfg.Crawl.VisualSimilarityThreshold, 0.0001)
}

func TestInitialize_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, "target_app: [this is not a mapping")

	ctx := context.Background()
	_, err := Initialize(ctx, dir)
	require.Error(t, err)
}

func TestInitialize_ValidationFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	// No target_app.package and env does not supply one either.
	writeTestYAML(t, dir, `
device:
  server_url: http://127.0.0.1:4723
`)

	ctx := context.Background()
	_, err := Initialize(ctx, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}
