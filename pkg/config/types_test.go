package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCrawlConfig_UnmarshalYAML(t *testing.T) {
	raw := `
mode: guided
max_steps: 150
max_duration: 30m
wait:
  after_action: 500ms
  between_batch_steps: 1s
multi_action_stop_on_error: true
exploration_journal_max_length: 4000
allowed_external_packages: [com.android.chrome]
visual_similarity_threshold: 0.92
`
	var cfg CrawlConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, CrawlModeGuided, cfg.Mode)
	assert.Equal(t, 150, cfg.MaxSteps)
	assert.Equal(t, 30*time.Minute, cfg.MaxDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Wait.AfterAction)
	assert.Equal(t, 1*time.Second, cfg.Wait.BetweenBatchSteps)
	assert.True(t, cfg.MultiActionStopOnError)
	assert.Equal(t, 4000, cfg.ExplorationJournalMaxLen)
	assert.Equal(t, []string{"com.android.chrome"}, cfg.AllowedExternalPackages)
	assert.InDelta(t, 0.92, cfg.VisualSimilarityThreshold, 0.0001)
}

func TestTargetAppConfig_UnmarshalYAML(t *testing.T) {
	raw := `
package: com.example.app
activity: .MainActivity
`
	var target TargetAppConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &target))
	assert.Equal(t, "com.example.app", target.Package)
	assert.Equal(t, ".MainActivity", target.Activity)
}
