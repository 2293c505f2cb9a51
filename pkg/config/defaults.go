package config

import "time"

// Defaults contains system-wide default configurations applied when a crawl
// run does not specify its own values.
type Defaults struct {
	// LLMProvider names the provider used when a run does not select one explicitly.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// Crawl holds the baseline crawl shaping options as read from YAML.
	// Environment variable overrides (loader.go) apply to Config.Crawl, not
	// to this field.
	Crawl CrawlConfig `yaml:"crawl,omitempty"`

	// Features holds the baseline optional-capability toggles.
	Features FeatureFlags `yaml:"features,omitempty"`
}

// DefaultCrawlConfig returns the built-in crawl shaping defaults, applied
// before any YAML or environment overrides.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Mode:                      CrawlModeExplore,
		MaxSteps:                  DefaultMaxCrawlSteps,
		MaxDuration:               DefaultMaxCrawlDuration,
		Wait:                      WaitConfig{AfterAction: DefaultWaitAfterAction, BetweenBatchSteps: DefaultWaitBetweenBatchSteps},
		MultiActionStopOnError:    true,
		ExplorationJournalMaxLen:  DefaultExplorationJournalMaxLen,
		VisualSimilarityThreshold: DefaultVisualSimilarityThreshold,
	}
}

// DefaultDeviceConfig returns the built-in device-endpoint defaults.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ServerURL:      "http://127.0.0.1:4723",
		SessionTimeout: DefaultDeviceSessionTimeout,
	}
}

const (
	// DefaultMaxCrawlSteps bounds a run when MAX_CRAWL_STEPS is unset.
	DefaultMaxCrawlSteps = 500
	// DefaultMaxCrawlDuration bounds a run's wall-clock time when unset.
	DefaultMaxCrawlDuration = 2 * time.Hour
	// DefaultWaitAfterAction is the settle time applied after each single action.
	DefaultWaitAfterAction = 800 * time.Millisecond
	// DefaultWaitBetweenBatchSteps is the settle time applied between steps of a batch.
	DefaultWaitBetweenBatchSteps = 300 * time.Millisecond
	// DefaultExplorationJournalMaxLen caps the journal text fed back into prompts.
	DefaultExplorationJournalMaxLen = 6000
	// DefaultVisualSimilarityThreshold is the default for the loaded and
	// validated (0..1) similarity threshold. Screen identity is the exact
	// composite hash; no screen comparison reads this threshold.
	DefaultVisualSimilarityThreshold = 0.9
	// DefaultDeviceSessionTimeout bounds how long a single WebDriver session may idle.
	DefaultDeviceSessionTimeout = 5 * time.Minute
)
