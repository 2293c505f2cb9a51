package config

import "time"

// TargetAppConfig identifies the application under exploration.
type TargetAppConfig struct {
	Package  string `yaml:"package" validate:"required"`
	Activity string `yaml:"activity,omitempty"`
}

// WaitConfig controls pacing between actions so the UI has time to settle.
type WaitConfig struct {
	AfterAction       time.Duration `yaml:"after_action,omitempty"`
	BetweenBatchSteps time.Duration `yaml:"between_batch_steps,omitempty"`
}

// CredentialsConfig supplies test account details used by the credential store
// when a screen requires sign-in/sign-up. Values are typically sourced from
// environment variables rather than checked-in YAML.
type CredentialsConfig struct {
	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password,omitempty"`
	Name     string `yaml:"name,omitempty"`
}

// FeatureFlags toggles optional, resource-heavier capture/analysis surfaces.
type FeatureFlags struct {
	EnableImageContext    bool `yaml:"enable_image_context"`
	EnableTrafficCapture  bool `yaml:"enable_traffic_capture"`
	EnableVideoRecording  bool `yaml:"enable_video_recording"`
	EnableMobSFAnalysis   bool `yaml:"enable_mobsf_analysis"`
	EnableAIRunReport     bool `yaml:"enable_ai_run_report"`
}

// CrawlConfig holds the run-shaping options a crawl session is launched with.
type CrawlConfig struct {
	Mode                     CrawlMode `yaml:"mode,omitempty" validate:"omitempty"`
	MaxSteps                 int       `yaml:"max_steps" validate:"required,min=1"`
	MaxDuration              time.Duration `yaml:"max_duration,omitempty"`
	Wait                     WaitConfig    `yaml:"wait,omitempty"`
	MultiActionStopOnError   bool          `yaml:"multi_action_stop_on_error"`
	ExplorationJournalMaxLen int           `yaml:"exploration_journal_max_length,omitempty" validate:"omitempty,min=0"`
	AllowedExternalPackages  []string      `yaml:"allowed_external_packages,omitempty"`
	VisualSimilarityThreshold float64      `yaml:"visual_similarity_threshold,omitempty" validate:"omitempty,min=0,max=1"`
}

// DeviceConfig describes how to reach the WebDriver-compatible automation endpoint.
type DeviceConfig struct {
	ServerURL      string        `yaml:"server_url" validate:"required"`
	SessionTimeout time.Duration `yaml:"session_timeout,omitempty"`
}
