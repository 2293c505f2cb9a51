package config

// Config is the umbrella configuration object returned by Initialize() and
// threaded through the crawl loop and its collaborators.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Defaults holds system-wide default values applied when a run doesn't
	// override them.
	Defaults *Defaults

	// TargetApp identifies the application under exploration.
	TargetApp TargetAppConfig

	// Crawl holds the resolved (defaults + YAML + env) crawl shaping options.
	Crawl CrawlConfig

	// Device describes how to reach the automation endpoint.
	Device *DeviceConfig

	// Credentials supplies test account details for sign-in/sign-up screens.
	Credentials CredentialsConfig

	// Features toggles optional capture/analysis surfaces.
	Features FeatureFlags

	// LLMProviderRegistry holds all known LLM provider configurations.
	LLMProviderRegistry *LLMProviderRegistry

	// ActiveLLMProvider names the provider selected for this run (AI_PROVIDER).
	ActiveLLMProvider string
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration, surfaced in
// startup logs and the /healthz endpoint.
type ConfigStats struct {
	LLMProviders int
	MaxSteps     int
	CrawlMode    CrawlMode
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders: len(c.LLMProviderRegistry.GetAll()),
		MaxSteps:     c.Crawl.MaxSteps,
		CrawlMode:    c.Crawl.Mode,
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// ActiveLLMProviderConfig retrieves the configuration for ActiveLLMProvider.
func (c *Config) ActiveLLMProviderConfig() (*LLMProviderConfig, error) {
	return c.GetLLMProvider(c.ActiveLLMProvider)
}
