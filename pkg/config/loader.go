package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CrawlForgeYAMLConfig represents the complete crawlforge.yaml file structure.
type CrawlForgeYAMLConfig struct {
	TargetApp    TargetAppConfig              `yaml:"target_app"`
	Crawl        *CrawlConfig                 `yaml:"crawl"`
	Device       *DeviceConfig                `yaml:"device"`
	Credentials  *CredentialsConfig           `yaml:"credentials"`
	Features     *FeatureFlags                `yaml:"features"`
	Defaults     *Defaults                    `yaml:"defaults"`
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
	LLMProvider  string                       `yaml:"llm_provider"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load crawlforge.yaml from configDir, if present
//  2. Expand environment variables in the YAML body
//  3. Merge built-in + user-defined LLM providers
//  4. Use the built-in crawl and device defaults for a section the YAML
//     omits (a section present in the YAML replaces those defaults whole)
//  5. Apply environment variable overrides (see §6 of the design notes for
//     the recognized option table — these always win over YAML)
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.LLMProviders,
		"max_steps", stats.MaxSteps,
		"crawl_mode", stats.CrawlMode)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadCrawlForgeYAML()
	if err != nil {
		return nil, err
	}

	builtin := GetBuiltinConfig()
	llmProviders := mergeLLMProviders(builtin.LLMProviders, yamlCfg.LLMProviders)
	llmProviderRegistry := NewLLMProviderRegistry(llmProviders)

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}

	crawl := DefaultCrawlConfig()
	if yamlCfg.Crawl != nil {
		crawl = *yamlCfg.Crawl
	}

	device := DefaultDeviceConfig()
	if yamlCfg.Device != nil {
		device = yamlCfg.Device
	}

	var credentials CredentialsConfig
	if yamlCfg.Credentials != nil {
		credentials = *yamlCfg.Credentials
	}

	var features FeatureFlags
	if yamlCfg.Features != nil {
		features = *yamlCfg.Features
	}

	activeProvider := yamlCfg.LLMProvider
	if activeProvider == "" {
		activeProvider = defaults.LLMProvider
	}

	cfg := &Config{
		configDir:           configDir,
		Defaults:            defaults,
		TargetApp:           yamlCfg.TargetApp,
		Crawl:               crawl,
		Device:              device,
		Credentials:         credentials,
		Features:            features,
		LLMProviderRegistry: llmProviderRegistry,
		ActiveLLMProvider:   activeProvider,
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // absent config file means "use defaults + env overrides"
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCrawlForgeYAML() (*CrawlForgeYAMLConfig, error) {
	var cfg CrawlForgeYAMLConfig
	cfg.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("crawlforge.yaml", &cfg); err != nil {
		return nil, NewLoadError("crawlforge.yaml", err)
	}

	return &cfg, nil
}

// applyEnvOverrides layers environment variables on top of YAML-derived
// configuration. Env vars always win, matching how the launcher contract
// passes run parameters to the process.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_PACKAGE"); v != "" {
		cfg.TargetApp.Package = v
	}
	if v := os.Getenv("APP_ACTIVITY"); v != "" {
		cfg.TargetApp.Activity = v
	}
	if v := os.Getenv("CRAWL_MODE"); v != "" {
		cfg.Crawl.Mode = CrawlMode(v)
	}
	if v, ok := envInt("MAX_CRAWL_STEPS"); ok {
		cfg.Crawl.MaxSteps = v
	}
	if v, ok := envSeconds("MAX_CRAWL_DURATION_SECONDS"); ok {
		cfg.Crawl.MaxDuration = v
	}
	if v, ok := envMillis("WAIT_AFTER_ACTION"); ok {
		cfg.Crawl.Wait.AfterAction = v
	}
	if v, ok := envMillis("WAIT_BETWEEN_BATCH_ACTIONS"); ok {
		cfg.Crawl.Wait.BetweenBatchSteps = v
	}
	if v, ok := envBool("MULTI_ACTION_STOP_ON_ERROR"); ok {
		cfg.Crawl.MultiActionStopOnError = v
	}
	if v, ok := envInt("EXPLORATION_JOURNAL_MAX_LENGTH"); ok {
		cfg.Crawl.ExplorationJournalMaxLen = v
	}
	if v := os.Getenv("ALLOWED_EXTERNAL_PACKAGES"); v != "" {
		cfg.Crawl.AllowedExternalPackages = strings.Split(v, ",")
	}
	if v, ok := envFloat("VISUAL_SIMILARITY_THRESHOLD"); ok {
		cfg.Crawl.VisualSimilarityThreshold = v
	}

	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.ActiveLLMProvider = v
	}
	if v := os.Getenv("DEFAULT_MODEL_TYPE"); v != "" {
		if provider, err := cfg.LLMProviderRegistry.Get(cfg.ActiveLLMProvider); err == nil {
			provider.Model = v
		}
	}
	if v, ok := envBool("ENABLE_IMAGE_CONTEXT"); ok {
		cfg.Features.EnableImageContext = v
	}
	if v, ok := envBool("ENABLE_TRAFFIC_CAPTURE"); ok {
		cfg.Features.EnableTrafficCapture = v
	}
	if v, ok := envBool("ENABLE_VIDEO_RECORDING"); ok {
		cfg.Features.EnableVideoRecording = v
	}
	if v, ok := envBool("ENABLE_MOBSF_ANALYSIS"); ok {
		cfg.Features.EnableMobSFAnalysis = v
	}
	if v, ok := envBool("ENABLE_AI_RUN_REPORT"); ok {
		cfg.Features.EnableAIRunReport = v
	}

	if v := os.Getenv("TEST_EMAIL"); v != "" {
		cfg.Credentials.Email = v
	}
	if v := os.Getenv("TEST_PASSWORD"); v != "" {
		cfg.Credentials.Password = v
	}
	if v := os.Getenv("TEST_NAME"); v != "" {
		cfg.Credentials.Name = v
	}

	if v := os.Getenv("DEVICE_SERVER_URL"); v != "" {
		cfg.Device.ServerURL = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer environment override", "var", name, "value", v)
		return 0, false
	}
	return n, true
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring non-numeric environment override", "var", name, "value", v)
		return 0, false
	}
	return f, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring non-boolean environment override", "var", name, "value", v)
		return false, false
	}
	return b, true
}

func envSeconds(name string) (time.Duration, bool) {
	n, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func envMillis(name string) (time.Duration, bool) {
	n, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
