package config

import (
	"fmt"
	"net/url"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
func (v *Validator) ValidateAll() error {
	// Validate in order: target app → crawl shaping → device → LLM providers.
	// LLM providers are validated last since the active provider reference
	// depends on the provider registry being fully merged.

	if err := v.validateTargetApp(); err != nil {
		return fmt.Errorf("target app validation failed: %w", err)
	}

	if err := v.validateCrawl(); err != nil {
		return fmt.Errorf("crawl validation failed: %w", err)
	}

	if err := v.validateDevice(); err != nil {
		return fmt.Errorf("device validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateTargetApp() error {
	app := v.cfg.TargetApp
	if app.Package == "" {
		return NewValidationError("target_app", "", "package", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateCrawl() error {
	c := v.cfg.Crawl

	if c.Mode != "" && !c.Mode.IsValid() {
		return NewValidationError("crawl", "", "mode", fmt.Errorf("invalid crawl mode: %s", c.Mode))
	}
	if c.MaxSteps < 1 {
		return NewValidationError("crawl", "", "max_steps", fmt.Errorf("must be at least 1"))
	}
	if c.MaxDuration < 0 {
		return NewValidationError("crawl", "", "max_duration", fmt.Errorf("must be non-negative"))
	}
	if c.Wait.AfterAction < 0 {
		return NewValidationError("crawl", "", "wait.after_action", fmt.Errorf("must be non-negative"))
	}
	if c.Wait.BetweenBatchSteps < 0 {
		return NewValidationError("crawl", "", "wait.between_batch_steps", fmt.Errorf("must be non-negative"))
	}
	if c.VisualSimilarityThreshold < 0 || c.VisualSimilarityThreshold > 1 {
		return NewValidationError("crawl", "", "visual_similarity_threshold", fmt.Errorf("must be between 0 and 1"))
	}
	if c.ExplorationJournalMaxLen < 0 {
		return NewValidationError("crawl", "", "exploration_journal_max_length", fmt.Errorf("must be non-negative"))
	}

	return nil
}

func (v *Validator) validateDevice() error {
	d := v.cfg.Device
	if d == nil {
		return NewValidationError("device", "", "server_url", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if d.ServerURL == "" {
		return NewValidationError("device", "", "server_url", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if _, err := url.Parse(d.ServerURL); err != nil {
		return NewValidationError("device", "", "server_url", fmt.Errorf("not a valid URL: %w", err))
	}
	if d.SessionTimeout < 0 {
		return NewValidationError("device", "", "session_timeout", fmt.Errorf("must be non-negative"))
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("invalid provider type: %s", provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("%w", ErrMissingRequiredField))
		}
		if provider.MaxToolResultTokens < 1000 {
			return NewValidationError("llm_provider", name, "max_tool_result_tokens", fmt.Errorf("must be at least 1000"))
		}
	}

	if v.cfg.ActiveLLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(v.cfg.ActiveLLMProvider) {
		return NewValidationError("llm_provider", v.cfg.ActiveLLMProvider, "", fmt.Errorf("%w", ErrLLMProviderNotFound))
	}

	return nil
}
