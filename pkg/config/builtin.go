package config

// MaskingPattern is a single named regex redaction rule.
type MaskingPattern struct {
	Pattern     string
	Replacement string
	Description string
}

// BuiltinConfig holds configuration shipped with the binary, merged with
// user-provided YAML at load time (user values win on conflict).
type BuiltinConfig struct {
	LLMProviders    map[string]LLMProviderConfig
	MaskingPatterns map[string]MaskingPattern
	PatternGroups   map[string][]string
}

// GetBuiltinConfig returns the built-in LLM provider catalogue and the
// built-in masking patterns used to redact secrets before they reach logs,
// the exploration journal, or observer events. It always includes the
// "mock" LLM provider so a run can be driven without network access or API
// keys, which test and demo invocations rely on.
func GetBuiltinConfig() BuiltinConfig {
	return BuiltinConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"mock": {
				Type:                LLMProviderTypeMock,
				Model:               "mock",
				MaxToolResultTokens: 8000,
			},
		},
		MaskingPatterns: map[string]MaskingPattern{
			"password": {
				Pattern:     `(?i)("?password"?\s*[:=]\s*)"?([^"\s,}]+)"?`,
				Replacement: "${1}[MASKED_PASSWORD]",
				Description: "password field in journal/log text or JSON fragments",
			},
			"api_key": {
				Pattern:     `(?i)("?api[_-]?key"?\s*[:=]\s*)"?([A-Za-z0-9_\-]{8,})"?`,
				Replacement: "${1}[MASKED_API_KEY]",
				Description: "LLM/device-server API key",
			},
			"bearer_token": {
				Pattern:     `(?i)(Bearer\s+)[A-Za-z0-9_\-\.]+`,
				Replacement: "${1}[MASKED_TOKEN]",
				Description: "Authorization bearer token",
			},
			"private_key": {
				Pattern:     `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]+?-----END [A-Z ]*PRIVATE KEY-----`,
				Replacement: "[MASKED_PRIVATE_KEY]",
				Description: "PEM private key block",
			},
			"email": {
				Pattern:     `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
				Replacement: "[MASKED_EMAIL]",
				Description: "email address, e.g. the test account used for signup/login",
			},
		},
		PatternGroups: map[string][]string{
			"credentials": {"password", "api_key", "bearer_token", "private_key"},
			"pii":         {"email"},
			"all":         {"password", "api_key", "bearer_token", "private_key", "email"},
		},
	}
}
