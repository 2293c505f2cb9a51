package config

// CrawlMode selects the exploration strategy the crawl loop runs under.
type CrawlMode string

const (
	// CrawlModeExplore lets the model choose actions freely (default).
	CrawlModeExplore CrawlMode = "explore"
	// CrawlModeScripted is accepted and validated; the crawl loop does not
	// read the mode and runs it exactly like explore.
	CrawlModeScripted CrawlMode = "scripted"
	// CrawlModeGuided is accepted and validated; the crawl loop does not
	// read the mode and runs it exactly like explore.
	CrawlModeGuided CrawlMode = "guided"
)

// IsValid reports whether the crawl mode is one of the recognized values (empty means default).
func (m CrawlMode) IsValid() bool {
	switch m {
	case "", CrawlModeExplore, CrawlModeScripted, CrawlModeGuided:
		return true
	default:
		return false
	}
}

// LLMProviderType defines supported LLM providers.
type LLMProviderType string

const (
	// LLMProviderTypeAnthropic is Anthropic's Messages API.
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	// LLMProviderTypeOpenAI is OpenAI's chat completions API.
	LLMProviderTypeOpenAI LLMProviderType = "openai"
	// LLMProviderTypeOllama is a local/self-hosted Ollama-compatible endpoint.
	LLMProviderTypeOllama LLMProviderType = "ollama"
	// LLMProviderTypeMock is an in-memory adapter used for tests and dry runs.
	LLMProviderTypeMock LLMProviderType = "mock"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeAnthropic, LLMProviderTypeOpenAI, LLMProviderTypeOllama, LLMProviderTypeMock:
		return true
	default:
		return false
	}
}
