package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlModeIsValid(t *testing.T) {
	tests := []struct {
		name  string
		mode  CrawlMode
		valid bool
	}{
		{"explore", CrawlModeExplore, true},
		{"scripted", CrawlModeScripted, true},
		{"guided", CrawlModeGuided, true},
		{"empty", CrawlMode(""), true},
		{"invalid", CrawlMode("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.mode.IsValid())
		})
	}
}

func TestLLMProviderTypeIsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider LLMProviderType
		valid    bool
	}{
		{"anthropic", LLMProviderTypeAnthropic, true},
		{"openai", LLMProviderTypeOpenAI, true},
		{"ollama", LLMProviderTypeOllama, true},
		{"mock", LLMProviderTypeMock, true},
		{"invalid", LLMProviderType("invalid"), false},
		{"empty", LLMProviderType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
		})
	}
}
