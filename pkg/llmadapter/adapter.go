// Package llmadapter provides a provider-agnostic interface over the
// handful of concrete LLM backends crawlforge can drive: an Anthropic-
// Messages-style multimodal HTTP API, a local Ollama-style text endpoint,
// and an in-memory mock used by tests and dry runs.
package llmadapter

import (
	"context"
	"errors"
)

// Usage reports token consumption for one GenerateResponse call.
type Usage struct {
	TotalTokens int
}

// Capabilities describes what a provider supports, so the core can decide
// whether to include an image at all.
type Capabilities struct {
	SupportsImage   bool
	MaxPayloadBytes int
	MaxInputTokens  int
}

// ModelAdapter is the common contract across providers.
type ModelAdapter interface {
	// GenerateResponse sends prompt (and optionally a decoded image) to the
	// provider and returns its text response and token usage. If the
	// provider's capabilities rule out the image (unsupported, or payload
	// too large), the adapter drops it silently and reports that via
	// ImageDropped on the returned Result.
	GenerateResponse(ctx context.Context, prompt string, image []byte) (Result, error)

	// Capabilities reports what this adapter can handle.
	Capabilities() Capabilities
}

// Result is GenerateResponse's successful outcome.
type Result struct {
	Text         string
	Usage        Usage
	ImageDropped bool
}

// ErrPersistentFailure signals that retries have been exhausted and the
// failure is not transient. The crawl loop surfaces this as a failed
// decision and increments its LLM-retry counter, it never terminates the
// run over an adapter failure alone.
var ErrPersistentFailure = errors.New("llmadapter: persistent failure")

// shouldDropImage decides whether to omit image from the request given cap
// and the image's size in bytes, implementing "provider auto-
// disables images due to payload limits, silently."
func shouldDropImage(cap Capabilities, image []byte) bool {
	if len(image) == 0 {
		return false
	}
	if !cap.SupportsImage {
		return true
	}
	if cap.MaxPayloadBytes > 0 && len(image) > cap.MaxPayloadBytes {
		return true
	}
	return false
}
