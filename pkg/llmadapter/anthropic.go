package llmadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"
const anthropicMaxPayloadBytes = 5 * 1024 * 1024
const anthropicVersion = "2023-06-01"

// AnthropicAdapter speaks an Anthropic-Messages-style multimodal JSON API.
type AnthropicAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
}

// NewAnthropicAdapter constructs an AnthropicAdapter. apiKeyEnv names the
// environment variable holding the API key; baseURL may be empty to use
// the public API.
func NewAnthropicAdapter(apiKeyEnv, baseURL, model string, maxTokens int, timeout time.Duration) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicAdapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     os.Getenv(apiKeyEnv),
		model:      model,
		maxTokens:  maxTokens,
	}
}

func (a *AnthropicAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsImage: true, MaxPayloadBytes: anthropicMaxPayloadBytes, MaxInputTokens: 200_000}
}

type anthropicContentBlock struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string                  `json:"role"`
		Content []anthropicContentBlock `json:"content"`
	} `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) GenerateResponse(ctx context.Context, prompt string, image []byte) (Result, error) {
	cap := a.Capabilities()
	dropImage := shouldDropImage(cap, image)

	return withRetry(ctx, defaultRetryPolicy, isTransientNetworkOrStatus, func(ctx context.Context) (Result, error) {
		blocks := []anthropicContentBlock{{Type: "text", Text: prompt}}
		if !dropImage {
			blocks = append(blocks, anthropicContentBlock{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      base64.StdEncoding.EncodeToString(image),
				},
			})
		}

		reqBody := anthropicRequest{Model: a.model, MaxTokens: a.maxTokens}
		reqBody.Messages = append(reqBody.Messages, struct {
			Role    string                  `json:"role"`
			Content []anthropicContentBlock `json:"content"`
		}{Role: "user", Content: blocks})

		data, err := json.Marshal(reqBody)
		if err != nil {
			return Result{}, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(data))
		if err != nil {
			return Result{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return Result{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, err
		}
		if resp.StatusCode >= 400 {
			return Result{}, &httpStatusError{status: resp.StatusCode, body: string(body)}
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Result{}, fmt.Errorf("llmadapter: decode anthropic response: %w", err)
		}

		var text string
		for _, block := range parsed.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		return Result{
			Text:         text,
			Usage:        Usage{TotalTokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens},
			ImageDropped: dropImage,
		}, nil
	})
}
