package llmadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaAdapter speaks a local/Ollama-style text completion endpoint.
// Text-only — images are always dropped.
type OllamaAdapter struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllamaAdapter constructs an OllamaAdapter pointed at baseURL.
func NewOllamaAdapter(baseURL, model string, timeout time.Duration) *OllamaAdapter {
	return &OllamaAdapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
	}
}

func (o *OllamaAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsImage: false, MaxPayloadBytes: 0, MaxInputTokens: 8192}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *OllamaAdapter) GenerateResponse(ctx context.Context, prompt string, image []byte) (Result, error) {
	dropImage := len(image) > 0

	return withRetry(ctx, defaultRetryPolicy, isTransientNetworkOrStatus, func(ctx context.Context) (Result, error) {
		data, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: prompt, Stream: false})
		if err != nil {
			return Result{}, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(data))
		if err != nil {
			return Result{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.httpClient.Do(httpReq)
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

		var parsed ollamaResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Result{}, fmt.Errorf("llmadapter: decode ollama response: %w", err)
		}

		return Result{
			Text:         parsed.Response,
			Usage:        Usage{TotalTokens: parsed.PromptEvalCount + parsed.EvalCount},
			ImageDropped: dropImage,
		}, nil
	})
}
