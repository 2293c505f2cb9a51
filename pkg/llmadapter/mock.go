package llmadapter

import "context"

// MockAdapter returns a fixed or scripted response, used by tests and
// `cmd/crawlforge run --dry-run`. Not safe for concurrent use — the crawl
// loop never calls an adapter concurrently.
type MockAdapter struct {
	Responses []Result
	Err       error
	cap       Capabilities

	calls int
}

// NewMockAdapter constructs a MockAdapter cycling through responses in
// order; the last response repeats once exhausted.
func NewMockAdapter(cap Capabilities, responses ...Result) *MockAdapter {
	return &MockAdapter{Responses: responses, cap: cap}
}

func (m *MockAdapter) Capabilities() Capabilities { return m.cap }

func (m *MockAdapter) GenerateResponse(ctx context.Context, prompt string, image []byte) (Result, error) {
	idx := m.calls
	m.calls++
	if m.Err != nil {
		return Result{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Result{}, nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}

	result := m.Responses[idx]
	result.ImageDropped = shouldDropImage(m.cap, image)
	return result, nil
}

// Calls returns the number of times GenerateResponse has been invoked.
func (m *MockAdapter) Calls() int { return m.calls }
