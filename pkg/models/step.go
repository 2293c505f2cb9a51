package models

import "time"

// Step is a single decision-execution record. Step numbers are dense,
// 1-based, and strictly increasing per run; on success the from-screen of
// step N+1 equals the to-screen of step N.
type Step struct {
	ID                int64     `json:"id"`
	RunID             int64     `json:"run_id"`
	StepNumber        int       `json:"step_number"`
	FromScreenID      int64     `json:"from_screen_id"`
	ToScreenID        *int64    `json:"to_screen_id,omitempty"`
	ActionDescription string    `json:"action_description"`
	RawLLMSuggestion  string    `json:"raw_llm_suggestion"`
	NormalizedAction  string    `json:"normalized_action"`
	Success           bool      `json:"success"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	LLMResponseMs     int64     `json:"llm_response_ms"`
	TotalTokens       *int      `json:"total_tokens,omitempty"`
	LLMPrompt         string    `json:"llm_prompt"`
	ElementFindMs     *int64    `json:"element_find_ms,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
