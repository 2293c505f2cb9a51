package events

// RunStartedPayload is published once when a crawl run begins (or resumes).
type RunStartedPayload struct {
	RunID       string `json:"run_id"`
	AppPackage  string `json:"app_package"`
	Resumed     bool   `json:"resumed"`
}

// RunCompletedPayload is published when a run reaches a terminal state.
type RunCompletedPayload struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"` // "COMPLETED", "INTERRUPTED", "FAILED"
	TotalSteps   int    `json:"total_steps"`
	ScreensFound int    `json:"screens_found"`
	Reason       string `json:"reason,omitempty"`
}

// StepStartedPayload is published at the beginning of each step, before the
// screen is captured or the model is consulted — the earliest point a
// subprocess observer can learn a new step has begun.
type StepStartedPayload struct {
	RunID      string `json:"run_id"`
	StepNumber int    `json:"step_number"`
}

// ScreenDiscoveredPayload is published the first time a composite hash is seen.
type ScreenDiscoveredPayload struct {
	RunID          string `json:"run_id"`
	ScreenID       string `json:"screen_id"`
	CompositeHash  string `json:"composite_hash"`
	ActivityName   string `json:"activity_name"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// ActionExecutedPayload is published after every action dispatch, success or failure.
type ActionExecutedPayload struct {
	RunID        string `json:"run_id"`
	StepNumber   int    `json:"step_number"`
	ActionType   string `json:"action_type"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// StepRecordedPayload is published once a step has been durably persisted.
type StepRecordedPayload struct {
	RunID         string `json:"run_id"`
	StepNumber    int    `json:"step_number"`
	FromScreenID  string `json:"from_screen_id"`
	ToScreenID    string `json:"to_screen_id,omitempty"`
}

// StuckDetectedPayload is published when the stuck detector's heuristics trip.
type StuckDetectedPayload struct {
	RunID    string `json:"run_id"`
	ScreenID string `json:"screen_id"`
	Reason   string `json:"reason"`
}

// RunPausedPayload / RunResumedPayload mark the flag-controller gate transitions.
type RunPausedPayload struct {
	RunID string `json:"run_id"`
}

type RunResumedPayload struct {
	RunID string `json:"run_id"`
}

// CredentialUsedPayload is published when the credential store supplies
// (masked) test account details to a screen requiring sign-in.
type CredentialUsedPayload struct {
	RunID      string `json:"run_id"`
	AppPackage string `json:"app_package"`
	Email      string `json:"email"` // pre-masked by the caller before publishing
}
