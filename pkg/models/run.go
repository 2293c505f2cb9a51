package models

import "time"

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusInterrupted RunStatus = "INTERRUPTED"
	RunStatusFailed      RunStatus = "FAILED"
)

// RunStats holds the running counters a CrawlLoop maintains for a Run. These
// are summary diagnostics, not authoritative data — the step log is.
type RunStats struct {
	StuckDetections   int `json:"stuck_detections"`
	LLMRetries        int `json:"llm_retries"`
	ElementNotFound   int `json:"element_not_found"`
	AppCrashes        int `json:"app_crashes"`
	ContextLossEvents int `json:"context_loss_events"`
}

// Run is a single crawl session. Created when the loop initializes, mutated
// only by CrawlLoop on terminal transitions.
type Run struct {
	ID         int64      `json:"id"`
	AppPackage string     `json:"app_package"`
	AppEntry   string     `json:"app_entry,omitempty"`
	Status     RunStatus  `json:"status"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Stats      RunStats   `json:"stats"`
}

// IsTerminal reports whether the run has reached a status CrawlLoop will
// never transition away from.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusInterrupted, RunStatusFailed:
		return true
	default:
		return false
	}
}
