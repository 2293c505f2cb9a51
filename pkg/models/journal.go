package models

// Journal is the per-run compressed free-text memory maintained by the LLM.
// Text is bounded by a configurable maximum character length; the system
// never edits it directly, only stores whatever the LLM returns in an
// ActionBatch.Journal field.
type Journal struct {
	RunID int64  `json:"run_id"`
	Text  string `json:"text"`
}
