// Package prompt assembles the full LLM prompt for a single crawl step:
// a fixed static section (instructions, output schema, available actions,
// journal rules, target-identifier rules) followed by the ten ordered
// dynamic sections describing the current screen and run history.
package prompt

import "strings"

// Input is every piece of per-step data PromptBuilder needs. Deterministic:
// the same Input always produces the same prompt text — no wall clock, no
// randomness in the templating path.
type Input struct {
	Instructions          string
	LastScreenshotBlocked bool
	VisitCount            int
	LastActionOutcome     string
	UITreeJSON            string
	OCR                   []OCRItem
	StuckReason           string
	Journal               string
	TriedActions          []TriedAction
	HasCredentials        bool
	Credentials           CredentialBlock
	Signup                SignupBlock
	Task                  string
}

// Builder is the PromptBuilder.
type Builder struct{}

// New constructs a Builder. Stateless — safe for concurrent use, though the
// crawl loop never calls it concurrently.
func New() *Builder {
	return &Builder{}
}

// Format assembles the full prompt for in.
func (b *Builder) Format(in Input) string {
	var sb strings.Builder

	if in.Instructions != "" {
		sb.WriteString(in.Instructions)
		sb.WriteString("\n\n")
	}
	sb.WriteString(formatInstructions())
	sb.WriteString("\n")

	sections := []string{
		formatSyntheticScreenshotNotice(in.LastScreenshotBlocked),
		formatVisitCount(in.VisitCount),
		formatLastActionOutcome(in.LastActionOutcome),
		formatUIElementsBlock(in.UITreeJSON),
		formatOCRBlock(in.OCR),
		formatStuckNotice(in.StuckReason),
		formatJournal(in.Journal),
		formatTriedActions(in.TriedActions),
		formatAuthStrategy(in.HasCredentials, in.Credentials, in.Signup),
		formatTaskLine(in.Task),
	}

	for _, section := range sections {
		if section == "" {
			continue
		}
		sb.WriteString(section)
		sb.WriteString("\n")
	}

	return sb.String()
}
