package prompt

import (
	"fmt"
	"strings"
)

// OCRItem is a single recognized text region, indexable as "ocr_<index>".
type OCRItem struct {
	Index int
	Text  string
	X1, Y1, X2, Y2 int
}

// TriedAction is one action already attempted on the current screen.
type TriedAction struct {
	Description   string
	LandedScreen   int64
	Navigated      bool
}

// CredentialBlock carries stored login values, used when the target app
// already has a CredentialStore entry.
type CredentialBlock struct {
	Email    string
	Password string
	Name     string
}

// SignupBlock carries configured test values for a fresh signup, used when
// the target app has no CredentialStore entry yet.
type SignupBlock struct {
	Email    string
	Password string
	Name     string
}

func formatSyntheticScreenshotNotice(blocked bool) string {
	if !blocked {
		return ""
	}
	return "## Notice\n\nThe last screenshot capture was blocked by the device (secure screen). " +
		"A synthetic placeholder image was used; rely on the UI-elements block below instead of pixels.\n"
}

func formatVisitCount(count int) string {
	return fmt.Sprintf("## Current Screen\n\nYou have visited this screen %d time(s) this run.\n", count)
}

func formatLastActionOutcome(outcome string) string {
	if outcome == "" {
		return "## Last Action Outcome\n\nThis is the first step of the run.\n"
	}
	return "## Last Action Outcome\n\n" + outcome + "\n"
}

func formatUIElementsBlock(uiTreeJSON string) string {
	if uiTreeJSON == "" {
		return "## UI Elements\n\nNo UI elements were captured for this screen.\n"
	}
	var sb strings.Builder
	sb.WriteString("## UI Elements\n\n```json\n")
	sb.WriteString(uiTreeJSON)
	sb.WriteString("\n```\n")
	return sb.String()
}

func formatOCRBlock(items []OCRItem) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## OCR Text\n\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("ocr_%d = %q [(%d,%d),(%d,%d)]\n", item.Index, item.Text, item.X1, item.Y1, item.X2, item.Y2))
	}
	return sb.String()
}

func formatStuckNotice(reason string) string {
	if reason == "" {
		return ""
	}
	return "## Stuck Detection\n\n⚠ STUCK DETECTED: " + reason + ". Try a substantially different action.\n"
}

func formatJournal(journal string) string {
	if journal == "" {
		journal = "[]"
	}
	return "## Exploration Journal\n\n```json\n" + journal + "\n```\n"
}

func formatTriedActions(tried []TriedAction) string {
	if len(tried) == 0 {
		return "## Already Tried On This Screen\n\nNothing has been tried on this screen yet.\n"
	}
	start := 0
	if len(tried) > 8 {
		start = len(tried) - 8
	}
	var sb strings.Builder
	sb.WriteString("## Already Tried On This Screen\n\n")
	for _, t := range tried[start:] {
		sb.WriteString("- ")
		sb.WriteString(t.Description)
		sb.WriteString(": ")
		if t.Navigated {
			sb.WriteString(fmt.Sprintf("landed on screen #%d\n", t.LandedScreen))
		} else {
			sb.WriteString("ineffective\n")
		}
	}
	return sb.String()
}

func formatAuthStrategy(hasCredentials bool, creds CredentialBlock, signup SignupBlock) string {
	var sb strings.Builder
	if hasCredentials {
		sb.WriteString("## Authentication Strategy: LOGIN\n\n")
		sb.WriteString("Stored credentials are available for this app. Use them to log in:\n\n")
		sb.WriteString(fmt.Sprintf("- email: %s\n- password: %s\n", creds.Email, creds.Password))
		if creds.Name != "" {
			sb.WriteString(fmt.Sprintf("- name: %s\n", creds.Name))
		}
		return sb.String()
	}

	sb.WriteString("## Authentication Strategy: SIGNUP\n\n")
	sb.WriteString("No stored credentials exist for this app. If you encounter a signup flow, use these test values:\n\n")
	sb.WriteString(fmt.Sprintf("- email: %s\n- password: %s\n", signup.Email, signup.Password))
	if signup.Name != "" {
		sb.WriteString(fmt.Sprintf("- name: %s\n", signup.Name))
	}
	sb.WriteString("\nSet `signup_completed: true` in your response once signup succeeds.\n")
	return sb.String()
}

func formatTaskLine(task string) string {
	return "## Task\n\n" + task + "\n"
}
