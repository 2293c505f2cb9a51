package prompt

import "strings"

// actionKindDescriptions is the fixed, one-line-per-kind enumeration of
// available actions that appears in every prompt's static section.
var actionKindDescriptions = []struct {
	Kind string
	Desc string
}{
	{"click", "Tap a single element, identified by bounding box or element id."},
	{"input", "Focus a field and type text into it."},
	{"long_press", "Press and hold an element for a duration."},
	{"double_tap", "Tap an element twice in quick succession."},
	{"clear_text", "Clear the contents of a text field."},
	{"replace_text", "Clear a text field then type new text into it."},
	{"scroll_up", "Scroll the current screen upward."},
	{"scroll_down", "Scroll the current screen downward."},
	{"swipe_left", "Swipe the current screen to the left."},
	{"swipe_right", "Swipe the current screen to the right."},
	{"flick", "Flick the screen in a direction, inferred if not given."},
	{"back", "Press the device back button."},
	{"reset_app", "Clear app state and relaunch at its entry point."},
}

// formatInstructions is the fixed section describing the required JSON
// output schema, the enumerated actions, journal rules, and target-
// identifier rules. It never changes between steps — it is not templated
// by run data.
func formatInstructions() string {
	var sb strings.Builder
	sb.WriteString("## Response Format\n\n")
	sb.WriteString("Respond with a single JSON object matching this schema:\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{
  "exploration_journal": string,
  "actions": [
    {
      "action": string,
      "action_desc"?: string,
      "target_identifier"?: string,
      "target_bounding_box"?: {"top_left": [x, y], "bottom_right": [x, y]},
      "input_text"?: string,
      "reasoning": string
    }
  ],
  "signup_completed"?: boolean
}`)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## Available Actions\n\n")
	for _, a := range actionKindDescriptions {
		sb.WriteString("- `")
		sb.WriteString(a.Kind)
		sb.WriteString("`: ")
		sb.WriteString(a.Desc)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Journal Rules\n\n")
	sb.WriteString("`exploration_journal` is your running narrative of what you have tried and learned. ")
	sb.WriteString("Keep it concise; it is carried forward into every future step.\n\n")

	sb.WriteString("## Target Identifier Rules\n\n")
	sb.WriteString("`target_identifier` must be a UI-tree element id, an OCR reference of the form `ocr_<index>`, ")
	sb.WriteString("or omitted (null) for actions whose kind is global (`scroll_*`, `swipe_*`, `back`, `reset_app`).\n")

	return sb.String()
}
