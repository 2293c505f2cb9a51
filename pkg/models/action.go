package models

// ActionKind enumerates the atomic intents a single Action may express.
type ActionKind string

const (
	ActionClick      ActionKind = "click"
	ActionInput      ActionKind = "input"
	ActionLongPress  ActionKind = "long_press"
	ActionDoubleTap  ActionKind = "double_tap"
	ActionClearText  ActionKind = "clear_text"
	ActionReplaceText ActionKind = "replace_text"
	ActionScrollUp   ActionKind = "scroll_up"
	ActionScrollDown ActionKind = "scroll_down"
	ActionSwipeLeft  ActionKind = "swipe_left"
	ActionSwipeRight ActionKind = "swipe_right"
	ActionFlick      ActionKind = "flick"
	ActionBack       ActionKind = "back"
	ActionResetApp   ActionKind = "reset_app"
)

// validActionKinds is used by ActionBatchParser to reject unrecognized kinds.
var validActionKinds = map[ActionKind]bool{
	ActionClick:       true,
	ActionInput:       true,
	ActionLongPress:   true,
	ActionDoubleTap:   true,
	ActionClearText:   true,
	ActionReplaceText: true,
	ActionScrollUp:    true,
	ActionScrollDown:  true,
	ActionSwipeLeft:   true,
	ActionSwipeRight:  true,
	ActionFlick:       true,
	ActionBack:        true,
	ActionResetApp:    true,
}

// IsValidActionKind reports whether kind is one of the recognized Action kinds.
func IsValidActionKind(kind ActionKind) bool {
	return validActionKinds[kind]
}

// Point is a pixel coordinate pair on the device screen.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox delimits a UI element on screen, used when a target was located
// by OCR rather than by UI-tree element id.
type BoundingBox struct {
	TopLeft     Point `json:"top_left"`
	BottomRight Point `json:"bottom_right"`
}

// Action is a single atomic intent returned by the LLM for one step of a
// batch. Target may be a UI-tree element id or an OCR reference of the form
// "ocr_<index>".
type Action struct {
	Kind        ActionKind   `json:"kind"`
	Target      string       `json:"target,omitempty"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	Text        string       `json:"text,omitempty"`
	DurationMs  *int         `json:"duration_ms,omitempty"`
	Reasoning   string       `json:"reasoning,omitempty"`
}

// ActionBatch is the ordered sequence of 1-12 Actions the LLM returns for a
// single step, plus its possibly-updated journal and an optional signal that
// signup has completed.
type ActionBatch struct {
	Actions          []Action `json:"actions"`
	Journal          string   `json:"journal,omitempty"`
	SignupCompleted  bool     `json:"signup_completed,omitempty"`
}

// MinActionsPerBatch and MaxActionsPerBatch bound a valid ActionBatch.
const (
	MinActionsPerBatch = 1
	MaxActionsPerBatch = 12
)
