package actions

import (
	"testing"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BatchShape(t *testing.T) {
	raw := `{
		"exploration_journal": "tried login",
		"actions": [
			{"action": "click", "target_identifier": "login_btn", "reasoning": "log in"}
		]
	}`
	batch, err := Parse(raw, nil)
	require.NoError(t, err)
	assert.Len(t, batch.Actions, 1)
	assert.Equal(t, models.ActionClick, batch.Actions[0].Kind)
	assert.Equal(t, "tried login", batch.Journal)
}

func TestParse_TolerantOfCodeFenceAndPreamble(t *testing.T) {
	raw := "Here is my decision:\n```json\n" + `{"exploration_journal":"x","actions":[{"action":"back","reasoning":"go back"}]}` + "\n```\nThanks"
	batch, err := Parse(raw, nil)
	require.NoError(t, err)
	assert.Len(t, batch.Actions, 1)
	assert.Equal(t, models.ActionBack, batch.Actions[0].Kind)
}

func TestParse_LegacySingleActionShape(t *testing.T) {
	raw := `{"action": "click", "target_identifier": "submit_btn", "reasoning": "submit form"}`
	batch, err := Parse(raw, nil)
	require.NoError(t, err)
	require.Len(t, batch.Actions, 1)
	assert.Equal(t, "submit_btn", batch.Actions[0].Target)
}

func TestParse_RepairsNearMissJSON(t *testing.T) {
	raw := `{"exploration_journal": "x", "actions": [{"action": "back", "reasoning": "go back",}],}`
	batch, err := Parse(raw, nil)
	require.NoError(t, err)
	assert.Len(t, batch.Actions, 1)
}

func TestParse_RejectsUnrecognizedActionKind(t *testing.T) {
	raw := `{"actions":[{"action":"teleport","reasoning":"x"}]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_RejectsMissingReasoning(t *testing.T) {
	raw := `{"actions":[{"action":"click","target_identifier":"a"}]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_RejectsMissingTargetForNonGlobalAction(t *testing.T) {
	raw := `{"actions":[{"action":"click","reasoning":"x"}]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_GlobalActionsAllowNullTarget(t *testing.T) {
	raw := `{"actions":[{"action":"scroll_down","reasoning":"explore more"}]}`
	batch, err := Parse(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionScrollDown, batch.Actions[0].Kind)
}

func TestParse_RejectsMissingInputTextForInputAction(t *testing.T) {
	raw := `{"actions":[{"action":"input","target_identifier":"email_field","reasoning":"enter email"}]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_RejectsOversizedBatch(t *testing.T) {
	raw := `{"actions":[`
	for i := 0; i < 13; i++ {
		if i > 0 {
			raw += ","
		}
		raw += `{"action":"back","reasoning":"go back"}`
	}
	raw += `]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_RejectsEmptyBatch(t *testing.T) {
	raw := `{"actions":[]}`
	_, err := Parse(raw, nil)
	assert.Error(t, err)
}

func TestParse_ResolvesOCRTargetToBoundingBox(t *testing.T) {
	raw := `{"actions":[{"action":"click","target_identifier":"ocr_2","reasoning":"tap recognized text"}]}`
	ocr := []OCRRef{
		{Index: 0, Box: models.BoundingBox{TopLeft: models.Point{X: 0, Y: 0}, BottomRight: models.Point{X: 10, Y: 10}}},
		{Index: 2, Box: models.BoundingBox{TopLeft: models.Point{X: 20, Y: 20}, BottomRight: models.Point{X: 40, Y: 40}}},
	}
	batch, err := Parse(raw, ocr)
	require.NoError(t, err)
	require.NotNil(t, batch.Actions[0].BoundingBox)
	assert.Equal(t, 20, batch.Actions[0].BoundingBox.TopLeft.X)
}

func TestParse_OutOfRangeOCRIndexLeavesBoundingBoxNil(t *testing.T) {
	raw := `{"actions":[{"action":"click","target_identifier":"ocr_9","reasoning":"tap recognized text"}]}`
	ocr := []OCRRef{{Index: 0, Box: models.BoundingBox{}}}
	batch, err := Parse(raw, ocr)
	require.NoError(t, err)
	assert.Nil(t, batch.Actions[0].BoundingBox)
}

func TestParse_ExplicitBoundingBoxTakesPrecedenceOverOCR(t *testing.T) {
	raw := `{"actions":[{"action":"click","target_identifier":"ocr_0","target_bounding_box":{"top_left":[1,2],"bottom_right":[3,4]},"reasoning":"x"}]}`
	ocr := []OCRRef{{Index: 0, Box: models.BoundingBox{TopLeft: models.Point{X: 99, Y: 99}}}}
	batch, err := Parse(raw, ocr)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Actions[0].BoundingBox.TopLeft.X)
}

func TestParse_EmptyResponseIsError(t *testing.T) {
	_, err := Parse("", nil)
	assert.Error(t, err)
}

func TestExtractJSON_NestedBracesAndStringsHandled(t *testing.T) {
	raw := `noise {"a": "b} {", "c": [1,2,3]} trailing`
	got := extractJSON(raw)
	assert.Equal(t, `{"a": "b} {", "c": [1,2,3]}`, got)
}
