package crawlloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/crawlforge/pkg/executor"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/codeready-toolchain/crawlforge/pkg/stuckdetector"
)

func TestDescribeActions(t *testing.T) {
	acts := []models.Action{
		{Kind: models.ActionClick, Target: "btn1"},
		{Kind: models.ActionBack},
	}
	assert.Equal(t, "click(btn1); back", describeActions(acts))
}

func TestTruncateJournal(t *testing.T) {
	assert.Equal(t, "hello", truncateJournal("hello", 0))
	assert.Equal(t, "hello", truncateJournal("hello", 10))
	assert.Equal(t, "hel", truncateJournal("hello", 3))
}

func TestComposeFeedback(t *testing.T) {
	step := &models.Step{FromScreenID: 1, ActionDescription: "click(btn1)"}

	failed := executor.Result{ExecutedCount: 1, PerActionSuccess: []bool{false}, BatchError: errors.New("tap failed")}
	assert.Contains(t, composeFeedback(step, failed, nil), "failed")

	navigated := int64(2)
	success := executor.Result{ExecutedCount: 1, PerActionSuccess: []bool{true}}
	assert.Contains(t, composeFeedback(step, success, &navigated), "navigated")

	sameScreen := int64(1)
	assert.Contains(t, composeFeedback(step, success, &sameScreen), "same screen")
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "te***@example.com", maskEmail("test@example.com"))
	assert.Equal(t, "***", maskEmail("a@b.com"))
	assert.Equal(t, "***", maskEmail("noatsign"))
}

func TestToActionRecords_ReversesToMostRecentFirst(t *testing.T) {
	chronological := []models.Step{
		{FromScreenID: 1, Success: true},
		{FromScreenID: 2, Success: false},
		{FromScreenID: 3, Success: true},
	}
	records := toActionRecords(chronological)
	assert.Equal(t, []int64{3, 2, 1}, []int64{records[0].FromScreenID, records[1].FromScreenID, records[2].FromScreenID})
}

func TestUITreeJSON_EmptyOnMalformedXML(t *testing.T) {
	assert.Equal(t, "", uiTreeJSON(""))
	assert.Equal(t, "", uiTreeJSON("not xml at all <<<"))
}

func TestUITreeJSON_ParsesValidTree(t *testing.T) {
	out := uiTreeJSON(`<node class="android.widget.Button" resource-id="btn1" text="Go"/>`)
	assert.Contains(t, out, "btn1")
	assert.Contains(t, out, "Go")
}

var _ = stuckdetector.ActionRecord{}
