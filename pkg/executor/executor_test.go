package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeready-toolchain/crawlforge/pkg/device"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	tapErr        error
	inputErr      error
	longPressErr  error
	doubleTapErr  error
	clearTextErr  error
	replaceErr    error
	scrollErr     error
	swipeErr      error
	flickErr      error
	backErr       error
	resetErr      error
	tapCalls      []device.Target
	inputCalls    []string
	scrollDirs    []device.Direction
	swipeDirs     []device.Direction
	flickDirs     []device.Direction
	longPressDurs []int
}

func (f *fakeDevice) Tap(ctx context.Context, target device.Target) error {
	f.tapCalls = append(f.tapCalls, target)
	return f.tapErr
}
func (f *fakeDevice) InputText(ctx context.Context, target device.Target, text string) error {
	f.inputCalls = append(f.inputCalls, text)
	return f.inputErr
}
func (f *fakeDevice) LongPress(ctx context.Context, target device.Target, durationMs int) error {
	f.longPressDurs = append(f.longPressDurs, durationMs)
	return f.longPressErr
}
func (f *fakeDevice) DoubleTap(ctx context.Context, target device.Target) error { return f.doubleTapErr }
func (f *fakeDevice) ClearText(ctx context.Context, target device.Target) error { return f.clearTextErr }
func (f *fakeDevice) ReplaceText(ctx context.Context, target device.Target, text string) error {
	return f.replaceErr
}
func (f *fakeDevice) Scroll(ctx context.Context, dir device.Direction) error {
	f.scrollDirs = append(f.scrollDirs, dir)
	return f.scrollErr
}
func (f *fakeDevice) Swipe(ctx context.Context, dir device.Direction) error {
	f.swipeDirs = append(f.swipeDirs, dir)
	return f.swipeErr
}
func (f *fakeDevice) Flick(ctx context.Context, dir device.Direction) error {
	f.flickDirs = append(f.flickDirs, dir)
	return f.flickErr
}
func (f *fakeDevice) Back(ctx context.Context) error     { return f.backErr }
func (f *fakeDevice) ResetApp(ctx context.Context) error { return f.resetErr }

func TestExecuteBatch_ClickForwardsBoundingBoxAndIdentifier(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionClick, Target: "login_btn", BoundingBox: &models.BoundingBox{
			TopLeft: models.Point{X: 1, Y: 2}, BottomRight: models.Point{X: 3, Y: 4},
		}},
	}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	require.True(t, result.Success())
	require.Len(t, fd.tapCalls, 1)
	assert.NotNil(t, fd.tapCalls[0].Box)
	assert.Equal(t, "login_btn", fd.tapCalls[0].ID)
}

func TestExecuteBatch_InputTapsThenTypes(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionInput, Target: "email_field", Text: "user@example.com"},
	}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	require.True(t, result.Success())
	assert.Len(t, fd.tapCalls, 1)
	require.Len(t, fd.inputCalls, 1)
	assert.Equal(t, "user@example.com", fd.inputCalls[0])
}

func TestExecuteBatch_InputStopsIfTapFails(t *testing.T) {
	fd := &fakeDevice{tapErr: errors.New("no such element")}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionInput, Target: "x", Text: "y"}}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	assert.False(t, result.Success())
	assert.Empty(t, fd.inputCalls)
}

func TestExecuteBatch_LongPressDefaultDuration(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionLongPress, Target: "x"}}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.longPressDurs, 1)
	assert.Equal(t, defaultLongPressDurationMs, fd.longPressDurs[0])
}

func TestExecuteBatch_LongPressHonorsExplicitDuration(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	d := 1500
	actions := []models.Action{{Kind: models.ActionLongPress, Target: "x", DurationMs: &d}}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.longPressDurs, 1)
	assert.Equal(t, 1500, fd.longPressDurs[0])
}

func TestExecuteBatch_ScrollDirectionsMapDirectly(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionScrollUp, Reasoning: "go up"},
		{Kind: models.ActionScrollDown, Reasoning: "go down"},
	}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.scrollDirs, 2)
	assert.Equal(t, device.Up, fd.scrollDirs[0])
	assert.Equal(t, device.Down, fd.scrollDirs[1])
}

func TestExecuteBatch_FlickDirectionInferredFromReasoning(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionFlick, Reasoning: "flick left to dismiss card"}}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.flickDirs, 1)
	assert.Equal(t, device.Left, fd.flickDirs[0])
}

func TestExecuteBatch_FlickDefaultsDownWithNoHeuristicMatch(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionFlick, Reasoning: "dismiss the card"}}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.flickDirs, 1)
	assert.Equal(t, device.Down, fd.flickDirs[0])
}

func TestExecuteBatch_GenericScrollNormalizedViaHeuristic(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: "scroll", Reasoning: "scroll up to find the header"}}
	e.ExecuteBatch(context.Background(), actions, 0, false)
	require.Len(t, fd.scrollDirs, 1)
	assert.Equal(t, device.Up, fd.scrollDirs[0])
}

func TestExecuteBatch_StopOnErrorHaltsBatch(t *testing.T) {
	fd := &fakeDevice{tapErr: errors.New("boom")}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionClick, Target: "a"},
		{Kind: models.ActionClick, Target: "b"},
	}
	result := e.ExecuteBatch(context.Background(), actions, 0, true)
	assert.Equal(t, 1, result.ExecutedCount)
	assert.Error(t, result.BatchError)
	assert.Len(t, fd.tapCalls, 1)
}

func TestExecuteBatch_ContinuesPastErrorsWhenNotStopOnError(t *testing.T) {
	fd := &fakeDevice{tapErr: errors.New("boom")}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionClick, Target: "a"},
		{Kind: models.ActionBack},
	}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	assert.Equal(t, 2, result.ExecutedCount)
	assert.Len(t, result.PerActionSuccess, 2)
	assert.False(t, result.PerActionSuccess[0])
	assert.True(t, result.PerActionSuccess[1])
	assert.False(t, result.Success())
}

func TestExecuteBatch_WaitsBetweenSuccessfulActions(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionBack},
		{Kind: models.ActionBack},
	}
	start := time.Now()
	e.ExecuteBatch(context.Background(), actions, 20*time.Millisecond, false)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestExecuteBatch_NoWaitAfterFinalAction(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionBack}}
	start := time.Now()
	e.ExecuteBatch(context.Background(), actions, 50*time.Millisecond, false)
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestExecuteBatch_ReplaceTextDelegatesToDevice(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{{Kind: models.ActionReplaceText, Target: "x", Text: "new"}}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	assert.True(t, result.Success())
}

func TestExecuteBatch_ResetAppAndBackTakeNoParams(t *testing.T) {
	fd := &fakeDevice{}
	e := New(fd)
	actions := []models.Action{
		{Kind: models.ActionResetApp},
		{Kind: models.ActionBack},
	}
	result := e.ExecuteBatch(context.Background(), actions, 0, false)
	assert.True(t, result.Success())
}
