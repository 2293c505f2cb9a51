// Package executor implements the ActionExecutor: dispatching a validated
// models.ActionBatch to the device, one action at a time, recording a
// per-action success outcome and honoring stop_on_error/wait_between_actions.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/crawlforge/pkg/device"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
)

// Device is the narrow set of device operations ActionExecutor needs. A
// *device.Client satisfies it; tests use a fake.
type Device interface {
	Tap(ctx context.Context, target device.Target) error
	InputText(ctx context.Context, target device.Target, text string) error
	LongPress(ctx context.Context, target device.Target, durationMs int) error
	DoubleTap(ctx context.Context, target device.Target) error
	ClearText(ctx context.Context, target device.Target) error
	ReplaceText(ctx context.Context, target device.Target, text string) error
	Scroll(ctx context.Context, dir device.Direction) error
	Swipe(ctx context.Context, dir device.Direction) error
	Flick(ctx context.Context, dir device.Direction) error
	Back(ctx context.Context) error
	ResetApp(ctx context.Context) error
}

// defaultLongPressDurationMs is used when an Action omits DurationMs.
const defaultLongPressDurationMs = 800

// Result is the outcome of one ExecuteBatch call.
type Result struct {
	ExecutedCount    int
	PerActionSuccess []bool
	BatchError       error
}

// Success reports whether every executed action succeeded and at least one
// action ran.
func (r Result) Success() bool {
	if r.ExecutedCount == 0 {
		return false
	}
	for _, ok := range r.PerActionSuccess {
		if !ok {
			return false
		}
	}
	return true
}

// Executor dispatches Actions to a Device.
type Executor struct {
	device Device
}

// New builds an Executor around dev.
func New(dev Device) *Executor {
	return &Executor{device: dev}
}

// ExecuteBatch runs each action in order, sleeping waitBetween after every
// successful action except the last. When stopOnError is set, the first failure halts the
// batch; otherwise every action runs regardless of prior outcomes. Overall
// batch success is the conjunction of per-action successes, evaluated by the
// caller via Result.Success.
func (e *Executor) ExecuteBatch(ctx context.Context, actions []models.Action, waitBetween time.Duration, stopOnError bool) Result {
	result := Result{PerActionSuccess: make([]bool, 0, len(actions))}

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			result.BatchError = err
			return result
		}

		err := e.dispatch(ctx, action)
		success := err == nil
		result.PerActionSuccess = append(result.PerActionSuccess, success)
		result.ExecutedCount++

		if !success && stopOnError {
			result.BatchError = fmt.Errorf("action %d (%s) failed: %w", i, action.Kind, err)
			return result
		}

		if success && i < len(actions)-1 && waitBetween > 0 {
			select {
			case <-ctx.Done():
				result.BatchError = ctx.Err()
				return result
			case <-time.After(waitBetween):
			}
		}
	}

	return result
}

// dispatch normalizes an Action's generic kind and routes it to the Device
// method implementing its per-kind policy.
func (e *Executor) dispatch(ctx context.Context, action models.Action) error {
	target := actionTarget(action)
	kind := normalizeKind(action)

	switch kind {
	case models.ActionClick:
		return e.device.Tap(ctx, target)

	case models.ActionInput:
		if err := e.device.Tap(ctx, target); err != nil {
			return err
		}
		return e.device.InputText(ctx, target, action.Text)

	case models.ActionLongPress:
		duration := defaultLongPressDurationMs
		if action.DurationMs != nil {
			duration = *action.DurationMs
		}
		return e.device.LongPress(ctx, target, duration)

	case models.ActionDoubleTap:
		return e.device.DoubleTap(ctx, target)

	case models.ActionClearText:
		return e.device.ClearText(ctx, target)

	case models.ActionReplaceText:
		return e.device.ReplaceText(ctx, target, action.Text)

	case models.ActionScrollUp:
		return e.device.Scroll(ctx, device.Up)
	case models.ActionScrollDown:
		return e.device.Scroll(ctx, device.Down)

	case models.ActionSwipeLeft:
		return e.device.Swipe(ctx, device.Left)
	case models.ActionSwipeRight:
		return e.device.Swipe(ctx, device.Right)

	case models.ActionFlick:
		return e.device.Flick(ctx, inferDirection(action, device.Down))

	case models.ActionBack:
		return e.device.Back(ctx)

	case models.ActionResetApp:
		return e.device.ResetApp(ctx)

	default:
		return fmt.Errorf("executor: unhandled action kind %q", action.Kind)
	}
}

// actionTarget projects an Action's target identifier and optional
// bounding box into a device.Target for the tap/input ladders.
func actionTarget(action models.Action) device.Target {
	t := device.Target{ID: action.Target}
	if action.BoundingBox != nil {
		t.Box = &struct{ X1, Y1, X2, Y2 int }{
			X1: action.BoundingBox.TopLeft.X,
			Y1: action.BoundingBox.TopLeft.Y,
			X2: action.BoundingBox.BottomRight.X,
			Y2: action.BoundingBox.BottomRight.Y,
		}
	}
	return t
}

// normalizeKind maps the bare generic kind "scroll"/"swipe" (accepted from
// older prompt revisions) onto the directional kind the rest of the
// executor understands, using a text heuristic over reasoning/target.
func normalizeKind(action models.Action) models.ActionKind {
	switch action.Kind {
	case "scroll":
		if inferDirection(action, device.Down) == device.Up {
			return models.ActionScrollUp
		}
		return models.ActionScrollDown
	case "swipe":
		if inferDirection(action, device.Left) == device.Right {
			return models.ActionSwipeRight
		}
		return models.ActionSwipeLeft
	default:
		return action.Kind
	}
}

// inferDirection looks for a direction word in the action's target or
// reasoning text, falling back to fallback when none is found.
func inferDirection(action models.Action, fallback device.Direction) device.Direction {
	haystack := strings.ToLower(action.Target + " " + action.Reasoning)
	switch {
	case strings.Contains(haystack, "up"):
		return device.Up
	case strings.Contains(haystack, "down"):
		return device.Down
	case strings.Contains(haystack, "left"):
		return device.Left
	case strings.Contains(haystack, "right"):
		return device.Right
	default:
		return fallback
	}
}
