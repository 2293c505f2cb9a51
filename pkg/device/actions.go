package device

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// strategyResult is the three-valued outcome of one fallback-ladder rung.
type strategyResult int

const (
	ok strategyResult = iota
	tryNext
	fatal
)

// Target selects an element for Tap/InputText by decreasing priority:
// explicit coordinates win over a bounding box, which wins over a
// resource id.
type Target struct {
	X, Y int
	Box  *struct{ X1, Y1, X2, Y2 int }
	ID   string
}

func (t Target) hasCoords() bool { return t.X != 0 || t.Y != 0 }
func (t Target) hasBox() bool    { return t.Box != nil }
func (t Target) hasID() bool     { return t.ID != "" }

// Tap dispatches a tap using coords > bbox > id priority, retrying against
// the next-priority strategy when one rung fails without being fatal.
func (c *Client) Tap(ctx context.Context, target Target) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}

	strategies := c.tapStrategies(sid, target)
	return c.runLadder(ctx, "tap", target.ID, strategies)
}

func (c *Client) tapStrategies(sid string, target Target) []func(context.Context) (strategyResult, error) {
	var strategies []func(context.Context) (strategyResult, error)

	if target.hasCoords() {
		strategies = append(strategies, func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/tap", map[string]any{"x": target.X, "y": target.Y})
			return classifyLadderStep(err)
		})
	}
	if target.hasBox() {
		cx := (target.Box.X1 + target.Box.X2) / 2
		cy := (target.Box.Y1 + target.Box.Y2) / 2
		strategies = append(strategies, func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/tap", map[string]any{"x": cx, "y": cy})
			return classifyLadderStep(err)
		})
	}
	if target.hasID() {
		strategies = append(strategies, func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/element/click", map[string]any{"using": "id", "value": target.ID})
			return classifyLadderStep(err)
		})
	}
	return strategies
}

// InputText enters text into target using a primary-then-fallback ladder:
// a direct element send_keys, then an action-chain keyboard send, then a
// raw IME send_keys as a last resort.
func (c *Client) InputText(ctx context.Context, target Target, text string) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}

	strategies := []func(context.Context) (strategyResult, error){
		func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/element/value", map[string]any{"using": "id", "value": target.ID, "text": text})
			return classifyLadderStep(err)
		},
		func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/actions", map[string]any{"text": text})
			return classifyLadderStep(err)
		},
		func(ctx context.Context) (strategyResult, error) {
			_, err := c.doJSON(ctx, "POST", "/session/"+sid+"/keys", map[string]any{"value": []string{text}})
			return classifyLadderStep(err)
		},
	}
	return c.runLadder(ctx, "input_text", target.ID, strategies)
}

// LongPress, DoubleTap, ClearText, and ReplaceText are single-strategy
// gesture/input operations — no fallback ladder, since the wire protocol
// offers only one way to express each.
func (c *Client) LongPress(ctx context.Context, target Target, durationMs int) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/touch/longclick", map[string]any{"x": target.X, "y": target.Y, "duration": durationMs})
	return c.wrapElementErr(target.ID, err)
}

func (c *Client) DoubleTap(ctx context.Context, target Target) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/touch/doubleclick", map[string]any{"x": target.X, "y": target.Y})
	return c.wrapElementErr(target.ID, err)
}

func (c *Client) ClearText(ctx context.Context, target Target) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/element/clear", map[string]any{"using": "id", "value": target.ID})
	return c.wrapElementErr(target.ID, err)
}

func (c *Client) ReplaceText(ctx context.Context, target Target, text string) error {
	if err := c.ClearText(ctx, target); err != nil {
		return err
	}
	return c.InputText(ctx, target, text)
}

// Scroll, Swipe, and Flick are gesture operations parameterized by direction.
func (c *Client) Scroll(ctx context.Context, dir Direction) error {
	return c.gesture(ctx, "scroll", dir)
}

func (c *Client) Swipe(ctx context.Context, dir Direction) error {
	return c.gesture(ctx, "swipe", dir)
}

func (c *Client) Flick(ctx context.Context, dir Direction) error {
	return c.gesture(ctx, "flick", dir)
}

func (c *Client) gesture(ctx context.Context, kind string, dir Direction) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/touch/"+kind, map[string]any{"direction": string(dir)})
	return c.wrapElementErr(string(dir), err)
}

// Back presses the device back button.
func (c *Client) Back(ctx context.Context) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/back", nil)
	return err
}

// ResetApp clears app state and relaunches it at its entry activity.
func (c *Client) ResetApp(ctx context.Context) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/appium/app/reset", nil)
	return err
}

func (c *Client) TerminateApp(ctx context.Context, appPackage string) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/appium/device/terminate_app", map[string]any{"appId": appPackage})
	return err
}

func (c *Client) LaunchApp(ctx context.Context) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/appium/app/launch", nil)
	return err
}

func (c *Client) StartActivity(ctx context.Context, appPackage, activity string) error {
	sid, err := c.requireSession()
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", "/session/"+sid+"/appium/device/start_activity", map[string]any{"appPackage": appPackage, "appActivity": activity})
	return err
}

// runLadder executes strategies in priority order, moving to the next rung
// only when the current one reports tryNext; a fatal or nil result stops
// the ladder immediately.
func (c *Client) runLadder(ctx context.Context, op, target string, strategies []func(context.Context) (strategyResult, error)) error {
	if len(strategies) == 0 {
		return &ElementError{Target: target, Err: fmt.Errorf("%s: no usable locator", op)}
	}
	var lastErr error
	for _, strategy := range strategies {
		result, err := strategy(ctx)
		switch result {
		case ok:
			return nil
		case fatal:
			return &ElementError{Target: target, Err: err}
		case tryNext:
			lastErr = err
			continue
		}
	}
	return &ElementError{Target: target, Err: fmt.Errorf("%s: exhausted all strategies: %w", op, lastErr)}
}

// classifyLadderStep maps one rung's error onto a ladder outcome. Only a
// transport failure reported by the HTTP client is fatal; an error status
// answered by the server moves the ladder on to the next rung.
func classifyLadderStep(err error) (strategyResult, error) {
	if err == nil {
		return ok, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && ClassifyError(err) == RetryNewSession {
		return fatal, err
	}
	return tryNext, err
}

func (c *Client) wrapElementErr(target string, err error) error {
	if err == nil {
		return nil
	}
	return &ElementError{Target: target, Err: err}
}
