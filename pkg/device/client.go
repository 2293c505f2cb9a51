// Package device implements a thin WebDriver/Appium JSON-wire-protocol
// client: session lifecycle, screenshot/UI-tree capture, input dispatch,
// and app-context checks. It owns the remote automation session exclusively
// — callers serialize all calls (the crawl loop is single-threaded) and the
// client makes no concurrency guarantees of its own.
package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// SessionState is the DeviceClient session lifecycle.
type SessionState int

const (
	Uninitialized SessionState = iota
	Connected
	Running
	Recovering
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Connected:
		return "CONNECTED"
	case Running:
		return "RUNNING"
	case Recovering:
		return "RECOVERING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Blocked is the sentinel returned by GetScreenshotBytes when the device
// reports a secure-screen flag (or, absent an explicit flag, when the
// captured payload is implausibly short).
var Blocked = []byte("BLOCKED")

const blockedByteThreshold = 200

// Direction is a scroll/swipe/flick direction.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Client is the DeviceClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int

	mu         sync.Mutex
	state      SessionState
	sessionID  string
	appPackage string
	appEntry   string
	deviceID   string
}

// New constructs a Client pointed at a WebDriver-compatible server.
func New(baseURL string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		state:      Uninitialized,
	}
}

// State returns the current session state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InitializeSession opens a new automation session for appPackage/appEntry.
// Idempotent: if already connected to the same target, it is a no-op.
// deviceID may be empty to auto-detect.
func (c *Client) InitializeSession(ctx context.Context, appPackage, appEntry, deviceID string) error {
	c.mu.Lock()
	if c.state == Connected || c.state == Running {
		if c.appPackage == appPackage {
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	caps := map[string]any{
		"appPackage":   appPackage,
		"appActivity":  appEntry,
		"deviceId":     deviceID,
		"autoGrantPermissions": true,
	}
	resp, err := c.doJSON(ctx, http.MethodPost, "/session", map[string]any{"capabilities": caps})
	if err != nil {
		return &SessionError{Op: "initialize_session", Err: err}
	}

	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(resp, &body); err != nil || body.SessionID == "" {
		return &SessionError{Op: "initialize_session", Err: fmt.Errorf("no sessionId in response")}
	}

	c.mu.Lock()
	c.sessionID = body.SessionID
	c.appPackage = appPackage
	c.appEntry = appEntry
	c.deviceID = deviceID
	c.state = Connected
	c.mu.Unlock()
	return nil
}

// ValidateSession performs a lightweight probe of the current session,
// triggering recovery on failure.
func (c *Client) ValidateSession(ctx context.Context) bool {
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if sid == "" {
		return false
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/session/"+sid+"/orientation", nil)
	if err != nil {
		c.transitionRecovering()
		return c.recover(ctx) == nil
	}
	c.mu.Lock()
	c.state = Running
	c.mu.Unlock()
	return true
}

func (c *Client) transitionRecovering() {
	c.mu.Lock()
	c.state = Recovering
	c.mu.Unlock()
}

// recover attempts reinitialization with the last-known capabilities, up to
// maxRetries, before surfacing a SessionError.
func (c *Client) recover(ctx context.Context) error {
	c.mu.Lock()
	appPackage, appEntry, deviceID := c.appPackage, c.appEntry, c.deviceID
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.InitializeSession(ctx, appPackage, appEntry, deviceID); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	c.mu.Lock()
	c.state = Closed
	c.mu.Unlock()
	return &SessionError{Op: "recover", Err: fmt.Errorf("exhausted %d retries: %w", c.maxRetries, lastErr)}
}

// Close terminates the session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	sid := c.sessionID
	c.state = Closed
	c.mu.Unlock()
	if sid == "" {
		return nil
	}
	_, err := c.doJSON(ctx, http.MethodDelete, "/session/"+sid, nil)
	return err
}

// GetScreenshotBytes returns the decoded screenshot, or Blocked when the
// device reports a secure-screen flag (or, absent that flag, when the
// payload is implausibly short).
func (c *Client) GetScreenshotBytes(ctx context.Context) ([]byte, error) {
	sid, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	resp, err := c.doJSON(ctx, http.MethodGet, "/session/"+sid+"/screenshot", nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Value         string `json:"value"`
		SecureContext *bool  `json:"secureContext,omitempty"`
	}
	if err := json.Unmarshal(resp, &body); err != nil {
		return nil, fmt.Errorf("device: decode screenshot response: %w", err)
	}
	if body.SecureContext != nil && *body.SecureContext {
		return Blocked, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(body.Value)
	if err != nil {
		return nil, fmt.Errorf("device: decode screenshot base64: %w", err)
	}
	if body.SecureContext == nil && len(decoded) < blockedByteThreshold {
		return Blocked, nil
	}
	return decoded, nil
}

// GetUITree returns the serialized UI-tree XML of the current screen.
func (c *Client) GetUITree(ctx context.Context) (string, error) {
	sid, err := c.requireSession()
	if err != nil {
		return "", err
	}
	resp, err := c.doJSON(ctx, http.MethodGet, "/session/"+sid+"/source", nil)
	if err != nil {
		return "", err
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(resp, &body); err != nil {
		return "", fmt.Errorf("device: decode ui tree response: %w", err)
	}
	return body.Value, nil
}

// GetCurrentPackage returns the foreground app package, best-effort.
func (c *Client) GetCurrentPackage(ctx context.Context) (string, error) {
	return c.stringValue(ctx, "/current_package")
}

// GetCurrentActivity returns the foreground activity name, best-effort.
func (c *Client) GetCurrentActivity(ctx context.Context) (string, error) {
	return c.stringValue(ctx, "/current_activity")
}

func (c *Client) stringValue(ctx context.Context, suffix string) (string, error) {
	sid, err := c.requireSession()
	if err != nil {
		return "", err
	}
	resp, err := c.doJSON(ctx, http.MethodGet, "/session/"+sid+suffix, nil)
	if err != nil {
		return "", err
	}
	var body struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(resp, &body)
	return body.Value, nil
}

func (c *Client) requireSession() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", &SessionError{Op: "require_session", Err: fmt.Errorf("no active session")}
	}
	return c.sessionID, nil
}

// doJSON issues a JSON-wire request and returns the raw response body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("device: %s %s: status %d: %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
