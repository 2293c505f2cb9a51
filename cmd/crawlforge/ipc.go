package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/crawlforge/pkg/events"
)

// ipcLine is the shape written to stdout in --subprocess-ipc mode, one per
// line, each prefixed with "JSON_IPC:" so a supervising process can split
// protocol lines from any other stdout noise without parsing the whole
// stream as JSON.
type ipcLine struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func emitIPC(kind string, payload any) {
	line := ipcLine{Type: kind, Timestamp: time.Now().UTC(), Payload: payload}
	b, err := json.Marshal(line)
	if err != nil {
		slog.Warn("ipc: marshal failed", "kind", kind, "error", err)
		return
	}
	fmt.Println("JSON_IPC:" + string(b))
}

// watchEvents subscribes to bus and turns its envelopes into the launcher
// contract's IPC line kinds (step start, screenshot ready, action executed,
// status change) when ipcMode is set; it always mirrors every envelope to
// the structured logger regardless of mode, since in-process callers and
// log aggregators both want visibility into run progress. It returns once
// ctx is cancelled or the subscriber channel closes (on Unsubscribe).
func watchEvents(ctx context.Context, bus *events.EventBus, subscriberID string, ipcMode bool) {
	ch := bus.Subscribe(subscriberID)
	defer bus.Unsubscribe(subscriberID)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			slog.Info("crawlforge: event", "type", env.Type, "run_id", env.RunID)
			if !ipcMode {
				continue
			}
			switch env.Type {
			case events.EventTypeStepStarted:
				emitIPC("step_start", env.Payload)
			case events.EventTypeScreenDiscovered:
				emitIPC("screenshot_ready", env.Payload)
			case events.EventTypeActionExecuted:
				emitIPC("action_executed", env.Payload)
			case events.EventTypeRunStarted, events.EventTypeRunCompleted, events.EventTypeRunPaused, events.EventTypeRunResumed:
				emitIPC("status_change", map[string]any{"event": env.Type, "payload": env.Payload})
			}
		}
	}
}

// ipcLogHandler wraps a slog.Handler so every log record is additionally
// emitted as a "log_line" IPC entry, satisfying the launcher contract's log
// line event kind without changing how logging behaves for in-process
// callers that never enable --subprocess-ipc.
type ipcLogHandler struct {
	slog.Handler
}

func (h ipcLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	emitIPC("log_line", map[string]any{
		"level":   r.Level.String(),
		"message": r.Message,
		"attrs":   attrs,
	})
	return h.Handler.Handle(ctx, r)
}

// exitCodeFor maps a Run() outcome to the launcher contract's process exit
// code: 0 completed, 1 internal error, 130 interrupted (the caller passes
// interrupted=true when the shutdown flag is present after Run returns;
// 130 follows the POSIX 128+SIGINT convention). A non-nil runErr, which
// includes ctx cancellation, maps to 1 even when interrupted is set.
func exitCodeFor(runErr error, interrupted bool) int {
	switch {
	case runErr != nil:
		return 1
	case interrupted:
		return 130
	default:
		return 0
	}
}
