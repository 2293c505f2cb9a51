// Package flagcontrol implements file-flag based external control of a crawl
// run: a supervising process can signal shutdown, pause, or single-step
// gating by creating or removing marker files, without any IPC channel to
// the crawl loop.
package flagcontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FlagKind identifies one of the four marker-file signals.
type FlagKind string

const (
	// Shutdown, once observed, is never auto-removed; a new run must clear it at start.
	Shutdown FlagKind = "shutdown"
	// Pause holds the loop in a busy-wait until removed.
	Pause FlagKind = "pause"
	// StepGate, present after a step, blocks the loop until ContinueGate appears.
	StepGate FlagKind = "step_gate"
	// ContinueGate is consumed (removed) by the loop once observed under StepGate.
	ContinueGate FlagKind = "continue_gate"
)

var allKinds = [...]FlagKind{Shutdown, Pause, StepGate, ContinueGate}

// FlagController watches and creates named marker files under a single
// directory, one file per signal. Filesystem errors on check are treated as
// "absent"; errors on create/remove are logged and ignored, since every
// signal here is advisory rather than authoritative state.
type FlagController struct {
	dir   string
	paths map[FlagKind]string
}

// New creates a FlagController rooted at dir, ensuring the directory exists.
func New(dir string) (*FlagController, error) {
	if dir == "" {
		return nil, errors.New("flagcontrol: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flagcontrol: create directory: %w", err)
	}

	paths := make(map[FlagKind]string, len(allKinds))
	for _, k := range allKinds {
		paths[k] = filepath.Join(dir, string(k)+".flag")
	}
	return &FlagController{dir: dir, paths: paths}, nil
}

// Exists reports whether the marker file for kind is present. Any stat error
// (missing file, permission denied, etc.) is treated as absent.
func (f *FlagController) Exists(kind FlagKind) bool {
	_, err := os.Stat(f.paths[kind])
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("flagcontrol: stat failed, treating as absent", "kind", kind, "error", err)
	}
	return err == nil
}

// Create writes the marker file for kind. Errors are logged and otherwise
// ignored — a failed advisory signal should never abort a crawl.
func (f *FlagController) Create(kind FlagKind) {
	file, err := os.Create(f.paths[kind])
	if err != nil {
		slog.Warn("flagcontrol: create failed", "kind", kind, "error", err)
		return
	}
	_ = file.Close()
}

// Remove deletes the marker file for kind if present. Errors are logged and
// otherwise ignored.
func (f *FlagController) Remove(kind FlagKind) {
	if err := os.Remove(f.paths[kind]); err != nil && !os.IsNotExist(err) {
		slog.Warn("flagcontrol: remove failed", "kind", kind, "error", err)
	}
}

// WaitUntilAbsent blocks until the marker file for kind is gone or ctx is
// cancelled. Used by CrawlLoop for the Pause signal. It watches the flag
// directory via
// fsnotify to avoid busy-polling; if the watcher cannot be established
// (directory missing, inotify exhausted, etc.) it falls back to polling
// every interval, since the absent/present semantics must hold either way.
func (f *FlagController) WaitUntilAbsent(ctx context.Context, kind FlagKind, interval time.Duration) error {
	if !f.Exists(kind) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("flagcontrol: fsnotify unavailable, falling back to polling", "kind", kind, "error", err)
		return f.pollUntilAbsent(ctx, kind, interval)
	}
	defer watcher.Close()

	if err := watcher.Add(f.dir); err != nil {
		slog.Warn("flagcontrol: fsnotify watch failed, falling back to polling", "kind", kind, "error", err)
		return f.pollUntilAbsent(ctx, kind, interval)
	}

	// A ticker still backstops the watch: a missed event (e.g. the file was
	// removed and recreated between Add and the first Events read) must
	// never wedge the loop.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !f.Exists(kind) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-watcher.Events:
			if !ok {
				return f.pollUntilAbsent(ctx, kind, interval)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return f.pollUntilAbsent(ctx, kind, interval)
			}
		case <-ticker.C:
		}
	}
}

// pollUntilAbsent is the busy-wait fallback used when fsnotify cannot be
// established.
func (f *FlagController) pollUntilAbsent(ctx context.Context, kind FlagKind, interval time.Duration) error {
	if !f.Exists(kind) {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !f.Exists(kind) {
				return nil
			}
		}
	}
}
