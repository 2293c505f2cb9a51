// Package screenstate captures the device's current UI state, fingerprints
// it, and reconciles it against PersistenceStore's screen table, assigning
// a durable screen identity the rest of the crawl loop can reason about.
package screenstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeready-toolchain/crawlforge/pkg/fingerprint"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
)

// OCRResult is a single recognized text region, its box given in raw
// screenshot pixel coordinates.
type OCRResult struct {
	Text string
	Box  models.BoundingBox
}

// DeviceCapturer is the narrow slice of DeviceClient this package depends
// on — just enough to take a snapshot of the current screen.
type DeviceCapturer interface {
	GetScreenshotBytes(ctx context.Context) ([]byte, error)
	GetUITree(ctx context.Context) (string, error)
	GetCurrentActivity(ctx context.Context) (string, error)
}

// ScreenStore is the narrow slice of PersistenceStore this package depends on.
type ScreenStore interface {
	UpsertScreen(ctx context.Context, screen *models.Screen) (id int64, wasNew bool, err error)
	IncrementVisit(ctx context.Context, runID, screenID int64) (newCount int64, err error)
	VisitCount(ctx context.Context, runID, screenID int64) (int64, error)
}

// OCREngine recognizes text regions in a screenshot. Optional — a nil
// engine simply disables the OCR block.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) ([]OCRResult, error)
}

// CandidateScreen is an in-memory snapshot with proposed, not-yet-written
// on-disk paths. Nothing is persisted until ProcessAndRecordState runs.
type CandidateScreen struct {
	Activity      string
	CompositeHash string
	Screenshot    []byte
	Blocked       bool
	UITreeXML     string
	OCR           []OCRResult

	ScreenshotPath string
	UITreePath     string
	OCRCachePath   string
}

// FinalScreen is the persisted outcome of ProcessAndRecordState.
type FinalScreen struct {
	Screen     models.Screen
	WasNew     bool
	VisitCount int64
}

// Manager is the ScreenStateManager.
type Manager struct {
	device    DeviceCapturer
	store     ScreenStore
	sessionDir string
	ocr       OCREngine
}

// New constructs a Manager. ocr may be nil to disable OCR capture.
func New(device DeviceCapturer, store ScreenStore, sessionDir string, ocr OCREngine) *Manager {
	return &Manager{device: device, store: store, sessionDir: sessionDir, ocr: ocr}
}

// GetCurrentScreenRepresentation captures the live screenshot, UI tree, and
// optional OCR cache, and computes the composite hash. Returns nil, nil if
// the device cannot produce a UI tree at all (nothing to fingerprint).
func (m *Manager) GetCurrentScreenRepresentation(ctx context.Context, runID int64, step int) (*CandidateScreen, error) {
	shot, err := m.device.GetScreenshotBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenstate: capture screenshot: %w", err)
	}

	treeXML, err := m.device.GetUITree(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenstate: capture ui tree: %w", err)
	}
	if treeXML == "" {
		return nil, nil
	}

	activity, err := m.device.GetCurrentActivity(ctx)
	if err != nil {
		activity = ""
	}

	root, err := fingerprint.ParseUITreeXML([]byte(treeXML))
	if err != nil {
		return nil, fmt.Errorf("screenstate: parse ui tree: %w", err)
	}
	hash := fingerprint.Composite(activity, root)

	var ocrResults []OCRResult
	blocked := isBlocked(shot)
	if m.ocr != nil && !blocked {
		ocrResults, err = m.ocr.Recognize(ctx, shot)
		if err != nil {
			ocrResults = nil
		}
	}

	candidate := &CandidateScreen{
		Activity:       activity,
		CompositeHash:  hash,
		Screenshot:     shot,
		Blocked:        blocked,
		UITreeXML:      treeXML,
		OCR:            ocrResults,
		ScreenshotPath: m.screenshotPath(runID, step, hash),
		UITreePath:     m.uiTreePath(hash),
		OCRCachePath:   m.ocrCachePath(hash),
	}
	return candidate, nil
}

// ProcessAndRecordState upserts the screen row (assigning an id on first
// sight), optionally increments the visit counter, and writes the
// screenshot/tree/OCR cache to the candidate's proposed paths.
func (m *Manager) ProcessAndRecordState(ctx context.Context, candidate *CandidateScreen, runID int64, step int, incrementVisit bool) (*FinalScreen, error) {
	screen := &models.Screen{
		RunID:          runID,
		CompositeHash:  candidate.CompositeHash,
		ActivityName:   candidate.Activity,
		ScreenshotPath: candidate.ScreenshotPath,
		UITreePath:     candidate.UITreePath,
		OCRCachePath:   candidate.OCRCachePath,
		FirstSeenStep:  step,
	}

	id, wasNew, err := m.store.UpsertScreen(ctx, screen)
	if err != nil {
		return nil, fmt.Errorf("screenstate: upsert screen: %w", err)
	}
	screen.ID = id

	if err := m.writeArtifacts(candidate); err != nil {
		return nil, err
	}

	var visitCount int64
	if incrementVisit {
		visitCount, err = m.store.IncrementVisit(ctx, runID, id)
		if err != nil {
			return nil, fmt.Errorf("screenstate: increment visit: %w", err)
		}
	} else {
		visitCount, err = m.store.VisitCount(ctx, runID, id)
		if err != nil {
			visitCount = 0
		}
	}

	return &FinalScreen{Screen: *screen, WasNew: wasNew, VisitCount: visitCount}, nil
}

func (m *Manager) writeArtifacts(candidate *CandidateScreen) error {
	if candidate.ScreenshotPath != "" {
		if err := writeFileEnsureDir(candidate.ScreenshotPath, candidate.Screenshot); err != nil {
			return fmt.Errorf("screenstate: write screenshot: %w", err)
		}
	}
	if candidate.UITreePath != "" {
		if err := writeFileEnsureDir(candidate.UITreePath, []byte(candidate.UITreeXML)); err != nil {
			return fmt.Errorf("screenstate: write ui tree: %w", err)
		}
	}
	if candidate.OCRCachePath != "" && candidate.OCR != nil {
		data, err := json.Marshal(candidate.OCR)
		if err != nil {
			return fmt.Errorf("screenstate: encode ocr cache: %w", err)
		}
		if err := writeFileEnsureDir(candidate.OCRCachePath, data); err != nil {
			return fmt.Errorf("screenstate: write ocr cache: %w", err)
		}
	}
	return nil
}

func writeFileEnsureDir(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *Manager) screenshotPath(runID int64, step int, hash string) string {
	return filepath.Join(m.sessionDir, "screenshots", fmt.Sprintf("screen_run%d_step%d_%s.png", runID, step, hash))
}

func (m *Manager) uiTreePath(hash string) string {
	return filepath.Join(m.sessionDir, "xml", hash+".xml")
}

func (m *Manager) ocrCachePath(hash string) string {
	return filepath.Join(m.sessionDir, "ocr", hash+".json")
}

// isBlocked reports whether shot is the BLOCKED screenshot sentinel. The
// UI-tree-only fingerprint path still runs: composite hash never depends on
// pixel data.
func isBlocked(shot []byte) bool {
	return string(shot) == "BLOCKED"
}
