// Package crawlloop implements the CrawlLoop: the top-level state machine
// that drives one crawl run from session initialization through its
// step-by-step exploration to a terminal status, wiring together every
// other collaborator package (device, persistence, screenstate,
// crawlcontext, prompt, llmadapter, actions, executor, stuckdetector,
// credentials, flagcontrol, hooks, telemetry).
package crawlloop

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlcontext"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlerrors"
	"github.com/codeready-toolchain/crawlforge/pkg/credentials"
	"github.com/codeready-toolchain/crawlforge/pkg/device"
	"github.com/codeready-toolchain/crawlforge/pkg/events"
	"github.com/codeready-toolchain/crawlforge/pkg/executor"
	"github.com/codeready-toolchain/crawlforge/pkg/flagcontrol"
	"github.com/codeready-toolchain/crawlforge/pkg/hooks"
	"github.com/codeready-toolchain/crawlforge/pkg/llmadapter"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/codeready-toolchain/crawlforge/pkg/persistence"
	"github.com/codeready-toolchain/crawlforge/pkg/prompt"
	"github.com/codeready-toolchain/crawlforge/pkg/screenstate"
	"github.com/codeready-toolchain/crawlforge/pkg/telemetry"
)

// State is one point in the CrawlLoop lifecycle.
type State string

const (
	StateInit        State = "INIT"
	StatePrecheck    State = "PRECHECK"
	StateRunning     State = "RUNNING"
	StateFinishing   State = "FINISHING"
	StateDone        State = "DONE"
	StateError       State = "ERROR"
	StateInterrupted State = "INTERRUPTED"
)

const (
	defaultDeviceMaxRetries = 3
	defaultLLMTimeout       = 60 * time.Second
	defaultFlagPollInterval = 500 * time.Millisecond
)

// Device is the full set of device operations CrawlLoop and its
// collaborators need. *device.Client satisfies it; tests substitute a fake.
type Device interface {
	screenstate.DeviceCapturer
	executor.Device
	InitializeSession(ctx context.Context, appPackage, appEntry, deviceID string) error
	ValidateSession(ctx context.Context) bool
	Close(ctx context.Context) error
	GetCurrentPackage(ctx context.Context) (string, error)
	LaunchApp(ctx context.Context) error
	TerminateApp(ctx context.Context, appPackage string) error
}

// Options configures a single CrawlLoop run. Device and LLM may be supplied
// directly (tests, dry runs); when nil, New constructs them from cfg.
type Options struct {
	DeviceID        string
	BaseSessionDir  string
	FlagDir         string
	CredentialsPath string

	OCR   screenstate.OCREngine
	Hooks hooks.Hooks

	EventBus  *events.EventBus
	Telemetry *telemetry.Provider
	Metrics   *telemetry.Metrics

	Device Device
	LLM    llmadapter.ModelAdapter
}

// CrawlLoop is one run's orchestrator, holding every collaborator it was
// wired with at New and the mutable state it accumulates step by step.
type CrawlLoop struct {
	cfg *config.Config
	opt Options

	device      Device
	llm         llmadapter.ModelAdapter
	persistence *persistence.Store
	credentials *credentials.Store
	screens     *screenstate.Manager
	context     *crawlcontext.Builder
	prompts     *prompt.Builder
	exec        *executor.Executor
	flags       *flagcontrol.FlagController

	paths     SessionPaths
	runID     int64
	startedAt time.Time

	state     State
	stepCount int
	stats     models.RunStats

	lastActionFeedback string
}

// New runs the INIT and PRECHECK sequence: it constructs or adopts the
// device client and model adapter, establishes the device session, resolves
// the on-disk session layout, opens both embedded databases, creates the Run
// row, wires every per-step collaborator, best-effort launches the target
// app, and best-effort starts any enabled lifecycle hooks. A non-nil error
// here means the run never reaches RUNNING.
func New(ctx context.Context, cfg *config.Config, opt Options) (*CrawlLoop, error) {
	if cfg == nil {
		return nil, crawlerrors.NewConfigError("config", fmt.Errorf("nil"))
	}
	if cfg.TargetApp.Package == "" {
		return nil, crawlerrors.NewConfigError("target_app.package", fmt.Errorf("required"))
	}

	startedAt := time.Now().UTC()

	dev := opt.Device
	if dev == nil {
		if cfg.Device == nil {
			return nil, crawlerrors.NewConfigError("device", fmt.Errorf("required"))
		}
		dev = device.New(cfg.Device.ServerURL, cfg.Device.SessionTimeout, defaultDeviceMaxRetries)
	}

	llm := opt.LLM
	if llm == nil {
		providerCfg, err := cfg.ActiveLLMProviderConfig()
		if err != nil {
			return nil, crawlerrors.NewConfigError("active_llm_provider", err)
		}
		llm, err = buildModelAdapter(providerCfg)
		if err != nil {
			return nil, err
		}
	}

	if err := dev.InitializeSession(ctx, cfg.TargetApp.Package, cfg.TargetApp.Activity, opt.DeviceID); err != nil {
		return nil, fmt.Errorf("crawlloop: %w: %w", crawlerrors.ErrSession, err)
	}

	paths, err := ResolveSessionPaths(opt.BaseSessionDir, opt.DeviceID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("crawlloop: %w", err)
	}

	store, err := persistence.Open(paths.DatabaseFile)
	if err != nil {
		return nil, crawlerrors.NewPersistenceError("open", err, true)
	}

	providerName := cfg.ActiveLLMProvider
	var modelName string
	if providerCfg, perr := cfg.ActiveLLMProviderConfig(); perr == nil {
		modelName = providerCfg.Model
	}
	runID, err := store.GetOrCreateRun(ctx, cfg.TargetApp.Package, cfg.TargetApp.Activity, providerName, modelName)
	if err != nil {
		_ = store.Close()
		return nil, crawlerrors.NewPersistenceError("get_or_create_run", err, true)
	}

	credsPath := opt.CredentialsPath
	if credsPath == "" {
		credsPath = "credentials.db"
	}
	credStore, err := credentials.Open(credsPath)
	if err != nil {
		_ = store.Close()
		return nil, crawlerrors.NewPersistenceError("open_credentials", err, true)
	}

	flags, err := flagcontrol.New(opt.FlagDir)
	if err != nil {
		_ = store.Close()
		_ = credStore.Close()
		return nil, fmt.Errorf("crawlloop: %w", err)
	}
	flags.Remove(flagcontrol.Shutdown)
	flags.Remove(flagcontrol.StepGate)
	flags.Remove(flagcontrol.ContinueGate)

	loop := &CrawlLoop{
		cfg:         cfg,
		opt:         opt,
		device:      dev,
		llm:         llm,
		persistence: store,
		credentials: credStore,
		screens:     screenstate.New(dev, store, paths.Root, opt.OCR),
		context:     crawlcontext.New(store, cfg.TargetApp.Package, cfg.Crawl.AllowedExternalPackages),
		prompts:     prompt.New(),
		exec:        executor.New(dev),
		flags:       flags,
		paths:       paths,
		runID:       runID,
		startedAt:   startedAt,
		state:       StatePrecheck,
	}

	if err := dev.LaunchApp(ctx); err != nil {
		slog.Warn("crawlloop: best-effort app launch failed", "run_id", runID, "error", err)
	}

	if err := opt.Hooks.StartAll(ctx, filepath.Join(paths.Pcap, "capture.pcap"), filepath.Join(paths.Video, "session.mp4")); err != nil {
		slog.Warn("crawlloop: lifecycle hook start failed", "run_id", runID, "error", err)
	}

	if opt.EventBus != nil {
		opt.EventBus.PublishRunStarted(events.RunStartedPayload{
			RunID:      fmt.Sprintf("%d", runID),
			AppPackage: cfg.TargetApp.Package,
		})
	}

	return loop, nil
}

// buildModelAdapter constructs the ModelAdapter matching providerCfg.Type.
func buildModelAdapter(providerCfg *config.LLMProviderConfig) (llmadapter.ModelAdapter, error) {
	switch providerCfg.Type {
	case config.LLMProviderTypeAnthropic:
		return llmadapter.NewAnthropicAdapter(providerCfg.APIKeyEnv, providerCfg.BaseURL, providerCfg.Model, providerCfg.MaxToolResultTokens, defaultLLMTimeout), nil
	case config.LLMProviderTypeOllama:
		return llmadapter.NewOllamaAdapter(providerCfg.BaseURL, providerCfg.Model, defaultLLMTimeout), nil
	case config.LLMProviderTypeMock:
		return llmadapter.NewMockAdapter(llmadapter.Capabilities{SupportsImage: true}), nil
	default:
		return nil, crawlerrors.NewConfigError("llm_provider.type", fmt.Errorf("no adapter available for provider type %q", providerCfg.Type))
	}
}

// Run drives the RUNNING -> (STEP)* -> FINISHING -> DONE state machine to
// completion, returning only once the run has reached a terminal state.
// The returned error is non-nil only for a fatal failure (device session
// loss or ctx cancellation); a run that
// completes, is interrupted by the Shutdown flag, or exhausts its step/time
// budget returns nil.
func (l *CrawlLoop) Run(ctx context.Context) error {
	l.state = StateRunning

	status := models.RunStatusCompleted
	var runErr error

runLoop:
	for {
		if l.flags.Exists(flagcontrol.Shutdown) {
			status = models.RunStatusInterrupted
			break
		}
		if err := ctx.Err(); err != nil {
			status = models.RunStatusInterrupted
			runErr = err
			break
		}

		terminated, stepErr := l.runStep(ctx)
		if stepErr != nil {
			status = models.RunStatusFailed
			runErr = stepErr
			break runLoop
		}
		if terminated {
			if l.flags.Exists(flagcontrol.Shutdown) {
				status = models.RunStatusInterrupted
			}
			break
		}
	}

	l.state = StateFinishing
	l.finish(ctx, status)
	l.state = StateDone

	return runErr
}

// finish executes the FINISHING sequence: stop lifecycle hooks, annotate
// every discovered screen if a ScreenshotAnnotator is configured, update the
// run's terminal status and stats, close both databases, terminate the app,
// and disconnect the device session. Every step here is best-effort past
// the first one — a failure in cleanup never changes the run's recorded
// status.
func (l *CrawlLoop) finish(ctx context.Context, status models.RunStatus) {
	if err := l.opt.Hooks.StopAll(ctx); err != nil {
		slog.Warn("crawlloop: lifecycle hook stop failed", "run_id", l.runID, "error", err)
	}

	if l.opt.Hooks.Annotator != nil {
		l.annotateScreens(ctx)
	}

	endedAt := time.Now().UTC()
	if err := l.persistence.UpdateRunStatus(ctx, l.runID, status, &endedAt); err != nil {
		slog.Error("crawlloop: update run status failed", "run_id", l.runID, "error", err)
	}

	if err := l.persistence.UpdateRunStats(ctx, l.runID, l.stats); err != nil {
		slog.Warn("crawlloop: update run stats failed", "run_id", l.runID, "error", err)
	}

	if l.opt.EventBus != nil {
		l.opt.EventBus.PublishRunCompleted(events.RunCompletedPayload{
			RunID:      fmt.Sprintf("%d", l.runID),
			Status:     string(status),
			TotalSteps: l.stepCount,
		})
	}

	if err := l.persistence.Close(); err != nil {
		slog.Warn("crawlloop: close run database failed", "run_id", l.runID, "error", err)
	}
	if err := l.credentials.Close(); err != nil {
		slog.Warn("crawlloop: close credentials database failed", "run_id", l.runID, "error", err)
	}

	if err := l.device.TerminateApp(ctx, l.cfg.TargetApp.Package); err != nil {
		slog.Warn("crawlloop: terminate app failed", "run_id", l.runID, "error", err)
	}
	if err := l.device.Close(ctx); err != nil {
		slog.Warn("crawlloop: device disconnect failed", "run_id", l.runID, "error", err)
	}
}

// annotateScreens draws overlays onto every screen captured this run,
// best-effort: an individual failure is logged and skipped.
func (l *CrawlLoop) annotateScreens(ctx context.Context) {
	summaries, err := l.persistence.GetVisitedScreensSummary(ctx, l.runID)
	if err != nil {
		slog.Warn("crawlloop: list screens for annotation failed", "run_id", l.runID, "error", err)
		return
	}
	for _, s := range summaries {
		if s.Screen.ScreenshotPath == "" || s.Screen.UITreePath == "" {
			continue
		}
		annotatedPath := filepath.Join(l.paths.Annotated, s.Screen.CompositeHash+".png")
		if err := l.opt.Hooks.Annotator.Annotate(ctx, s.Screen.ScreenshotPath, s.Screen.UITreePath, annotatedPath); err != nil {
			slog.Warn("crawlloop: annotate screen failed", "run_id", l.runID, "screen_id", s.Screen.ID, "error", err)
		}
	}
}
