package crawlloop

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlcontext"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlerrors"
	"github.com/codeready-toolchain/crawlforge/pkg/credentials"
	"github.com/codeready-toolchain/crawlforge/pkg/device"
	"github.com/codeready-toolchain/crawlforge/pkg/events"
	"github.com/codeready-toolchain/crawlforge/pkg/executor"
	"github.com/codeready-toolchain/crawlforge/pkg/flagcontrol"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/codeready-toolchain/crawlforge/pkg/persistence"
	"github.com/codeready-toolchain/crawlforge/pkg/prompt"
	"github.com/codeready-toolchain/crawlforge/pkg/screenstate"
)

// Resume reattaches to a run an earlier process left INTERRUPTED, replaying
// nothing: the database, journal, and visited screens are read back as-is
// and step numbering continues from where the run left off. sessionRoot is
// the session directory an earlier New/ResolveSessionPaths created for this
// run (its "database/run.db" must still be present).
func Resume(ctx context.Context, cfg *config.Config, opt Options, sessionRoot string, runID int64) (*CrawlLoop, error) {
	if cfg == nil {
		return nil, crawlerrors.NewConfigError("config", fmt.Errorf("nil"))
	}
	if runID <= 0 {
		return nil, crawlerrors.NewConfigError("run_id", fmt.Errorf("must be positive"))
	}

	paths := sessionPathsFromRoot(sessionRoot)

	store, err := persistence.Open(paths.DatabaseFile)
	if err != nil {
		return nil, crawlerrors.NewPersistenceError("open", err, true)
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		_ = store.Close()
		return nil, crawlerrors.NewPersistenceError("get_run", err, true)
	}
	if run.Status != models.RunStatusInterrupted && run.Status != models.RunStatusRunning {
		_ = store.Close()
		return nil, fmt.Errorf("crawlloop: run %d is %s, not resumable", runID, run.Status)
	}

	lastSteps, err := store.GetRecentSteps(ctx, runID, 1)
	if err != nil {
		_ = store.Close()
		return nil, crawlerrors.NewPersistenceError("get_recent_steps", err, true)
	}
	stepCount := 0
	if len(lastSteps) > 0 {
		stepCount = lastSteps[0].StepNumber
	}

	dev := opt.Device
	if dev == nil {
		if cfg.Device == nil {
			_ = store.Close()
			return nil, crawlerrors.NewConfigError("device", fmt.Errorf("required"))
		}
		dev = device.New(cfg.Device.ServerURL, cfg.Device.SessionTimeout, defaultDeviceMaxRetries)
	}
	if err := dev.InitializeSession(ctx, cfg.TargetApp.Package, cfg.TargetApp.Activity, opt.DeviceID); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("crawlloop: %w: %w", crawlerrors.ErrSession, err)
	}

	llm := opt.LLM
	if llm == nil {
		providerCfg, err := cfg.ActiveLLMProviderConfig()
		if err != nil {
			_ = store.Close()
			return nil, crawlerrors.NewConfigError("active_llm_provider", err)
		}
		llm, err = buildModelAdapter(providerCfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
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
		startedAt:   run.StartedAt,
		state:       StatePrecheck,
		stepCount:   stepCount,
		stats:       run.Stats,
	}

	if err := store.UpdateRunStatus(ctx, runID, models.RunStatusRunning, nil); err != nil {
		slog.Warn("crawlloop: mark run running on resume failed", "run_id", runID, "error", err)
	}

	if err := dev.LaunchApp(ctx); err != nil {
		slog.Warn("crawlloop: best-effort app launch on resume failed", "run_id", runID, "error", err)
	}
	if err := opt.Hooks.StartAll(ctx, filepath.Join(paths.Pcap, "capture.pcap"), filepath.Join(paths.Video, "session.mp4")); err != nil {
		slog.Warn("crawlloop: lifecycle hook start on resume failed", "run_id", runID, "error", err)
	}

	if opt.EventBus != nil {
		opt.EventBus.PublishRunStarted(events.RunStartedPayload{
			RunID:      fmt.Sprintf("%d", runID),
			AppPackage: cfg.TargetApp.Package,
			Resumed:    true,
		})
	}

	return loop, nil
}

// sessionPathsFromRoot rebuilds the on-disk layout for an existing session
// directory without renaming it — used by Resume, which reattaches to a
// session New already created.
func sessionPathsFromRoot(root string) SessionPaths {
	return SessionPaths{
		Root:         root,
		Screenshots:  filepath.Join(root, "screenshots"),
		Annotated:    filepath.Join(root, "annotated_screenshots"),
		XML:          filepath.Join(root, "xml"),
		OCR:          filepath.Join(root, "ocr"),
		Database:     filepath.Join(root, "database"),
		Logs:         filepath.Join(root, "logs"),
		Reports:      filepath.Join(root, "reports"),
		Video:        filepath.Join(root, "video"),
		Pcap:         filepath.Join(root, "pcap"),
		DatabaseFile: filepath.Join(root, "database", "run.db"),
	}
}
