package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlloop"
	"github.com/codeready-toolchain/crawlforge/pkg/events"
	"github.com/codeready-toolchain/crawlforge/pkg/flagcontrol"
	"github.com/codeready-toolchain/crawlforge/pkg/hooks"
	"github.com/codeready-toolchain/crawlforge/pkg/telemetry"
)

var subprocessIPC bool

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start a new crawl run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd.Context(), nil)
		},
	}
	cmd.Flags().BoolVar(&subprocessIPC, "subprocess-ipc", false, "emit JSON_IPC:{...} lines to stdout for a supervising process instead of (or in addition to) structured logs")
	return cmd
}

// resumeTarget names an existing session directory and run id to reattach
// to; nil for a fresh `run`.
type resumeTarget struct {
	sessionRoot string
	runID       int64
}

// runLauncher implements the shared body of `run` and `resume`: load
// configuration, build telemetry and lifecycle hooks, construct or resume a
// CrawlLoop, drive it to completion, and translate the outcome into the
// launcher contract's exit code. resume is nil for a fresh run.
func runLauncher(ctx context.Context, resume *resumeTarget) error {
	if subprocessIPC {
		slog.SetDefault(slog.New(ipcLogHandler{Handler: slog.Default().Handler()}))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadDotEnv(configDir)
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	stats := cfg.Stats()
	slog.Info("crawlforge: configuration loaded", "llm_providers", stats.LLMProviders, "max_steps", stats.MaxSteps, "crawl_mode", stats.CrawlMode)

	provider, err := telemetry.Setup(ctx, telemetryConfigFromEnv())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("crawlforge: telemetry shutdown failed", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	devID := deviceID
	if devID == "" {
		devID = uuid.NewString()
	}

	bus := events.NewEventBus("pending")
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	go watchEvents(watchCtx, bus, "cli-launcher", subprocessIPC)

	opt := crawlloop.Options{
		DeviceID:        devID,
		BaseSessionDir:  sessionBaseDir,
		FlagDir:         flagDir,
		CredentialsPath: credentialsPath,
		Hooks:           hooksFromConfig(cfg),
		EventBus:        bus,
		Telemetry:       provider,
		Metrics:         metrics,
	}

	var loop *crawlloop.CrawlLoop
	if resume != nil {
		loop, err = crawlloop.Resume(ctx, cfg, opt, resume.sessionRoot, resume.runID)
	} else {
		loop, err = crawlloop.New(ctx, cfg, opt)
	}
	if err != nil {
		return fmt.Errorf("initialize crawl loop: %w", err)
	}

	runErr := loop.Run(ctx)

	// Stop the background watcher right away, then check the one piece of
	// state the loop's own private fields don't expose: whether an operator
	// raised the shutdown flag, which distinguishes a clean interruption
	// (130) from a normal completion (0).
	watchCancel()

	fc, fcErr := flagcontrol.New(flagDir)
	interrupted := fcErr == nil && fc.Exists(flagcontrol.Shutdown)

	code := exitCodeFor(runErr, interrupted)
	if subprocessIPC {
		emitIPC("final_status", map[string]any{"exit_code": code, "interrupted": interrupted, "error": errString(runErr)})
	} else {
		slog.Info("crawlforge: run finished", "exit_code", code, "interrupted", interrupted)
	}
	setExitCode(code)

	if runErr != nil {
		return runErr
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func hooksFromConfig(cfg *config.Config) hooks.Hooks {
	var h hooks.Hooks
	if cfg.Features.EnableTrafficCapture {
		h.Traffic = hooks.NoopTrafficCapture{}
	}
	if cfg.Features.EnableVideoRecording {
		h.Video = hooks.NoopVideoRecorder{}
	}
	if cfg.Features.EnableMobSFAnalysis {
		h.Analyzer = hooks.NoopStaticAnalyzer{}
	}
	if cfg.Features.EnableAIRunReport {
		h.Annotator = hooks.NoopScreenshotAnnotator{}
	}
	return h
}

func telemetryConfigFromEnv() telemetry.Config {
	return telemetry.Config{
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		PrometheusEnabled: os.Getenv("PROMETHEUS_ENABLED") == "true",
		PrometheusAddr:    envOr("PROMETHEUS_ADDR", ":9464"),
	}
}
