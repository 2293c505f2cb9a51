package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlloop"
	"github.com/codeready-toolchain/crawlforge/pkg/events"
	"github.com/codeready-toolchain/crawlforge/pkg/telemetry"
)

const connectionWriteTimeout = 5 * time.Second

var servePort string

// serveCmd runs a crawl exactly like `run` does, but additionally exposes a
// read-only HTTP/WebSocket surface for a GUI to observe it — it does not
// replace the file-flag control plane (operators still use `crawlforge
// control`), it is purely observation.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start a crawl run with an HTTP/WebSocket observation endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveLauncher(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&servePort, "port", envOr("HTTP_PORT", "8080"), "HTTP listen port for /healthz and /runs/{id}/events")
	return cmd
}

func serveLauncher(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadDotEnv(configDir)
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

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
	connManager := events.NewConnectionManager(bus, connectionWriteTimeout)
	connManager.Start(ctx)
	defer connManager.Stop()

	var currentRunID atomic.Value // string
	currentRunID.Store("")
	go trackRunID(ctx, bus, &currentRunID)

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

	loop, err := crawlloop.New(ctx, cfg, opt)
	if err != nil {
		return fmt.Errorf("initialize crawl loop: %w", err)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- loop.Run(ctx) }()

	gin.SetMode(envOr("GIN_MODE", "release"))
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"run_id":        currentRunID.Load(),
			"subscribers":   bus.SubscriberCount(),
			"ws_observers":  connManager.ActiveConnections(),
			"max_steps":     cfg.Stats().MaxSteps,
			"crawl_mode":    cfg.Stats().CrawlMode,
			"llm_providers": cfg.Stats().LLMProviders,
		})
	})
	router.GET("/runs/:id/events", func(c *gin.Context) {
		if c.Param("id") != currentRunID.Load().(string) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such run"})
			return
		}
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		connManager.HandleConnection(c.Request.Context(), conn)
	})

	srv := &http.Server{Addr: ":" + servePort, Handler: router}
	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.ListenAndServe() }()
	slog.Info("crawlforge: serve listening", "port", servePort)

	select {
	case runErr := <-runErrCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if runErr != nil {
			setExitCode(1)
			return runErr
		}
		setExitCode(0)
		return nil
	case err := <-srvErrCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// trackRunID watches bus for the RunStarted event and records the run's id
// so the /healthz and /runs/{id}/events handlers can answer before the
// first request arrives.
func trackRunID(ctx context.Context, bus *events.EventBus, out *atomic.Value) {
	ch := bus.Subscribe("serve-run-tracker")
	defer bus.Unsubscribe("serve-run-tracker")
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if env.Type == events.EventTypeRunStarted {
				if p, ok := env.Payload.(events.RunStartedPayload); ok {
					out.Store(p.RunID)
				}
			}
		}
	}
}
