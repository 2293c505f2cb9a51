package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

var (
	configDir       string
	deviceID        string
	sessionBaseDir  string
	flagDir         string
	credentialsPath string
)

var rootCmd = &cobra.Command{
	Use:   "crawlforge",
	Short: "crawlforge — autonomous mobile UI exploration agent",
	Long: "crawlforge drives an Android app through an LLM-guided crawl: capture a screen, " +
		"ask the model what to do next, execute the chosen actions, and repeat until the " +
		"run's step or time budget is spent, the app can't be driven further, or an operator " +
		"signals it to stop.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", envOr("CONFIG_DIR", "./deploy/config"), "path to configuration directory (crawlforge.yaml, .env)")
	rootCmd.PersistentFlags().StringVar(&deviceID, "device-id", envOr("DEVICE_ID", ""), "automation-server device identifier")
	rootCmd.PersistentFlags().StringVar(&sessionBaseDir, "session-dir", envOr("SESSION_BASE_DIR", "./sessions"), "base directory under which per-run session directories are created")
	rootCmd.PersistentFlags().StringVar(&flagDir, "flag-dir", envOr("FLAG_DIR", "./sessions/flags"), "directory holding the file-flag control plane (shutdown/pause/step_gate/continue_gate)")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials-path", envOr("CREDENTIALS_DB", "./credentials.db"), "path to the SQLite test-account credential store")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(controlCmd())
	rootCmd.AddCommand(versionCmd())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadDotEnv loads a .env file from dir before configuration is read, so
// secrets (LLM API keys, device credentials) can be supplied without
// exporting them into the shell. Absence is not an error — crawlforge runs
// fine from a pre-populated environment alone.
func loadDotEnv(dir string) {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("crawlforge: no .env file loaded", "path", envPath, "error", err)
		return
	}
	slog.Info("crawlforge: loaded environment", "path", envPath)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			slog.Info("crawlforge", "version", Version)
		},
	}
}

// Execute runs the root cobra command, exiting the process with the exit
// code the invoked subcommand recorded via setExitCode, or 1 if the command
// itself returned an error before any exit code was chosen.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// exitCode is set by subcommands that need a non-default process exit
// status (the launcher contract's 0/1/130 distinction), since cobra itself
// has no notion of a command-chosen exit code beyond error/no-error.
var exitCode int

func setExitCode(code int) {
	exitCode = code
}
