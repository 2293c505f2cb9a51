package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var resumeSessionRoot string

func resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "resume a previously interrupted crawl run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			if resumeSessionRoot == "" {
				return fmt.Errorf("--session-root is required: path to the session directory the interrupted run created")
			}
			return runLauncher(cmd.Context(), &resumeTarget{sessionRoot: resumeSessionRoot, runID: runID})
		},
	}
	cmd.Flags().StringVar(&resumeSessionRoot, "session-root", "", "path to the existing session directory created by the interrupted run")
	cmd.Flags().BoolVar(&subprocessIPC, "subprocess-ipc", false, "emit JSON_IPC:{...} lines to stdout for a supervising process instead of (or in addition to) structured logs")
	return cmd
}
