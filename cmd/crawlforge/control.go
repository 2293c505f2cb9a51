package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/crawlforge/pkg/flagcontrol"
)

// controlCmd groups the file-flag control plane operations an external
// supervisor uses to steer a running crawl loop without any IPC channel:
// raising or clearing the pause/shutdown markers and single-step gating.
// Every subcommand here just creates or removes a marker file under
// --flag-dir; the crawl loop observes the filesystem on its own.
func controlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "signal a running crawl via the file-flag control plane",
	}
	cmd.AddCommand(controlPauseCmd())
	cmd.AddCommand(controlUnpauseCmd())
	cmd.AddCommand(controlStepCmd())
	cmd.AddCommand(controlShutdownCmd())
	cmd.AddCommand(controlStatusCmd())
	return cmd
}

func controlPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "raise the pause flag; the loop busy-waits until it is cleared",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := flagcontrol.New(flagDir)
			if err != nil {
				return err
			}
			fc.Create(flagcontrol.Pause)
			fmt.Println("pause flag raised")
			return nil
		},
	}
}

func controlUnpauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpause",
		Short: "clear the pause flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := flagcontrol.New(flagDir)
			if err != nil {
				return err
			}
			fc.Remove(flagcontrol.Pause)
			fmt.Println("pause flag cleared")
			return nil
		},
	}
}

func controlStepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step",
		Short: "release one gated step (clears continue_gate's absence by creating it)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := flagcontrol.New(flagDir)
			if err != nil {
				return err
			}
			fc.Create(flagcontrol.ContinueGate)
			fmt.Println("continue_gate flag raised; the loop will consume it and proceed")
			return nil
		},
	}
}

func controlShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "raise the shutdown flag; the loop exits at its next check point",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := flagcontrol.New(flagDir)
			if err != nil {
				return err
			}
			fc.Create(flagcontrol.Shutdown)
			fmt.Println("shutdown flag raised")
			return nil
		},
	}
}

func controlStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the current state of every control-plane flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := flagcontrol.New(flagDir)
			if err != nil {
				return err
			}
			for _, kind := range []flagcontrol.FlagKind{flagcontrol.Shutdown, flagcontrol.Pause, flagcontrol.StepGate, flagcontrol.ContinueGate} {
				fmt.Printf("%-14s %v\n", kind, fc.Exists(kind))
			}
			return nil
		},
	}
}
