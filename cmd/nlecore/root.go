package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nlecore",
	Short: "A command-execution and ripple-trim engine for NLE timelines",
	Long: `nlecore runs the timeline editing commands of a non-linear video
editor: creating sequences and clips, ripple/roll/extend trims, and
undo/redo, all against a SQLite-backed store. It is a headless engine;
pair it with a UI that drives it through exec/undo/redo/replay.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(edlCmd)
}
