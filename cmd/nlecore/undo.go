package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the most recent undo-group",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.restoreSession(); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		if err := a.dispatcher.Undo(); err != nil {
			return err
		}
		if err := a.saveSession(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Println("undone")
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Re-apply the most recently undone group",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.restoreSession(); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		if err := a.dispatcher.Redo(); err != nil {
			return err
		}
		if err := a.saveSession(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Println("redone")
		return nil
	},
}
