package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrjoshuak/nlecore/internal/command"
)

var replayFile string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-execute a JSON array of command records in order",
	Long: `replay reads an ordered list of previously-run command records
(each with the generated ids and clamped values its original execution
resolved into rec.Parameters) and re-executes every one through the
dispatcher. Because every command writes its resolved parameters back
into the record before returning (§9 "Replay identity"), re-running the
same record produces the same store state it did the first time — this
is how a fresh store gets rebuilt from a command log instead of a
database snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFile == "" {
			return fmt.Errorf("replay: --file is required")
		}
		data, err := os.ReadFile(replayFile)
		if err != nil {
			return fmt.Errorf("read replay log: %w", err)
		}
		var records []command.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse replay log: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for i := range records {
			rec := records[i]
			result, execErr := a.dispatcher.Execute(&rec)
			if execErr != nil {
				return fmt.Errorf("replay: record %d (%s): %w", i, rec.Name, execErr)
			}
			if !result.Success {
				return fmt.Errorf("replay: record %d (%s): %s", i, rec.Name, result.ErrorMessage)
			}
		}
		if err := a.saveSession(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Printf("replayed %d command(s)\n", len(records))
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "path to a JSON array of command records")
}
