package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrjoshuak/nlecore/internal/command"
)

var execFile string

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute one command record read from a JSON file or stdin",
	Long: `exec reads a single {"name", "project_id", "parameters"} record
and runs it through the dispatcher. Pass --file, or omit it to read from
stdin. On success the record's resolved parameters and result fields are
printed so a caller can capture generated ids for a later replay log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if execFile != "" {
			data, err = os.ReadFile(execFile)
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("read command record: %w", err)
		}

		var rec command.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parse command record: %w", err)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.Parameters == nil {
			rec.Parameters = command.Params{}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.restoreSession(); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}

		result, execErr := a.dispatcher.Execute(&rec)
		if saveErr := a.saveSession(); saveErr != nil {
			return fmt.Errorf("save session: %w", saveErr)
		}
		if execErr != nil {
			return execErr
		}
		if !result.Success {
			return fmt.Errorf("%s", result.ErrorMessage)
		}

		out, err := json.MarshalIndent(map[string]any{
			"record": rec,
			"result": result,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execFile, "file", "", "path to a JSON command record (default: stdin)")
}
