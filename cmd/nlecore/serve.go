package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run nlecore as a long-lived server (not implemented)",
	Long: `nlecore is a headless command engine (§1): it has no network
transport of its own. serve is stubbed here as the natural place a UI
integration would start one, but wiring an actual protocol in front of
the dispatcher is out of scope.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("serve: not implemented — nlecore is a library/CLI engine, not a network service (see §1 Non-goals)")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
