package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalpathlab/cct/internal/ui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the desktop app",
	Long: `Launch the graphical workspace: pick a Touchstone export and its port
metadata, tune the driver and termination settings, preview pruning, and
run the solver with live progress.

Examples:
  # Launch the UI
  cct ui

  # Launch with verbose logging
  cct ui -v`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Println("Launching channel simulation UI...")
	}

	state := ui.NewState()
	state.SetStatus("Idle")
	state.AppendLog("UI starting...")
	return ui.Run(state)
}
