package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalpathlab/cct/internal/config"
	"github.com/signalpathlab/cct/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cct",
	Short: "Channel transient simulation for board interfaces",
	Long: `Drive Ansys Electronics Desktop transient simulations over an exported
S-parameter channel and its port metadata.

The tool pairs a Touchstone file (.s2p, .s16p, ...) with the companion
port-metadata JSON written by the board extraction flow, builds one
transient deck per transmit/receive link, optionally prunes ports that
couple below a threshold, and reduces the solved waveforms to per-link
statistics.

Examples:
  cct ports board_ports.json                       # List the links in a board
  cct prerun board.s16p board_ports.json           # Preview pruning results
  cct run board.s16p board_ports.json --simulate   # Full pipeline, synthetic solver
  cct ui                                           # Desktop app`,
	Version: "0.9.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"settings file (default: the platform config directory)")
}

func loadSettings() (config.Settings, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func newLogger() logging.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logging.New(level, os.Stderr)
}
