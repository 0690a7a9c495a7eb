package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var netlistCmd = &cobra.Command{
	Use:   "netlist <channel.sNp> <metadata.json>",
	Short: "Write the transient decks without solving them",
	Long: `Generate the per-link transient decks into the work directory and stop,
for inspection or for feeding a solver by hand.`,
	Args: cobra.ExactArgs(2),
	RunE: runNetlist,
}

func init() {
	rootCmd.AddCommand(netlistCmd)
	addPipelineFlags(netlistCmd)
}

func runNetlist(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, args[0], args[1], settings, newLogger())
	if err != nil {
		return err
	}

	paths, err := p.WriteDecks(cmd.Context(), transientSettings(cmd, settings))
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Println(path)
	}
	return nil
}
