package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var preRunCmd = &cobra.Command{
	Use:   "prerun <channel.sNp> <metadata.json>",
	Short: "Prune the channel per link and report what survives",
	Long: `Run the pruning stage only: for every complete link, drop the channel
ports whose worst-case coupling to the transmit side stays below the
threshold, write the per-link networks into the work directory, and
report how many ports each simulation will carry.`,
	Args: cobra.ExactArgs(2),
	RunE: runPreRun,
}

func init() {
	rootCmd.AddCommand(preRunCmd)
	addPipelineFlags(preRunCmd)
}

func runPreRun(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, args[0], args[1], settings, newLogger())
	if err != nil {
		return err
	}

	summaries, err := p.PreRun(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINK\tPORTS\tKEPT\tRX PORTS\tRX KEPT\tKEPT PORTS")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.TxLabel, s.TotalPortCount, s.KeptPortCount,
			s.TotalRxPortCount, s.KeptRxPortCount,
			strings.Join(s.KeptPorts, ", "))
	}
	return w.Flush()
}
