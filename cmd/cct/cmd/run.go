package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalpathlab/cct/pkg/cct"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run <channel.sNp> <metadata.json>",
	Short: "Simulate every link and write the results",
	Long: `Run the full pipeline: prune the channel per link, generate and solve
one transient deck per link, and reduce the waveforms to per-link
statistics. Results go to a CSV (plus a JSON sidecar with the pruning
summaries); by default next to the metadata file with a _cct suffix.

Examples:
  cct run board.s16p board_ports.json
  cct run board.s16p board_ports.json --threshold -50 --output results.csv
  cct run board.s16p board_ports.json --vhigh 1.0V --ui 125ps
  cct run board.s16p board_ports.json --simulate      # no desktop install needed`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addPipelineFlags(runCmd)
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "",
		"results CSV path (default: <metadata stem>_cct.csv)")
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, args[0], args[1], settings, newLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	summaries, err := p.PreRun(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Printf("link %s: %d of %d ports kept\n", s.TxLabel, s.KeptPortCount, s.TotalPortCount)
	}

	progress := make(chan cct.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for pr := range progress {
			fmt.Printf("[%d/%d] solving %s\n", pr.Step, pr.Total, pr.Label)
		}
	}()
	err = p.Run(ctx, transientSettings(cmd, settings), progress)
	<-done
	if err != nil {
		return err
	}

	out := runOutput
	if out == "" {
		out = cct.DefaultOutputPath(args[1])
	}
	results, err := p.Calculate(out)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINK\tTYPE\tPEAK (V)\tSETTLED (V)\tINTEGRAL (V*s)\tISI")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%.4g\t%.4g\t%.4g\t%.3f\n",
			r.Label, r.Type, r.PeakV, r.SettledV, r.IntegralVs, r.ISIRatio)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nresults written to %s\n", out)
	return nil
}
