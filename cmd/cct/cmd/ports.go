package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalpathlab/cct/pkg/ports"
)

var portsCmd = &cobra.Command{
	Use:   "ports <metadata.json>",
	Short: "List the transmit/receive links in a port metadata file",
	Long: `Read a port-metadata JSON file and show how its ports pair up into
links. Half-open links (only one side present in the metadata) are shown
but will be skipped by prerun and run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	md, err := ports.Load(args[0])
	if err != nil {
		return err
	}
	links := ports.BuildLinks(md.Ports)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tLINK\tTX\tRX\tSTATUS")
	complete := 0
	for _, l := range links {
		status := "ok"
		if !l.Complete() {
			status = "half-open"
		} else {
			complete++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Type, l.Label, l.TxDisplay(), l.RxDisplay(), status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d ports, %d links (%d simulatable)\n", len(md.Ports), len(links), complete)
	return nil
}
