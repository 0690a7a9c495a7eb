package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalpathlab/cct/internal/config"
	"github.com/signalpathlab/cct/internal/logging"
	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/cct"
	"github.com/signalpathlab/cct/pkg/netlist"
)

// Flags shared by the pipeline commands (prerun, netlist, run). An
// explicit flag beats the persisted settings; everything else falls back
// to the settings file.
var (
	workDir     string
	thresholdDB float64
	noPrune     bool
	aedtVersion string
	simulate    bool

	vhigh        string
	trise        string
	unitInterval string
	resTx        string
	capTx        string
	resRx        string
	capRx        string
	tstep        string
	tstop        string
)

func addPipelineFlags(c *cobra.Command) {
	c.Flags().StringVar(&workDir, "workdir", "",
		"work directory for decks and pruned channels (default: cct_work next to the Touchstone file)")
	c.Flags().Float64VarP(&thresholdDB, "threshold", "t", cct.DefaultThresholdDB,
		"pruning threshold in dB")
	c.Flags().BoolVar(&noPrune, "no-prune", false,
		"keep every channel port in every deck")
	c.Flags().StringVar(&aedtVersion, "aedt-version", aedt.DefaultVersion,
		"Electronics Desktop release to drive")
	c.Flags().BoolVar(&simulate, "simulate", false,
		"use the synthetic solver instead of a desktop install")

	tx, rx, tr := netlist.DefaultTx(), netlist.DefaultRx(), netlist.DefaultTransient()
	c.Flags().StringVar(&vhigh, "vhigh", tx.VHigh, "transmit driver high level")
	c.Flags().StringVar(&trise, "trise", tx.TRise, "transmit edge rise time")
	c.Flags().StringVar(&unitInterval, "ui", tx.UI, "unit interval")
	c.Flags().StringVar(&resTx, "res-tx", tx.Res, "transmit series resistance")
	c.Flags().StringVar(&capTx, "cap-tx", tx.Cap, "transmit shunt capacitance")
	c.Flags().StringVar(&resRx, "res-rx", rx.Res, "receive termination resistance")
	c.Flags().StringVar(&capRx, "cap-rx", rx.Cap, "receive termination capacitance")
	c.Flags().StringVar(&tstep, "tstep", tr.TStep, "transient time step")
	c.Flags().StringVar(&tstop, "tstop", tr.TStop, "transient stop time")
}

func txSettings(cmd *cobra.Command, s config.Settings) netlist.TxSettings {
	tx := s.TxSettings()
	if cmd.Flags().Changed("vhigh") {
		tx.VHigh = vhigh
	}
	if cmd.Flags().Changed("trise") {
		tx.TRise = trise
	}
	if cmd.Flags().Changed("ui") {
		tx.UI = unitInterval
	}
	if cmd.Flags().Changed("res-tx") {
		tx.Res = resTx
	}
	if cmd.Flags().Changed("cap-tx") {
		tx.Cap = capTx
	}
	return tx
}

func rxSettings(cmd *cobra.Command, s config.Settings) netlist.RxSettings {
	rx := s.RxSettings()
	if cmd.Flags().Changed("res-rx") {
		rx.Res = resRx
	}
	if cmd.Flags().Changed("cap-rx") {
		rx.Cap = capRx
	}
	return rx
}

func transientSettings(cmd *cobra.Command, s config.Settings) netlist.TransientSettings {
	tr := s.TransientSettings()
	if cmd.Flags().Changed("tstep") {
		tr.TStep = tstep
	}
	if cmd.Flags().Changed("tstop") {
		tr.TStop = tstop
	}
	return tr
}

// newPipeline builds the pipeline for a command invocation, letting
// explicit flags override the persisted settings.
func newPipeline(cmd *cobra.Command, tsPath, mdPath string, s config.Settings, log logging.Logger) (*cct.Pipeline, error) {
	opts := cct.Options{
		TouchstonePath: tsPath,
		MetadataPath:   mdPath,
		WorkDir:        workDir,
		ThresholdDB:    s.Options.ThresholdDB,
		Prune:          s.Options.Prune,
		Version:        s.Options.Version,
		Log:            log,
	}
	if cmd.Flags().Changed("threshold") {
		opts.ThresholdDB = thresholdDB
	}
	if cmd.Flags().Changed("no-prune") {
		opts.Prune = !noPrune
	}
	if cmd.Flags().Changed("aedt-version") {
		opts.Version = aedtVersion
	}
	if simulate || (s.Options.Simulate && !cmd.Flags().Changed("simulate")) {
		opts.Simulator = &aedt.SimSimulator{}
	}

	p, err := cct.New(opts)
	if err != nil {
		return nil, err
	}
	p.SetTx(txSettings(cmd, s))
	p.SetRx(rxSettings(cmd, s))
	return p, nil
}
