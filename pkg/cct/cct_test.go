package cct

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/netlist"
	"github.com/signalpathlab/cct/pkg/touchstone"
)

// fixture builds a four-port channel with two independent single-ended
// links: ports 1-2 carry DDR_D7, ports 3-4 carry DDR_DM0, and the two
// pairs couple to each other far below any useful threshold.
func fixture(t *testing.T) (tsPath, mdPath string) {
	t.Helper()
	dir := t.TempDir()

	coupling := [][]float64{
		{0.1, 0.8, 1e-5, 1e-5},
		{0.8, 0.1, 1e-5, 1e-5},
		{1e-5, 1e-5, 0.1, 0.8},
		{1e-5, 1e-5, 0.8, 0.1},
	}
	matrix := make([][]complex128, 4)
	for i := range matrix {
		row := make([]complex128, 4)
		for j := range row {
			row[j] = complex(coupling[i][j], 0)
		}
		matrix[i] = row
	}
	net := &touchstone.Network{
		Freqs:  []float64{1e9, 2e9},
		Params: [][][]complex128{matrix, matrix},
		PortNames: []string{
			"1_U43_DDR_D7", "2_U42_DDR_D7", "3_U43_DDR_DM0", "4_U42_DDR_DM0",
		},
		RefOhms: 50,
	}
	tsPath = filepath.Join(dir, "board.s4p")
	if err := touchstone.WriteFile(net, tsPath); err != nil {
		t.Fatalf("write channel: %v", err)
	}

	mdPath = filepath.Join(dir, "board_ports.json")
	metadata := `{
	  "reference_net": "GND",
	  "controller_components": ["U43"],
	  "dram_components": ["U42"],
	  "ports": [
	    {"sequence": 1, "name": "1_U43_DDR_D7", "component": "U43",
	     "component_role": "controller", "net": "DDR_D7", "net_type": "single"},
	    {"sequence": 2, "name": "2_U42_DDR_D7", "component": "U42",
	     "component_role": "dram", "net": "DDR_D7", "net_type": "single"},
	    {"sequence": 3, "name": "3_U43_DDR_DM0", "component": "U43",
	     "component_role": "controller", "net": "DDR_DM0", "net_type": "single"},
	    {"sequence": 4, "name": "4_U42_DDR_DM0", "component": "U42",
	     "component_role": "dram", "net": "DDR_DM0", "net_type": "single"}
	  ]
	}`
	if err := os.WriteFile(mdPath, []byte(metadata), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return tsPath, mdPath
}

func newPipeline(t *testing.T, prune bool) *Pipeline {
	t.Helper()
	tsPath, mdPath := fixture(t)
	p, err := New(Options{
		TouchstonePath: tsPath,
		MetadataPath:   mdPath,
		Prune:          prune,
		ThresholdDB:    -60,
		Simulator:      &aedt.SimSimulator{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestPreRunPrunesPerLink(t *testing.T) {
	p := newPipeline(t, true)
	if len(p.Links()) != 2 {
		t.Fatalf("got %d links, want 2", len(p.Links()))
	}

	sums, err := p.PreRun(context.Background())
	if err != nil {
		t.Fatalf("PreRun failed: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	for _, s := range sums {
		if s.TotalPortCount != 4 || s.KeptPortCount != 2 {
			t.Errorf("link %s: kept %d of %d, want 2 of 4", s.TxLabel, s.KeptPortCount, s.TotalPortCount)
		}
	}

	// Each link gets a two-port pruned channel in the work directory.
	work := filepath.Join(filepath.Dir(p.opts.TouchstonePath), "cct_work")
	for _, name := range []string{"DDR_D7.s2p", "DDR_DM0.s2p"} {
		if _, err := os.Stat(filepath.Join(work, name)); err != nil {
			t.Errorf("missing pruned channel %s: %v", name, err)
		}
	}
}

func TestPreRunWithoutPruningKeepsAllPorts(t *testing.T) {
	p := newPipeline(t, false)
	sums, err := p.PreRun(context.Background())
	if err != nil {
		t.Fatalf("PreRun failed: %v", err)
	}
	if sums[0].KeptPortCount != 4 {
		t.Errorf("kept %d ports, want all 4", sums[0].KeptPortCount)
	}
}

func TestRunAndCalculate(t *testing.T) {
	p := newPipeline(t, true)

	progress := make(chan Progress, 16)
	if err := p.Run(context.Background(), netlist.DefaultTransient(), progress); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var steps []Progress
	for pr := range progress {
		steps = append(steps, pr)
	}
	if len(steps) != 2 || steps[0].Step != 1 || steps[1].Total != 2 {
		t.Errorf("progress updates: %+v", steps)
	}

	out := filepath.Join(t.TempDir(), "results.csv")
	results, err := p.Calculate(out)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.PeakV < 0.4 {
			t.Errorf("link %s: peak %g too small for a 0.8V drive", r.Label, r.PeakV)
		}
		if r.ISIRatio < 0 || r.ISIRatio > 1 {
			t.Errorf("link %s: ISI ratio %g outside [0,1]", r.Label, r.ISIRatio)
		}
	}

	if _, err := os.Stat(out); err != nil {
		t.Errorf("results CSV not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), "results.json")); err != nil {
		t.Errorf("results sidecar not written: %v", err)
	}
}

// diffFixture builds a four-port channel carrying one differential pair:
// ports 1-2 are the controller legs, ports 3-4 the memory-side legs.
func diffFixture(t *testing.T) (tsPath, mdPath string) {
	t.Helper()
	dir := t.TempDir()

	coupling := [][]float64{
		{0.1, 1e-3, 0.8, 1e-3},
		{1e-3, 0.1, 1e-3, 0.8},
		{0.8, 1e-3, 0.1, 1e-3},
		{1e-3, 0.8, 1e-3, 0.1},
	}
	matrix := make([][]complex128, 4)
	for i := range matrix {
		row := make([]complex128, 4)
		for j := range row {
			row[j] = complex(coupling[i][j], 0)
		}
		matrix[i] = row
	}
	net := &touchstone.Network{
		Freqs:  []float64{1e9, 2e9},
		Params: [][][]complex128{matrix, matrix},
		PortNames: []string{
			"1_U43_DDR_CLK_P", "2_U43_DDR_CLK_N", "3_U42_DDR_CLK_P", "4_U42_DDR_CLK_N",
		},
		RefOhms: 50,
	}
	tsPath = filepath.Join(dir, "clk.s4p")
	if err := touchstone.WriteFile(net, tsPath); err != nil {
		t.Fatalf("write channel: %v", err)
	}

	mdPath = filepath.Join(dir, "clk_ports.json")
	metadata := `{
	  "reference_net": "GND",
	  "controller_components": ["U43"],
	  "dram_components": ["U42"],
	  "ports": [
	    {"sequence": 1, "name": "1_U43_DDR_CLK_P", "component": "U43",
	     "component_role": "controller", "net": "DDR_CLK_P",
	     "net_type": "differential", "pair": "CLK", "polarity": "positive"},
	    {"sequence": 2, "name": "2_U43_DDR_CLK_N", "component": "U43",
	     "component_role": "controller", "net": "DDR_CLK_N",
	     "net_type": "differential", "pair": "CLK", "polarity": "negative"},
	    {"sequence": 3, "name": "3_U42_DDR_CLK_P", "component": "U42",
	     "component_role": "dram", "net": "DDR_CLK_P",
	     "net_type": "differential", "pair": "CLK", "polarity": "positive"},
	    {"sequence": 4, "name": "4_U42_DDR_CLK_N", "component": "U42",
	     "component_role": "dram", "net": "DDR_CLK_N",
	     "net_type": "differential", "pair": "CLK", "polarity": "negative"}
	  ]
	}`
	if err := os.WriteFile(mdPath, []byte(metadata), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return tsPath, mdPath
}

func TestRunAndCalculateDifferential(t *testing.T) {
	tsPath, mdPath := diffFixture(t)
	p, err := New(Options{
		TouchstonePath: tsPath,
		MetadataPath:   mdPath,
		Prune:          true,
		ThresholdDB:    -60,
		Simulator:      &aedt.SimSimulator{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Run(context.Background(), netlist.DefaultTransient(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	results, err := p.Calculate(filepath.Join(t.TempDir(), "clk.csv"))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(results) != 1 || results[0].Type != "Differential" {
		t.Fatalf("results = %+v", results)
	}
	// The legs swing in opposition, so the positive-minus-negative trace
	// moves through roughly twice the single-leg amplitude.
	if results[0].PeakV < 1.0 {
		t.Errorf("differential peak %g V; complementary 0.8V legs should swing past 1V",
			results[0].PeakV)
	}
}

func TestRunImpliesPreRun(t *testing.T) {
	p := newPipeline(t, false)
	if err := p.Run(context.Background(), netlist.DefaultTransient(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := p.Calculate(filepath.Join(t.TempDir(), "out.csv")); err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
}

func TestWriteDecks(t *testing.T) {
	p := newPipeline(t, true)
	paths, err := p.WriteDecks(context.Background(), netlist.DefaultTransient())
	if err != nil {
		t.Fatalf("WriteDecks failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d decks, want 2", len(paths))
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("deck not written: %v", err)
		}
		if !strings.Contains(string(data), ".TRAN") {
			t.Errorf("%s has no transient statement", filepath.Base(path))
		}
	}
}

func TestCalculateRequiresRun(t *testing.T) {
	p := newPipeline(t, true)
	if _, err := p.Calculate(""); err == nil {
		t.Fatal("expected error before Run")
	}

	if err := p.Run(context.Background(), netlist.DefaultTransient(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	p.SetTx(netlist.DefaultTx()) // settings change invalidates results
	if _, err := p.Calculate(""); err == nil {
		t.Fatal("expected error after settings change")
	}
}

func TestNewRejectsMismatchedMetadata(t *testing.T) {
	tsPath, mdPath := fixture(t)
	// Five metadata ports cannot map onto the four-port channel.
	extra := `{
	  "ports": [
	    {"sequence": 1, "name": "a", "net": "A", "component_role": "controller"},
	    {"sequence": 2, "name": "b", "net": "A", "component_role": "dram"},
	    {"sequence": 3, "name": "c", "net": "B", "component_role": "controller"},
	    {"sequence": 4, "name": "d", "net": "B", "component_role": "dram"},
	    {"sequence": 5, "name": "e", "net": "C", "component_role": "controller"}
	  ]
	}`
	if err := os.WriteFile(mdPath, []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{TouchstonePath: tsPath, MetadataPath: mdPath}); err == nil {
		t.Fatal("expected error for metadata with more ports than the channel")
	}
}

func TestDefaultOutputPath(t *testing.T) {
	if got := DefaultOutputPath("/data/board_ports.json"); got != "/data/board_ports_cct.csv" {
		t.Errorf("got %q", got)
	}
}

func TestAnalyze(t *testing.T) {
	// A rectangle of height 1 over the second half of a 2s window, with
	// ui=1s: all energy arrives after the first interval.
	time := []float64{0, 0.5, 1, 1.5, 2}
	v := []float64{0, 0, 0, 1, 1}
	m, err := Analyze(time, v, 1)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if m.PeakV != 1 {
		t.Errorf("peak = %g, want 1", m.PeakV)
	}
	if m.SettledV != 1 {
		t.Errorf("settled = %g, want 1", m.SettledV)
	}
	// Trapezoid: 0.25 (ramp) + 0.5 (plateau) = 0.75 total, all after t=1.
	if m.IntegralVs != 0.75 {
		t.Errorf("integral = %g, want 0.75", m.IntegralVs)
	}
	if m.ISIRatio != 1 {
		t.Errorf("ISI ratio = %g, want 1", m.ISIRatio)
	}

	if _, err := Analyze([]float64{0}, []float64{0}, 1); err == nil {
		t.Error("expected error for single sample")
	}
	if _, err := Analyze(time, v, 0); err == nil {
		t.Error("expected error for zero unit interval")
	}
}
