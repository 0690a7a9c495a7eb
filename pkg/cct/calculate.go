package cct

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalpathlab/cct/internal/logging"
	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/netlist"
	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/prune"
)

// LinkResult pairs a link with its waveform metrics.
type LinkResult struct {
	Label string `json:"label"`
	Type  string `json:"type"`
	Tx    string `json:"tx"`
	Rx    string `json:"rx"`
	Metrics
}

// resultDoc is the JSON sidecar written next to the results CSV.
type resultDoc struct {
	Touchstone  string          `json:"touchstone"`
	Metadata    string          `json:"metadata"`
	ThresholdDB float64         `json:"threshold_db,omitempty"`
	Pruned      bool            `json:"pruned"`
	Summaries   []prune.Summary `json:"summaries,omitempty"`
	Results     []LinkResult    `json:"results"`
}

// DefaultOutputPath derives the results CSV path from the metadata file:
// the same directory and stem with a _cct suffix.
func DefaultOutputPath(metadataPath string) string {
	stem := strings.TrimSuffix(metadataPath, filepath.Ext(metadataPath))
	return stem + "_cct.csv"
}

// Calculate reduces the solved waveforms to per-link metrics and writes
// them as CSV, plus a JSON sidecar carrying the pruning summaries. It
// must follow a successful Run.
func (p *Pipeline) Calculate(outputPath string) ([]LinkResult, error) {
	if !p.ran {
		return nil, fmt.Errorf("cct: Calculate requires a completed Run")
	}
	if outputPath == "" {
		outputPath = DefaultOutputPath(p.opts.MetadataPath)
	}
	ui, err := netlist.ParseValue(p.tx.UI)
	if err != nil {
		return nil, err
	}

	var results []LinkResult
	var summaries []prune.Summary
	for _, j := range p.jobs {
		w, err := aedt.ReadWaveforms(j.csv)
		if err != nil {
			return nil, err
		}
		trace, err := rxTrace(w, j.link.Type)
		if err != nil {
			return nil, fmt.Errorf("cct: link %s: %w", j.link.Label, err)
		}
		m, err := Analyze(w.Time, trace, ui)
		if err != nil {
			return nil, fmt.Errorf("cct: link %s: %w", j.link.Label, err)
		}
		results = append(results, LinkResult{
			Label:   j.link.Label,
			Type:    j.link.Type.String(),
			Tx:      j.link.TxDisplay(),
			Rx:      j.link.RxDisplay(),
			Metrics: m,
		})
		summaries = append(summaries, j.summary)
	}

	if err := writeResultsCSV(outputPath, results); err != nil {
		return nil, err
	}
	doc := resultDoc{
		Touchstone: filepath.Base(p.opts.TouchstonePath),
		Metadata:   filepath.Base(p.opts.MetadataPath),
		Pruned:     p.opts.Prune,
		Results:    results,
	}
	if p.opts.Prune {
		doc.ThresholdDB = p.opts.ThresholdDB
		doc.Summaries = summaries
	}
	sidecar := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".json"
	if err := writeResultsJSON(sidecar, doc); err != nil {
		return nil, err
	}

	p.log.Info("cct: results written",
		logging.String("csv", outputPath),
		logging.Int("links", len(results)))
	return results, nil
}

// rxTrace picks the receive waveform: the first probe for single-ended
// links, the positive minus the negative leg for differential ones.
func rxTrace(w *aedt.Waveform, t ports.LinkType) ([]float64, error) {
	if len(w.Values) == 0 {
		return nil, fmt.Errorf("no probe columns")
	}
	if t != ports.LinkDifferential {
		return w.Values[0], nil
	}
	if len(w.Values) < 2 {
		return nil, fmt.Errorf("differential link needs two probe columns, got %d", len(w.Values))
	}
	pos, neg := w.Values[0], w.Values[1]
	diff := make([]float64, len(pos))
	for i := range pos {
		diff[i] = pos[i] - neg[i]
	}
	return diff, nil
}

func writeResultsCSV(path string, results []LinkResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cct: %w", err)
	}
	w := csv.NewWriter(f)
	header := []string{"Link", "Type", "Tx", "Rx", "PeakV", "SettledV", "IntegralVs", "ISIRatio"}
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("cct: %w", err)
	}
	g := func(v float64) string { return strconv.FormatFloat(v, 'g', 9, 64) }
	for _, r := range results {
		row := []string{r.Label, r.Type, r.Tx, r.Rx,
			g(r.PeakV), g(r.SettledV), g(r.IntegralVs), g(r.ISIRatio)}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("cct: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("cct: %w", err)
	}
	return f.Close()
}

func writeResultsJSON(path string, doc resultDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cct: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cct: %w", err)
	}
	return nil
}
