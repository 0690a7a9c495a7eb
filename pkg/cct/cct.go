// Package cct orchestrates channel transient simulation: it pairs a
// Touchstone export with its port metadata, prunes the channel per link,
// generates transient decks, drives the solver, and reduces the resulting
// waveforms to per-link statistics.
package cct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalpathlab/cct/internal/logging"
	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/netlist"
	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/prune"
	"github.com/signalpathlab/cct/pkg/touchstone"
)

// DefaultThresholdDB is the stock pruning threshold.
const DefaultThresholdDB = -60

// Options configure a Pipeline.
type Options struct {
	TouchstonePath string
	MetadataPath   string
	// WorkDir holds per-link decks, pruned networks, and waveforms.
	// Defaults to cct_work next to the Touchstone file.
	WorkDir string
	// Version selects the desktop release when no Simulator is injected.
	Version string
	// Prune enables per-link port pruning at ThresholdDB.
	Prune       bool
	ThresholdDB float64
	// Simulator overrides the batch solver, e.g. with aedt.SimSimulator.
	Simulator aedt.Simulator
	Log       logging.Logger
}

// Progress reports one step of a long-running phase.
type Progress struct {
	Step  int
	Total int
	Label string
}

type job struct {
	link    ports.Link   // original metadata entries
	deckRef ports.Link   // entries remapped to the (pruned) channel
	channel netlist.Channel
	summary prune.Summary
	deck    string
	csv     string
}

// Pipeline carries one board's channel through pruning, simulation, and
// post-processing.
type Pipeline struct {
	opts Options
	log  logging.Logger

	net   *touchstone.Network
	meta  *ports.Metadata
	links []ports.Link

	tx netlist.TxSettings
	rx netlist.RxSettings

	jobs     []*job
	prepared bool
	ran      bool
}

// New loads the channel and its metadata and resolves the complete links.
func New(opts Options) (*Pipeline, error) {
	if opts.Log == nil {
		opts.Log = logging.Noop()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(filepath.Dir(opts.TouchstonePath), "cct_work")
	}
	if opts.Version == "" {
		opts.Version = aedt.DefaultVersion
	}
	if opts.ThresholdDB == 0 {
		opts.ThresholdDB = DefaultThresholdDB
	}

	net, err := touchstone.ParseFile(opts.TouchstonePath)
	if err != nil {
		return nil, err
	}
	meta, err := ports.Load(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	if len(meta.Ports) > net.NumPorts() {
		return nil, fmt.Errorf("cct: metadata lists %d ports but channel has %d",
			len(meta.Ports), net.NumPorts())
	}
	links, err := ports.CompleteLinks(meta.Ports)
	if err != nil {
		return nil, err
	}

	opts.Log.Info("cct: channel loaded",
		logging.String("touchstone", filepath.Base(opts.TouchstonePath)),
		logging.Int("ports", net.NumPorts()),
		logging.Int("links", len(links)))

	return &Pipeline{
		opts:  opts,
		log:   opts.Log,
		net:   net,
		meta:  meta,
		links: links,
		tx:    netlist.DefaultTx(),
		rx:    netlist.DefaultRx(),
	}, nil
}

// Links returns the complete transmit/receive links found in the metadata.
func (p *Pipeline) Links() []ports.Link { return p.links }

// SetTx replaces the transmit driver settings. Invalidates prior PreRun
// output.
func (p *Pipeline) SetTx(s netlist.TxSettings) {
	p.tx = s
	p.prepared, p.ran = false, false
}

// SetRx replaces the receive termination settings. Invalidates prior
// PreRun output.
func (p *Pipeline) SetRx(s netlist.RxSettings) {
	p.rx = s
	p.prepared, p.ran = false, false
}

// resolve finds a metadata entry's zero-based port in the full channel.
func (p *Pipeline) resolve(e ports.Entry) (int, error) {
	if idx, ok := p.net.PortIndex(e.Name); ok {
		return idx, nil
	}
	idx := e.Sequence - 1
	if idx < 0 || idx >= p.net.NumPorts() {
		return 0, fmt.Errorf("cct: port %q not in %d-port channel", e.Name, p.net.NumPorts())
	}
	return idx, nil
}

// remap rewrites a link's entries so their sequences address the pruned
// channel directly.
func remap(link ports.Link, keep []int, full func(ports.Entry) (int, error)) (ports.Link, error) {
	pos := make(map[int]int, len(keep))
	for k, idx := range keep {
		pos[idx] = k
	}
	out := ports.Link{Type: link.Type, Label: link.Label}
	convert := func(side []ports.Entry) ([]ports.Entry, error) {
		var entries []ports.Entry
		for _, e := range side {
			idx, err := full(e)
			if err != nil {
				return nil, err
			}
			k, ok := pos[idx]
			if !ok {
				return nil, fmt.Errorf("cct: port %q pruned away from its own link", e.Name)
			}
			e.Sequence = k + 1
			entries = append(entries, e)
		}
		return entries, nil
	}
	var err error
	if out.Tx, err = convert(link.Tx); err != nil {
		return out, err
	}
	if out.Rx, err = convert(link.Rx); err != nil {
		return out, err
	}
	return out, nil
}

// PreRun prunes the channel per link and writes the per-link networks
// into the work directory. It returns one summary per link for review
// before committing to simulation.
func (p *Pipeline) PreRun(ctx context.Context) ([]prune.Summary, error) {
	if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("cct: %w", err)
	}
	if p.opts.Prune {
		p.log.Info("cct: pruning enabled",
			logging.String("threshold", netlist.FormatWithUnit(p.opts.ThresholdDB, "dB")))
	}

	p.jobs = p.jobs[:0]
	var summaries []prune.Summary
	for _, link := range p.links {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cct: pre-run: %w", err)
		}

		var (
			sub  *touchstone.Network
			keep []int
			sum  prune.Summary
			err  error
		)
		if p.opts.Prune {
			sub, keep, sum, err = prune.Link(p.net, link, p.opts.ThresholdDB)
			if err != nil {
				return nil, err
			}
		} else {
			sub, keep, sum = p.fullChannel(link)
		}

		names := make([]string, len(keep))
		for k, idx := range keep {
			names[k] = p.net.PortName(idx)
		}
		deckRef, err := remap(link, keep, p.resolve)
		if err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(netlist.FileName(link), ".cir")
		tsPath := filepath.Join(p.opts.WorkDir, fmt.Sprintf("%s.s%dp", base, sub.NumPorts()))
		if err := touchstone.WriteFile(sub, tsPath); err != nil {
			return nil, err
		}

		p.jobs = append(p.jobs, &job{
			link:    link,
			deckRef: deckRef,
			channel: netlist.Channel{File: filepath.Base(tsPath), PortNames: names},
			summary: sum,
		})
		summaries = append(summaries, sum)

		p.log.Info("cct: link prepared",
			logging.String("link", link.Label),
			logging.Int("kept", sum.KeptPortCount),
			logging.Int("total", sum.TotalPortCount))
	}
	p.prepared = true
	p.ran = false
	return summaries, nil
}

// fullChannel builds the no-pruning equivalent of prune.Link.
func (p *Pipeline) fullChannel(link ports.Link) (*touchstone.Network, []int, prune.Summary) {
	n := p.net.NumPorts()
	keep := make([]int, n)
	names := make([]string, n)
	for i := range keep {
		keep[i] = i
		names[i] = p.net.PortName(i)
	}
	sum := prune.Summary{
		TxLabel:          link.Label,
		TotalPortCount:   n,
		KeptPortCount:    n,
		TotalRxPortCount: n - len(link.Tx),
		KeptRxPortCount:  n - len(link.Tx),
		KeptPorts:        names,
	}
	return p.net, keep, sum
}

// writeDeck renders and writes the transient deck for one job.
func (p *Pipeline) writeDeck(j *job, tr netlist.TransientSettings) error {
	deck, err := netlist.Generate(j.channel, j.deckRef, p.tx, p.rx, tr)
	if err != nil {
		return err
	}
	j.deck = filepath.Join(p.opts.WorkDir, netlist.FileName(j.link))
	if err := os.WriteFile(j.deck, []byte(deck), 0o644); err != nil {
		return fmt.Errorf("cct: %w", err)
	}
	return nil
}

// WriteDecks prepares the work directory and writes every link's deck
// without solving anything, for inspection or hand-off to a manual run.
func (p *Pipeline) WriteDecks(ctx context.Context, tr netlist.TransientSettings) ([]string, error) {
	if !p.prepared {
		if _, err := p.PreRun(ctx); err != nil {
			return nil, err
		}
	}
	paths := make([]string, 0, len(p.jobs))
	for _, j := range p.jobs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cct: %w", err)
		}
		if err := p.writeDeck(j, tr); err != nil {
			return nil, err
		}
		paths = append(paths, j.deck)
	}
	return paths, nil
}

// Run generates a deck per link and solves them in sequence. Progress, if
// non-nil, receives one update per link and is closed when Run returns.
func (p *Pipeline) Run(ctx context.Context, tr netlist.TransientSettings, progress chan<- Progress) error {
	if progress != nil {
		defer close(progress)
	}
	if !p.prepared {
		if _, err := p.PreRun(ctx); err != nil {
			return err
		}
	}

	sim := p.opts.Simulator
	if sim == nil {
		install, err := aedt.Locate(p.opts.Version)
		if err != nil {
			return err
		}
		sim = aedt.NewBatchSimulator(install, p.log)
	}

	for i, j := range p.jobs {
		if progress != nil {
			progress <- Progress{Step: i + 1, Total: len(p.jobs), Label: j.link.Label}
		}
		if err := p.writeDeck(j, tr); err != nil {
			return err
		}

		csv, err := sim.Run(ctx, j.deck)
		if err != nil {
			return err
		}
		j.csv = csv
		p.log.Info("cct: link solved",
			logging.String("link", j.link.Label),
			logging.String("waveforms", filepath.Base(csv)))
	}
	p.ran = true
	return nil
}
