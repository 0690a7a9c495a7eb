package ports

import (
	"fmt"
	"sort"
	"strings"
)

// LinkType distinguishes single-ended nets from differential pairs.
type LinkType int

const (
	LinkSingle LinkType = iota
	LinkDifferential
)

func (t LinkType) String() string {
	if t == LinkDifferential {
		return "Differential"
	}
	return "Single"
}

// Link pairs the transmit-side (controller) ports of a net or pair with
// the receive-side (memory) ports. Half-open links occur when the
// metadata only carries one side; they are reported but never simulated.
type Link struct {
	Type  LinkType
	Label string
	// Tx and Rx hold one entry for single-ended links, and the positive
	// then negative leg for differential links. Either may be empty.
	Tx []Entry
	Rx []Entry
}

// Complete reports whether both sides of the link are present.
func (l Link) Complete() bool { return len(l.Tx) > 0 && len(l.Rx) > 0 }

// TxDisplay formats the transmit side for tables and logs.
func (l Link) TxDisplay() string { return sideDisplay(l.Tx) }

// RxDisplay formats the receive side for tables and logs.
func (l Link) RxDisplay() string { return sideDisplay(l.Rx) }

func sideDisplay(side []Entry) string {
	if len(side) == 0 {
		return "(none)"
	}
	names := make([]string, len(side))
	for i, e := range side {
		names[i] = e.Name
	}
	return strings.Join(names, " / ")
}

type diffPair struct {
	label    string
	positive *Entry
	negative *Entry
}

// BuildLinks groups metadata entries into transmit→receive links. Singles
// match by net name; differential pairs match by the sorted signature of
// their positive and negative nets, so differently named pair labels on
// the two components still line up.
func BuildLinks(entries []Entry) []Link {
	singlesTx := make(map[string][]Entry)
	singlesRx := make(map[string][]Entry)
	diffTx := make(map[string]map[string]*diffPair) // component+pair -> legs
	diffRx := make(map[string]map[string]*diffPair)

	for _, e := range entries {
		var singles map[string][]Entry
		var diffs map[string]map[string]*diffPair
		switch e.ComponentRole {
		case RoleController:
			singles, diffs = singlesTx, diffTx
		case RoleDRAM:
			singles, diffs = singlesRx, diffRx
		default:
			continue
		}

		if e.NetType == NetDifferential {
			byPair := diffs[e.Component]
			if byPair == nil {
				byPair = make(map[string]*diffPair)
				diffs[e.Component] = byPair
			}
			label := e.PairLabel()
			pair := byPair[label]
			if pair == nil {
				pair = &diffPair{label: label}
				byPair[label] = pair
			}
			entry := e
			if e.Polarity == PolarityNegative {
				pair.negative = &entry
			} else {
				pair.positive = &entry
			}
			continue
		}
		singles[e.Net] = append(singles[e.Net], e)
	}

	var links []Link
	links = append(links, singleLinks(singlesTx, singlesRx)...)
	links = append(links, diffLinks(diffTx, diffRx)...)

	// Sorted by type name, so differential pairs list ahead of singles.
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.Type != b.Type {
			return a.Type.String() < b.Type.String()
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.TxDisplay() < b.TxDisplay()
	})
	return links
}

func singleLinks(tx, rx map[string][]Entry) []Link {
	nets := make(map[string]bool)
	for net := range tx {
		nets[net] = true
	}
	for net := range rx {
		nets[net] = true
	}

	var links []Link
	for net := range nets {
		txs, rxs := tx[net], rx[net]
		switch {
		case len(txs) > 0 && len(rxs) > 0:
			for _, t := range txs {
				for _, r := range rxs {
					links = append(links, Link{
						Type: LinkSingle, Label: net,
						Tx: []Entry{t}, Rx: []Entry{r},
					})
				}
			}
		case len(txs) > 0:
			for _, t := range txs {
				links = append(links, Link{Type: LinkSingle, Label: net, Tx: []Entry{t}})
			}
		default:
			for _, r := range rxs {
				links = append(links, Link{Type: LinkSingle, Label: net, Rx: []Entry{r}})
			}
		}
	}
	return links
}

// signature keys a differential pair by its two net names regardless of
// which leg the writer called positive.
func signature(p *diffPair) string {
	a, b := p.positive.Net, p.negative.Net
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func diffLinks(tx, rx map[string]map[string]*diffPair) []Link {
	collect := func(src map[string]map[string]*diffPair) map[string][]*diffPair {
		out := make(map[string][]*diffPair)
		for _, byPair := range src {
			for _, pair := range byPair {
				if pair.positive == nil || pair.negative == nil {
					continue // incomplete pair, nothing to drive
				}
				out[signature(pair)] = append(out[signature(pair)], pair)
			}
		}
		return out
	}
	txPairs := collect(tx)
	rxPairs := collect(rx)

	sigs := make(map[string]bool)
	for s := range txPairs {
		sigs[s] = true
	}
	for s := range rxPairs {
		sigs[s] = true
	}

	var links []Link
	for sig := range sigs {
		ts, rs := txPairs[sig], rxPairs[sig]
		label := ""
		if len(ts) > 0 {
			label = ts[0].label
		} else if len(rs) > 0 {
			label = rs[0].label
		}
		switch {
		case len(ts) > 0 && len(rs) > 0:
			for _, t := range ts {
				for _, r := range rs {
					links = append(links, Link{
						Type: LinkDifferential, Label: label,
						Tx: []Entry{*t.positive, *t.negative},
						Rx: []Entry{*r.positive, *r.negative},
					})
				}
			}
		case len(ts) > 0:
			for _, t := range ts {
				links = append(links, Link{
					Type: LinkDifferential, Label: label,
					Tx: []Entry{*t.positive, *t.negative},
				})
			}
		default:
			for _, r := range rs {
				links = append(links, Link{
					Type: LinkDifferential, Label: label,
					Rx: []Entry{*r.positive, *r.negative},
				})
			}
		}
	}
	return links
}

// CompleteLinks filters BuildLinks output down to the simulatable subset.
func CompleteLinks(entries []Entry) ([]Link, error) {
	links := BuildLinks(entries)
	var complete []Link
	for _, l := range links {
		if l.Complete() {
			complete = append(complete, l)
		}
	}
	if len(complete) == 0 {
		return nil, fmt.Errorf("ports: no complete transmit/receive links in metadata")
	}
	return complete, nil
}
