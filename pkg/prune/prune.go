// Package prune reduces an S-parameter channel to the ports that matter
// for one transmit link. Ports whose worst-case coupling to every
// transmit leg stays below a dB threshold contribute nothing visible to
// the transient response and are dropped before simulation.
package prune

import (
	"fmt"
	"sort"

	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/touchstone"
)

// Summary reports the outcome of pruning one link's channel.
type Summary struct {
	TxLabel          string
	ThresholdDB      float64
	TotalPortCount   int
	KeptPortCount    int
	TotalRxPortCount int
	KeptRxPortCount  int
	KeptPorts        []string
}

// resolve maps a metadata entry to its zero-based port in the network,
// by annotated name first and recorded sequence second.
func resolve(net *touchstone.Network, e ports.Entry) (int, error) {
	if idx, ok := net.PortIndex(e.Name); ok {
		return idx, nil
	}
	idx := e.Sequence - 1
	if idx < 0 || idx >= net.NumPorts() {
		return 0, fmt.Errorf("prune: port %q (sequence %d) not in %d-port network",
			e.Name, e.Sequence, net.NumPorts())
	}
	return idx, nil
}

// Link prunes the network down to the ports relevant to one complete
// link. The transmit and receive legs are always kept; any other port
// survives only if its worst-case coupling to some transmit leg exceeds
// thresholdDB. Kept indices come back sorted in network order.
func Link(net *touchstone.Network, link ports.Link, thresholdDB float64) (*touchstone.Network, []int, Summary, error) {
	sum := Summary{
		TxLabel:        link.Label,
		ThresholdDB:    thresholdDB,
		TotalPortCount: net.NumPorts(),
	}
	if !link.Complete() {
		return nil, nil, sum, fmt.Errorf("prune: link %s has no receive side", link.Label)
	}

	txIdx := make([]int, 0, len(link.Tx))
	mustKeep := make(map[int]bool)
	for _, e := range link.Tx {
		idx, err := resolve(net, e)
		if err != nil {
			return nil, nil, sum, err
		}
		txIdx = append(txIdx, idx)
		mustKeep[idx] = true
	}
	for _, e := range link.Rx {
		idx, err := resolve(net, e)
		if err != nil {
			return nil, nil, sum, err
		}
		mustKeep[idx] = true
	}
	sum.TotalRxPortCount = net.NumPorts() - len(txIdx)

	var keep []int
	for i := 0; i < net.NumPorts(); i++ {
		if mustKeep[i] {
			keep = append(keep, i)
			continue
		}
		for _, t := range txIdx {
			if net.MaxCouplingDB(i, t) >= thresholdDB {
				keep = append(keep, i)
				break
			}
		}
	}
	sort.Ints(keep)

	sub, err := net.Subnetwork(keep)
	if err != nil {
		return nil, nil, sum, err
	}

	sum.KeptPortCount = len(keep)
	sum.KeptRxPortCount = len(keep) - len(txIdx)
	sum.KeptPorts = make([]string, len(keep))
	for k, idx := range keep {
		sum.KeptPorts[k] = net.PortName(idx)
	}
	return sub, keep, sum, nil
}
