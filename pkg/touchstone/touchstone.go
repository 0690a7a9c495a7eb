// Package touchstone reads and writes Touchstone v1 S-parameter files
// (.s2p, .s4p, ...), including the port-name comment annotations that
// field-solver exports carry.
package touchstone

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Network holds a multi-port frequency-domain network.
type Network struct {
	// Freqs are the sweep points in Hz, strictly increasing.
	Freqs []float64
	// Params[f][i][j] is S(i,j) at Freqs[f].
	Params [][][]complex128
	// PortNames holds one entry per port when the file carried
	// "! Port[n] = name" annotations; empty otherwise.
	PortNames []string
	// RefOhms is the reference impedance from the option line.
	RefOhms float64
}

// NumPorts returns the port count of the network.
func (n *Network) NumPorts() int {
	if len(n.Params) == 0 {
		return 0
	}
	return len(n.Params[0])
}

// PortName returns the annotated name for a zero-based port index, falling
// back to "Port<n>" when the file carried no annotation.
func (n *Network) PortName(i int) string {
	if i >= 0 && i < len(n.PortNames) && n.PortNames[i] != "" {
		return n.PortNames[i]
	}
	return fmt.Sprintf("Port%d", i+1)
}

// PortIndex resolves a port name to its zero-based index.
func (n *Network) PortIndex(name string) (int, bool) {
	for i := range n.PortNames {
		if n.PortNames[i] == name {
			return i, true
		}
	}
	return 0, false
}

// MagnitudeDB returns 20*log10|S(i,j)| at frequency index f.
func (n *Network) MagnitudeDB(f, i, j int) float64 {
	mag := cmplx.Abs(n.Params[f][i][j])
	if mag == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}

// MaxCouplingDB returns the worst-case (largest) |S(i,j)| in dB across the
// whole sweep.
func (n *Network) MaxCouplingDB(i, j int) float64 {
	max := math.Inf(-1)
	for f := range n.Freqs {
		if db := n.MagnitudeDB(f, i, j); db > max {
			max = db
		}
	}
	return max
}

// Subnetwork returns a copy of the network restricted to the given
// zero-based port indices, preserving their relative order and names.
func (n *Network) Subnetwork(keep []int) (*Network, error) {
	ports := n.NumPorts()
	for _, idx := range keep {
		if idx < 0 || idx >= ports {
			return nil, fmt.Errorf("touchstone: port index %d out of range (%d ports)", idx, ports)
		}
	}
	out := &Network{
		Freqs:   append([]float64(nil), n.Freqs...),
		RefOhms: n.RefOhms,
	}
	if len(n.PortNames) > 0 {
		out.PortNames = make([]string, len(keep))
		for k, idx := range keep {
			if idx < len(n.PortNames) {
				out.PortNames[k] = n.PortNames[idx]
			}
		}
	}
	out.Params = make([][][]complex128, len(n.Freqs))
	for f := range n.Freqs {
		matrix := make([][]complex128, len(keep))
		for a, i := range keep {
			row := make([]complex128, len(keep))
			for b, j := range keep {
				row[b] = n.Params[f][i][j]
			}
			matrix[a] = row
		}
		out.Params[f] = matrix
	}
	return out, nil
}
