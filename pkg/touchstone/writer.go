package touchstone

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes the network to path. The extension must match the
// network's port count.
func WriteFile(net *Network, path string) error {
	if want, err := PortsFromExtension(path); err != nil {
		return err
	} else if want != net.NumPorts() {
		return fmt.Errorf("touchstone: %s implies %d ports, network has %d",
			filepath.Base(path), want, net.NumPorts())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("touchstone: %w", err)
	}
	if err := Write(net, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write emits Touchstone v1 in real/imaginary format with GHz frequencies,
// carrying port-name annotations when present.
func Write(net *Network, w io.Writer) error {
	bw := bufio.NewWriter(w)
	ports := net.NumPorts()
	for i := 0; i < ports && i < len(net.PortNames); i++ {
		if net.PortNames[i] != "" {
			fmt.Fprintf(bw, "! Port[%d] = %s\n", i+1, net.PortNames[i])
		}
	}
	fmt.Fprintf(bw, "# GHz S RI R %g\n", net.RefOhms)
	for f, freq := range net.Freqs {
		fmt.Fprintf(bw, "%.9g", freq/1e9)
		col := 0
		for k := 0; k < ports*ports; k++ {
			i, j := k/ports, k%ports
			if ports == 2 {
				i, j = k%ports, k/ports
			}
			v := net.Params[f][i][j]
			fmt.Fprintf(bw, " %.9g %.9g", real(v), imag(v))
			col++
			// Four complex values per line keeps rows readable, matching
			// common exporter behavior.
			if col%4 == 0 && k != ports*ports-1 {
				fmt.Fprint(bw, "\n")
			}
		}
		fmt.Fprint(bw, "\n")
	}
	return bw.Flush()
}
