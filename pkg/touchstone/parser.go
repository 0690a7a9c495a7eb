package touchstone

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var extPattern = regexp.MustCompile(`(?i)^\.s([0-9]+)p$`)

// PortsFromExtension derives the port count from a .sNp file name.
func PortsFromExtension(path string) (int, error) {
	m := extPattern.FindStringSubmatch(filepath.Ext(path))
	if m == nil {
		return 0, fmt.Errorf("touchstone: %s is not a .sNp file", filepath.Base(path))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("touchstone: bad port count in extension of %s", filepath.Base(path))
	}
	return n, nil
}

// ParseFile reads a Touchstone file, deriving the port count from the
// file extension.
func ParseFile(path string) (*Network, error) {
	ports, err := PortsFromExtension(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("touchstone: %w", err)
	}
	defer f.Close()
	return Parse(f, ports)
}

// Parse reads Touchstone v1 data with the given port count. Frequency
// points may wrap across multiple lines; values are streamed and chunked
// by point, which handles any wrapping the writer chose.
func Parse(r io.Reader, ports int) (*Network, error) {
	if ports <= 0 {
		return nil, fmt.Errorf("touchstone: invalid port count %d", ports)
	}

	opts := defaultOptions()
	sawOptions := false
	portNames := make(map[int]string)
	var values []float64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		// Inline comments: everything after "!" is ignored unless the
		// whole line is a port annotation.
		if idx := strings.IndexByte(line, '!'); idx >= 0 {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "!") {
				if n, name, ok := parsePortComment(trimmed); ok {
					portNames[n] = name
				}
				continue
			}
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if sawOptions {
				// Touchstone v1 permits only one option line; later
				// ones are ignored by most tools, so follow suit.
				continue
			}
			parsed, err := parseOptionLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			opts = parsed
			sawOptions = true
			continue
		}
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("touchstone: line %d: bad value %q", lineNo, tok)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("touchstone: %w", err)
	}

	perPoint := 1 + 2*ports*ports
	if len(values) == 0 {
		return nil, fmt.Errorf("touchstone: no data rows")
	}
	if len(values)%perPoint != 0 {
		return nil, fmt.Errorf("touchstone: %d values is not a whole number of %d-port points", len(values), ports)
	}

	points := len(values) / perPoint
	net := &Network{
		Freqs:   make([]float64, 0, points),
		Params:  make([][][]complex128, 0, points),
		RefOhms: opts.RefOhms,
	}
	for p := 0; p < points; p++ {
		chunk := values[p*perPoint : (p+1)*perPoint]
		freq := chunk[0] * opts.FreqScale
		if len(net.Freqs) > 0 && freq <= net.Freqs[len(net.Freqs)-1] {
			return nil, fmt.Errorf("touchstone: frequencies not strictly increasing at %g Hz", freq)
		}
		net.Freqs = append(net.Freqs, freq)

		matrix := make([][]complex128, ports)
		for i := range matrix {
			matrix[i] = make([]complex128, ports)
		}
		vals := chunk[1:]
		for k := 0; k < ports*ports; k++ {
			a, b := vals[2*k], vals[2*k+1]
			i, j := k/ports, k%ports
			if ports == 2 {
				// 2-port files store S11 S21 S12 S22, i.e. column order.
				i, j = k%ports, k/ports
			}
			matrix[i][j] = decodeValue(opts.Format, a, b)
		}
		net.Params = append(net.Params, matrix)
	}

	if len(portNames) > 0 {
		net.PortNames = make([]string, ports)
		for n, name := range portNames {
			if n >= 1 && n <= ports {
				net.PortNames[n-1] = name
			}
		}
	}
	return net, nil
}

func decodeValue(format string, a, b float64) complex128 {
	switch format {
	case "RI":
		return complex(a, b)
	case "DB":
		mag := math.Pow(10, a/20)
		return cmplx.Rect(mag, b*math.Pi/180)
	default: // MA
		return cmplx.Rect(a, b*math.Pi/180)
	}
}
