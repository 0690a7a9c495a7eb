package aedt

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Waveform holds the probe traces from one solved deck. Values is indexed
// by column then sample, parallel to Names.
type Waveform struct {
	Time   []float64
	Names  []string
	Values [][]float64
}

// Signal returns the trace for one probe column by name.
func (w *Waveform) Signal(name string) ([]float64, bool) {
	for i, n := range w.Names {
		if n == name {
			return w.Values[i], true
		}
	}
	return nil, false
}

// ReadWaveforms parses the solver's waveform CSV: a Time column followed
// by one column per probe.
func ReadWaveforms(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aedt: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("aedt: %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("aedt: %s: no samples", path)
	}
	header := records[0]
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "time") {
		return nil, fmt.Errorf("aedt: %s: first column must be Time", path)
	}

	w := &Waveform{
		Names:  make([]string, len(header)-1),
		Values: make([][]float64, len(header)-1),
	}
	for i, name := range header[1:] {
		w.Names[i] = strings.TrimSpace(name)
	}

	for rowIdx, row := range records[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("aedt: %s: row %d has %d columns, want %d",
				path, rowIdx+2, len(row), len(header))
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("aedt: %s: row %d: %w", path, rowIdx+2, err)
		}
		if n := len(w.Time); n > 0 && t <= w.Time[n-1] {
			return nil, fmt.Errorf("aedt: %s: time is not increasing at row %d", path, rowIdx+2)
		}
		w.Time = append(w.Time, t)
		for col := range w.Names {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("aedt: %s: row %d: %w", path, rowIdx+2, err)
			}
			w.Values[col] = append(w.Values[col], v)
		}
	}
	return w, nil
}
