package aedt

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SimSimulator stands in for the batch solver when no license or install
// is available. It reads the deck's source, analysis window, and probe
// list, then synthesizes RC-shaped responses so the downstream waveform
// processing sees realistic data.
type SimSimulator struct {
	// Attenuation scales each successive probe's amplitude, mimicking
	// channel loss. Defaults to 0.85 when zero.
	Attenuation float64
}

var (
	pulsePattern = regexp.MustCompile(`PULSE\(([^)]*)\)`)
	probePattern = regexp.MustCompile(`(?i)^\.PROBE\s+V\(([^)]+)\)`)
	tranPattern  = regexp.MustCompile(`(?i)^\.TRAN\s+(\S+)\s+(\S+)`)
)

type simPulse struct {
	v0, v1       float64
	trise, width float64
	period       float64
}

// at returns the ideal pulse value at time t.
func (p simPulse) at(t float64) float64 {
	if p.period > 0 {
		t = math.Mod(t, p.period)
	}
	switch {
	case t < p.trise:
		return p.v0 + (p.v1-p.v0)*t/p.trise
	case t < p.trise+p.width:
		return p.v1
	case t < 2*p.trise+p.width:
		return p.v1 + (p.v0-p.v1)*(t-p.trise-p.width)/p.trise
	default:
		return p.v0
	}
}

type simDeck struct {
	pulses       []simPulse
	tstep, tstop float64
	probes       []string
}

// pulse returns the source driving the i-th probe. Differential decks
// carry one source per leg in probe order; with fewer sources than
// probes, the trailing probes share the last one.
func (d *simDeck) pulse(i int) simPulse {
	if i < len(d.pulses) {
		return d.pulses[i]
	}
	return d.pulses[len(d.pulses)-1]
}

func parseSimDeck(src string) (*simDeck, error) {
	d := &simDeck{}
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if m := tranPattern.FindStringSubmatch(line); m != nil {
			var err1, err2 error
			d.tstep, err1 = strconv.ParseFloat(m[1], 64)
			d.tstop, err2 = strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("aedt: bad .TRAN line %q", line)
			}
			continue
		}
		if m := probePattern.FindStringSubmatch(line); m != nil {
			d.probes = append(d.probes, strings.TrimSpace(m[1]))
			continue
		}
		if m := pulsePattern.FindStringSubmatch(line); m != nil {
			fields := strings.Fields(m[1])
			if len(fields) < 7 {
				return nil, fmt.Errorf("aedt: bad PULSE spec %q", m[1])
			}
			vals := make([]float64, 7)
			for i := range vals {
				v, err := strconv.ParseFloat(fields[i], 64)
				if err != nil {
					return nil, fmt.Errorf("aedt: bad PULSE value %q", fields[i])
				}
				vals[i] = v
			}
			d.pulses = append(d.pulses, simPulse{
				v0: vals[0], v1: vals[1],
				trise: vals[3], width: vals[5], period: vals[6],
			})
			continue
		}
	}
	if len(d.pulses) == 0 {
		return nil, fmt.Errorf("aedt: deck has no pulse source")
	}
	if d.tstop <= 0 || d.tstep <= 0 {
		return nil, fmt.Errorf("aedt: deck has no usable .TRAN line")
	}
	if len(d.probes) == 0 {
		return nil, fmt.Errorf("aedt: deck has no probes")
	}
	return d, nil
}

// Run synthesizes the waveform CSV next to the deck.
func (s *SimSimulator) Run(ctx context.Context, deckPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("aedt: %w", err)
	}
	src, err := os.ReadFile(deckPath)
	if err != nil {
		return "", fmt.Errorf("aedt: %w", err)
	}
	d, err := parseSimDeck(string(src))
	if err != nil {
		return "", fmt.Errorf("aedt: %s: %w", filepath.Base(deckPath), err)
	}

	atten := s.Attenuation
	if atten == 0 {
		atten = 0.85
	}
	tau := d.pulses[0].trise / 2.2 // single-pole constant for a 10-90 edge
	if tau <= 0 {
		tau = d.tstep
	}

	var b strings.Builder
	b.WriteString("Time")
	for _, p := range d.probes {
		fmt.Fprintf(&b, ",V(%s)", p)
	}
	b.WriteByte('\n')

	state := make([]float64, len(d.probes))
	for i := range state {
		state[i] = d.pulse(i).v0
	}
	for t := 0.0; t <= d.tstop+d.tstep/2; t += d.tstep {
		fmt.Fprintf(&b, "%g", t)
		scale := 1.0
		for i := range d.probes {
			p := d.pulse(i)
			target := p.v0 + (p.at(t)-p.v0)*scale
			state[i] += (target - state[i]) * d.tstep / (tau + d.tstep)
			fmt.Fprintf(&b, ",%g", state[i])
			scale *= atten
		}
		b.WriteByte('\n')
	}

	stem := strings.TrimSuffix(deckPath, filepath.Ext(deckPath))
	csvPath := stem + ".csv"
	if err := os.WriteFile(csvPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("aedt: %w", err)
	}
	return csvPath, nil
}
