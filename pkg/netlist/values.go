package netlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// valuePattern splits "40ohm", "1.8pF", "0.8V" into number and unit text.
var valuePattern = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*([A-Za-zΩ]*)$`)

// unitScale maps the unit suffixes the settings dialogs use onto SI
// multipliers. The base unit letter (V, s, F, Hz, ohm) is stripped before
// lookup, leaving only the magnitude prefix.
var unitScale = map[string]float64{
	"":    1,
	"f":   1e-15,
	"p":   1e-12,
	"n":   1e-9,
	"u":   1e-6,
	"m":   1e-3,
	"k":   1e3,
	"meg": 1e6,
	"g":   1e9,
	"t":   1e12,
}

// ParseValue converts a unit-suffixed settings string ("30ps", "40ohm",
// "1.8pF", "0.8V") to its SI base-unit value.
func ParseValue(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("netlist: empty value")
	}
	m := valuePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, fmt.Errorf("netlist: cannot parse value %q", s)
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("netlist: cannot parse value %q: %w", s, err)
	}

	unit := m[2]
	// Strip the base unit, longest names first so "ohm" survives intact.
	// The suffixes are compared lowercased, so Ω appears here as ω.
	matched := ""
	lower := strings.ToLower(unit)
	for _, base := range []string{"ohms", "ohm", "hz", "v", "s", "f", "ω"} {
		if strings.HasSuffix(lower, base) {
			unit = unit[:len(unit)-len(base)]
			matched = base
			break
		}
	}
	prefix := strings.ToLower(unit)
	// SPICE folds case, which would read "MHz" as millihertz. Nobody asks
	// for millihertz sweeps, so an M prefix on hertz always means mega.
	if matched == "hz" && prefix == "m" {
		return num * 1e6, nil
	}
	scale, ok := unitScale[prefix]
	if !ok {
		return 0, fmt.Errorf("netlist: unknown unit in %q", s)
	}
	return num * scale, nil
}

// FormatWithUnit renders a numeric settings value with its display unit,
// matching how the desktop dialogs serialize parameters ("0.8V", "30ps").
func FormatWithUnit(v float64, unit string) string {
	return fmt.Sprintf("%g%s", v, unit)
}
