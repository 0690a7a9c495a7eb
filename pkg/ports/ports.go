// Package ports models the port metadata companion file written next to a
// Touchstone export: which solver port belongs to which component, net,
// and differential pair, and which side of the channel drives it.
package ports

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Component roles. The controller side transmits, the memory side receives.
const (
	RoleController = "controller"
	RoleDRAM       = "dram"
)

// Net types and differential polarities.
const (
	NetSingle       = "single"
	NetDifferential = "differential"

	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Entry is one solver port as recorded in the metadata file.
type Entry struct {
	Sequence      int    `json:"sequence"`
	Name          string `json:"name"`
	Component     string `json:"component"`
	ComponentRole string `json:"component_role"`
	Net           string `json:"net"`
	NetType       string `json:"net_type"`
	Pair          string `json:"pair,omitempty"`
	Polarity      string `json:"polarity,omitempty"`
	ReferenceNet  string `json:"reference_net,omitempty"`
}

// PairLabel returns the differential pair label, falling back to the net
// name when the writer left it blank.
func (e Entry) PairLabel() string {
	if e.Pair != "" {
		return e.Pair
	}
	return e.Net
}

// Metadata is the companion JSON document as a whole.
type Metadata struct {
	AEDBPath             string   `json:"aedb_path,omitempty"`
	ReferenceNet         string   `json:"reference_net"`
	ControllerComponents []string `json:"controller_components"`
	DRAMComponents       []string `json:"dram_components"`
	Ports                []Entry  `json:"ports"`
}

// Load reads and validates a port metadata file.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ports: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("ports: %s: %w", path, err)
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("ports: %s: %w", path, err)
	}
	// Normalize names to the exporter's N_ convention so lookups by name
	// match the Touchstone port annotations.
	for i := range md.Ports {
		e := &md.Ports[i]
		e.Name = PrefixPortName(e.Name, e.Sequence)
	}
	return &md, nil
}

// Validate checks the structural invariants the rest of the pipeline
// relies on.
func (md *Metadata) Validate() error {
	if len(md.Ports) == 0 {
		return fmt.Errorf("no ports defined")
	}
	seen := make(map[int]bool, len(md.Ports))
	for i := range md.Ports {
		e := &md.Ports[i]
		if e.Sequence <= 0 {
			return fmt.Errorf("port %q: sequence must be positive", e.Name)
		}
		if seen[e.Sequence] {
			return fmt.Errorf("duplicate port sequence %d", e.Sequence)
		}
		seen[e.Sequence] = true
		if e.Net == "" {
			return fmt.Errorf("port %q: missing net", e.Name)
		}
		switch e.NetType {
		case "", NetSingle:
		case NetDifferential:
			if e.Polarity != PolarityPositive && e.Polarity != PolarityNegative {
				return fmt.Errorf("differential port %q: polarity must be %s or %s",
					e.Name, PolarityPositive, PolarityNegative)
			}
		default:
			return fmt.Errorf("port %q: unknown net type %q", e.Name, e.NetType)
		}
	}
	return nil
}

var ordinalPrefix = regexp.MustCompile(`^\d+_(.*)$`)

// PrefixPortName strips any existing ordinal prefix from a port name and
// re-prefixes it with the given sequence, so repeated normalization is
// idempotent.
func PrefixPortName(name string, sequence int) string {
	base := name
	if m := ordinalPrefix.FindStringSubmatch(base); m != nil {
		base = m[1]
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return strconv.Itoa(sequence)
	}
	return fmt.Sprintf("%d_%s", sequence, base)
}
