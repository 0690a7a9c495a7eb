package netlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/signalpathlab/cct/pkg/ports"
)

// Channel identifies the S-parameter model the deck instantiates. File is
// the path written into the deck, PortNames the solver port order.
type Channel struct {
	File      string
	PortNames []string
}

// PortIndex resolves a metadata entry to its zero-based channel port. It
// matches by name first and falls back to the recorded sequence.
func (c Channel) PortIndex(e ports.Entry) (int, error) {
	for i, n := range c.PortNames {
		if n == e.Name {
			return i, nil
		}
	}
	idx := e.Sequence - 1
	if idx < 0 || idx >= len(c.PortNames) {
		return 0, fmt.Errorf("netlist: port %q (sequence %d) not in %d-port channel",
			e.Name, e.Sequence, len(c.PortNames))
	}
	return idx, nil
}

type driver struct {
	Name     string
	Node     string // source node, before the series resistor
	PortNode string
	V0, V1   string
	TRise    string
	Width    string
	Period   string
	ResName  string
	Res      string
	CapName  string
	Cap      string
}

type termination struct {
	Index int
	Node  string
	Res   string
	Cap   string
}

type deck struct {
	Title      string
	ModelName  string
	Touchstone string
	Nodes      []string
	Drivers    []driver
	Terms      []termination
	TStep      string
	TStop      string
	Probes     []string
}

var deckTemplate = template.Must(template.New("deck").Parse(`* {{.Title}}
.MODEL {{.ModelName}} S TSTONEFILE="{{.Touchstone}}"
S1 {{range .Nodes}}{{.}} {{end}}0 FQMODEL="{{.ModelName}}"
{{range .Drivers}}{{.Name}} {{.Node}} 0 PULSE({{.V0}} {{.V1}} 0 {{.TRise}} {{.TRise}} {{.Width}} {{.Period}})
{{.ResName}} {{.Node}} {{.PortNode}} {{.Res}}
{{.CapName}} {{.PortNode}} 0 {{.Cap}}
{{end}}{{range .Terms}}Rt{{.Index}} {{.Node}} 0 {{.Res}}
Ct{{.Index}} {{.Node}} 0 {{.Cap}}
{{end}}.TRAN {{.TStep}} {{.TStop}}
{{range .Probes}}.PROBE V({{.}})
{{end}}.END
`))

// eng prints a settings value for the deck, rounded so that arithmetic
// on parsed unit values does not leak float noise into the output.
func eng(v float64) string { return strconv.FormatFloat(v, 'g', 12, 64) }

// Generate renders the transient deck for one complete link. The transmit
// leg(s) get the pulse driver, every other channel port gets the receive
// termination, and the receive leg(s) are probed.
func Generate(ch Channel, link ports.Link, tx TxSettings, rx RxSettings, tr TransientSettings) (string, error) {
	if !link.Complete() {
		return "", fmt.Errorf("netlist: link %s has no receive side", link.Label)
	}
	if len(ch.PortNames) == 0 {
		return "", fmt.Errorf("netlist: channel has no ports")
	}

	vhigh, err := ParseValue(tx.VHigh)
	if err != nil {
		return "", err
	}
	trise, err := ParseValue(tx.TRise)
	if err != nil {
		return "", err
	}
	ui, err := ParseValue(tx.UI)
	if err != nil {
		return "", err
	}
	resTx, err := ParseValue(tx.Res)
	if err != nil {
		return "", err
	}
	capTx, err := ParseValue(tx.Cap)
	if err != nil {
		return "", err
	}
	resRx, err := ParseValue(rx.Res)
	if err != nil {
		return "", err
	}
	capRx, err := ParseValue(rx.Cap)
	if err != nil {
		return "", err
	}
	tstep, err := ParseValue(tr.TStep)
	if err != nil {
		return "", err
	}
	tstop, err := ParseValue(tr.TStop)
	if err != nil {
		return "", err
	}
	if trise >= ui {
		return "", fmt.Errorf("netlist: rise time %s is not shorter than unit interval %s", tx.TRise, tx.UI)
	}
	if tstep <= 0 || tstop <= tstep {
		return "", fmt.Errorf("netlist: transient window %s/%s is not usable", tr.TStep, tr.TStop)
	}

	d := deck{
		Title:      fmt.Sprintf("%s link %s: %s -> %s", link.Type, link.Label, link.TxDisplay(), link.RxDisplay()),
		ModelName:  "channel",
		Touchstone: ch.File,
		TStep:      eng(tstep),
		TStop:      eng(tstop),
	}
	for i := range ch.PortNames {
		d.Nodes = append(d.Nodes, fmt.Sprintf("p%d", i+1))
	}

	driven := make(map[int]bool)
	for legIdx, e := range link.Tx {
		idx, err := ch.PortIndex(e)
		if err != nil {
			return "", err
		}
		driven[idx] = true
		v0, v1 := "0", eng(vhigh)
		if legIdx == 1 {
			// Negative leg of a differential pair swings opposite.
			v0, v1 = v1, v0
		}
		d.Drivers = append(d.Drivers, driver{
			Name:     fmt.Sprintf("Vtx%d", legIdx+1),
			Node:     fmt.Sprintf("tx%d", legIdx+1),
			PortNode: d.Nodes[idx],
			V0:       v0,
			V1:       v1,
			TRise:    eng(trise),
			Width:    eng(ui - trise),
			Period:   eng(2 * ui),
			ResName:  fmt.Sprintf("Rtx%d", legIdx+1),
			Res:      eng(resTx),
			CapName:  fmt.Sprintf("Ctx%d", legIdx+1),
			Cap:      eng(capTx),
		})
	}

	for _, e := range link.Rx {
		idx, err := ch.PortIndex(e)
		if err != nil {
			return "", err
		}
		d.Probes = append(d.Probes, d.Nodes[idx])
	}

	for i := range ch.PortNames {
		if driven[i] {
			continue
		}
		d.Terms = append(d.Terms, termination{
			Index: i + 1,
			Node:  d.Nodes[i],
			Res:   eng(resRx),
			Cap:   eng(capRx),
		})
	}

	var b strings.Builder
	if err := deckTemplate.Execute(&b, d); err != nil {
		return "", fmt.Errorf("netlist: render deck for %s: %w", link.Label, err)
	}
	return b.String(), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName derives a filesystem-safe deck name for a link.
func FileName(link ports.Link) string {
	label := unsafeChars.ReplaceAllString(link.Label, "_")
	if label == "" {
		label = "link"
	}
	return label + ".cir"
}
