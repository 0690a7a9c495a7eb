package prune

import (
	"testing"

	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/touchstone"
)

// fourPortNet couples port 3 strongly (-20 dB) and port 4 weakly
// (-80 dB) to the transmit port 1.
func fourPortNet() *touchstone.Network {
	coupling := [][]float64{
		{1, 0.5, 0.1, 1e-4},
		{0.5, 1, 0.01, 1e-4},
		{0.1, 0.01, 1, 1e-4},
		{1e-4, 1e-4, 1e-4, 1},
	}
	matrix := make([][]complex128, 4)
	for i := range matrix {
		row := make([]complex128, 4)
		for j := range row {
			row[j] = complex(coupling[i][j], 0)
		}
		matrix[i] = row
	}
	return &touchstone.Network{
		Freqs:     []float64{1e9},
		Params:    [][][]complex128{matrix},
		PortNames: []string{"1_TX", "2_RX", "3_AGG", "4_FAR"},
		RefOhms:   50,
	}
}

func testLink() ports.Link {
	return ports.Link{
		Type:  ports.LinkSingle,
		Label: "DDR_D7",
		Tx:    []ports.Entry{{Sequence: 1, Name: "1_TX"}},
		Rx:    []ports.Entry{{Sequence: 2, Name: "2_RX"}},
	}
}

func TestLinkDropsWeakPorts(t *testing.T) {
	sub, keep, sum, err := Link(fourPortNet(), testLink(), -60)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if len(keep) != 3 || keep[0] != 0 || keep[1] != 1 || keep[2] != 2 {
		t.Fatalf("kept %v, want [0 1 2]", keep)
	}
	if sub.NumPorts() != 3 {
		t.Errorf("subnetwork has %d ports", sub.NumPorts())
	}
	if sum.TotalPortCount != 4 || sum.KeptPortCount != 3 {
		t.Errorf("summary counts: %+v", sum)
	}
	if sum.TotalRxPortCount != 3 || sum.KeptRxPortCount != 2 {
		t.Errorf("rx counts: %+v", sum)
	}
	if len(sum.KeptPorts) != 3 || sum.KeptPorts[2] != "3_AGG" {
		t.Errorf("kept names: %v", sum.KeptPorts)
	}
}

func TestLinkKeepsEndpointsRegardlessOfThreshold(t *testing.T) {
	// An absurdly strict threshold still keeps both link endpoints.
	_, keep, _, err := Link(fourPortNet(), testLink(), 0)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if len(keep) != 2 || keep[0] != 0 || keep[1] != 1 {
		t.Fatalf("kept %v, want the two endpoints", keep)
	}
}

func TestLinkLooseThresholdKeepsEverything(t *testing.T) {
	_, keep, sum, err := Link(fourPortNet(), testLink(), -100)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if len(keep) != 4 {
		t.Fatalf("kept %v, want all 4 ports", keep)
	}
	if sum.KeptRxPortCount != 3 {
		t.Errorf("rx kept = %d, want 3", sum.KeptRxPortCount)
	}
}

func TestLinkRejectsHalfOpen(t *testing.T) {
	link := testLink()
	link.Rx = nil
	if _, _, _, err := Link(fourPortNet(), link, -60); err == nil {
		t.Fatal("expected error for half-open link")
	}
}

func TestLinkResolvesBySequenceWithoutNames(t *testing.T) {
	net := fourPortNet()
	net.PortNames = nil
	_, keep, _, err := Link(net, testLink(), -60)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if len(keep) != 3 {
		t.Fatalf("kept %v, want 3 ports", keep)
	}

	link := testLink()
	link.Tx[0] = ports.Entry{Sequence: 99, Name: "99_NOPE"}
	if _, _, _, err := Link(net, link, -60); err == nil {
		t.Fatal("expected error for out-of-range sequence")
	}
}
