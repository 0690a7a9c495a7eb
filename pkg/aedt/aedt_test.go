package aedt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCode(t *testing.T) {
	cases := []struct {
		version string
		want    string
		ok      bool
	}{
		{"2025.1", "251", true},
		{"2024.2", "242", true},
		{"2023.1", "231", true},
		{"25.1", "", false},
		{"2025", "", false},
		{"2025.10", "", false},
		{"banana", "", false},
	}
	for _, tc := range cases {
		got, err := VersionCode(tc.version)
		if tc.ok != (err == nil) {
			t.Errorf("VersionCode(%q) error = %v", tc.version, err)
			continue
		}
		if got != tc.want {
			t.Errorf("VersionCode(%q) = %q, want %q", tc.version, got, tc.want)
		}
	}
}

func TestLocateFromEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ANSYSEM_ROOT251", root)
	in, err := Locate("2025.1")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if in.Root != root || in.Version != "2025.1" {
		t.Errorf("got %+v", in)
	}
	if !strings.HasPrefix(in.Batch(), root) {
		t.Errorf("Batch() = %q not under root", in.Batch())
	}
}

func TestLocateRejectsMissingEnvRoot(t *testing.T) {
	t.Setenv("ANSYSEM_ROOT251", filepath.Join(t.TempDir(), "nope"))
	if _, err := Locate("2025.1"); err == nil {
		t.Fatal("expected error for dangling ANSYSEM_ROOT")
	}
}

func TestLocateUnknownVersion(t *testing.T) {
	if _, err := Locate("2099.9"); err == nil {
		t.Fatal("expected error for an uninstalled version")
	}
}

const testDeck = `* Single link DDR_D7: 1_U43_DDR_D7 -> 2_U42_DDR_D7
.MODEL channel S TSTONEFILE="chan.s4p"
S1 p1 p2 p3 p4 0 FQMODEL="channel"
Vtx1 tx1 0 PULSE(0 0.8 0 3e-11 3e-11 1.03e-10 2.66e-10)
Rtx1 tx1 p1 40
Ctx1 p1 0 1e-12
.TRAN 1e-12 1e-09
.PROBE V(p2)
.PROBE V(p4)
.END
`

func writeDeck(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DDR_D7.cir")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestSimSimulatorRun(t *testing.T) {
	deck := writeDeck(t, testDeck)
	sim := &SimSimulator{}
	csvPath, err := sim.Run(context.Background(), deck)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	w, err := ReadWaveforms(csvPath)
	if err != nil {
		t.Fatalf("ReadWaveforms failed: %v", err)
	}
	if len(w.Names) != 2 || w.Names[0] != "V(p2)" || w.Names[1] != "V(p4)" {
		t.Fatalf("probe columns = %v", w.Names)
	}
	if len(w.Time) < 100 {
		t.Fatalf("only %d samples", len(w.Time))
	}

	near, _ := w.Signal("V(p2)")
	far, _ := w.Signal("V(p4)")
	maxNear, maxFar := 0.0, 0.0
	for i := range near {
		if near[i] > maxNear {
			maxNear = near[i]
		}
		if far[i] > maxFar {
			maxFar = far[i]
		}
	}
	if maxNear < 0.7 {
		t.Errorf("near-end peak %g never approaches the 0.8V drive", maxNear)
	}
	if maxFar >= maxNear {
		t.Errorf("far probe peak %g should be attenuated below %g", maxFar, maxNear)
	}
}

func TestSimSimulatorRejectsBadDecks(t *testing.T) {
	cases := map[string]string{
		"no pulse":  ".TRAN 1e-12 1e-9\n.PROBE V(p2)\n.END\n",
		"no tran":   "Vtx1 tx1 0 PULSE(0 0.8 0 3e-11 3e-11 1e-10 2e-10)\n.PROBE V(p2)\n.END\n",
		"no probes": "Vtx1 tx1 0 PULSE(0 0.8 0 3e-11 3e-11 1e-10 2e-10)\n.TRAN 1e-12 1e-9\n.END\n",
	}
	sim := &SimSimulator{}
	for name, content := range cases {
		if _, err := sim.Run(context.Background(), writeDeck(t, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSimSimulatorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := &SimSimulator{}
	if _, err := sim.Run(ctx, writeDeck(t, testDeck)); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func fakeSolver(t *testing.T, script string) Install {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver script needs a POSIX shell")
	}
	root := t.TempDir()
	exe := filepath.Join(root, "ansysedt")
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake solver: %v", err)
	}
	return Install{Version: "2025.1", Root: root}
}

func TestBatchSimulatorRun(t *testing.T) {
	in := fakeSolver(t, "#!/bin/sh\ndeck=\"$3\"\nprintf 'Time,V(p2)\\n0,0\\n1e-12,0.1\\n' > \"${deck%.cir}.csv\"\n")
	deck := writeDeck(t, testDeck)

	sim := NewBatchSimulator(in, nil)
	csvPath, err := sim.Run(context.Background(), deck)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	w, err := ReadWaveforms(csvPath)
	if err != nil {
		t.Fatalf("ReadWaveforms failed: %v", err)
	}
	if len(w.Time) != 2 {
		t.Errorf("got %d samples, want 2", len(w.Time))
	}
}

func TestBatchSimulatorReportsSolverFailure(t *testing.T) {
	in := fakeSolver(t, "#!/bin/sh\necho 'license checkout failed' >&2\nexit 1\n")
	sim := NewBatchSimulator(in, nil)
	_, err := sim.Run(context.Background(), writeDeck(t, testDeck))
	if err == nil {
		t.Fatal("expected solver failure")
	}
	if !strings.Contains(err.Error(), "license checkout failed") {
		t.Errorf("error should carry solver output, got: %v", err)
	}
}

func TestReadWaveformsErrors(t *testing.T) {
	cases := map[string]string{
		"missing time header": "Volts,V(p2)\n0,0\n",
		"ragged row":          "Time,V(p2)\n0,0\n1e-12\n",
		"non-increasing":      "Time,V(p2)\n1e-12,0\n1e-12,0.1\n",
		"no samples":          "Time,V(p2)\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "w.csv")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadWaveforms(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
