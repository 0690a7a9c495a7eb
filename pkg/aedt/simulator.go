package aedt

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/signalpathlab/cct/internal/logging"
)

// Simulator runs one transient deck and returns the path of the waveform
// CSV it produced.
type Simulator interface {
	Run(ctx context.Context, deckPath string) (string, error)
}

// BatchSimulator drives the real desktop batch solver.
type BatchSimulator struct {
	Install Install
	Log     logging.Logger
}

// NewBatchSimulator wires a located install to a logger.
func NewBatchSimulator(install Install, log logging.Logger) *BatchSimulator {
	if log == nil {
		log = logging.Noop()
	}
	return &BatchSimulator{Install: install, Log: log}
}

// Run solves the deck non-graphically. The solver writes its waveform CSV
// and log next to the deck; on failure the tail of the log is folded into
// the returned error.
func (b *BatchSimulator) Run(ctx context.Context, deckPath string) (string, error) {
	abs, err := filepath.Abs(deckPath)
	if err != nil {
		return "", fmt.Errorf("aedt: %w", err)
	}
	stem := strings.TrimSuffix(abs, filepath.Ext(abs))

	cmd := exec.CommandContext(ctx, b.Install.Batch(), "-ng", "-batchsolve", abs)
	cmd.Dir = filepath.Dir(abs)

	b.Log.Info("aedt: solving deck",
		logging.String("deck", filepath.Base(abs)),
		logging.String("version", b.Install.Version))
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("aedt: solve %s: %w", filepath.Base(abs), ctx.Err())
		}
		detail := logTail(stem+".log", out)
		return "", fmt.Errorf("aedt: solve %s: %w\n%s", filepath.Base(abs), err, detail)
	}

	csvPath := stem + ".csv"
	if _, err := os.Stat(csvPath); err != nil {
		return "", fmt.Errorf("aedt: solver finished but wrote no waveforms: %w", err)
	}
	return csvPath, nil
}

// logTail prefers the last lines of the solver log over raw process
// output, which the batch solver keeps mostly empty.
func logTail(logPath string, fallback []byte) string {
	const maxLines = 20
	data, err := os.ReadFile(logPath)
	if err != nil {
		data = fallback
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
