package ui

import (
	"fmt"
	"testing"

	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/prune"
)

func TestSnapshotCopiesState(t *testing.T) {
	s := NewState()
	s.SetLinks([]ports.Link{{Type: ports.LinkSingle, Label: "DDR_D7"}})
	s.SetSummaries([]prune.Summary{{TxLabel: "DDR_D7", KeptPortCount: 2}})
	s.SetStatus("working")
	s.SetBusy(true)

	snap := s.Snapshot()
	if !snap.Busy || snap.Status != "working" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Links) != 1 || snap.Links[0].Label != "DDR_D7" {
		t.Fatalf("links = %+v", snap.Links)
	}

	// Mutating state after the snapshot must not alter it.
	s.SetLinks(nil)
	if len(snap.Links) != 1 {
		t.Error("snapshot shares the link slice with the state")
	}
}

func TestSetProgress(t *testing.T) {
	s := NewState()
	s.SetProgress(1, 4, "DDR_D7")
	snap := s.Snapshot()
	if snap.Progress != 0.25 || snap.CurrentLink != "DDR_D7" {
		t.Fatalf("progress snapshot = %+v", snap)
	}

	s.SetProgress(1, 0, "x")
	if got := s.Snapshot().Progress; got != 0 {
		t.Errorf("zero total should clear progress, got %g", got)
	}

	s.ResetProgress()
	snap = s.Snapshot()
	if snap.Progress != 0 || snap.CurrentLink != "" {
		t.Errorf("reset snapshot = %+v", snap)
	}
}

func TestAppendLogTrims(t *testing.T) {
	s := NewState()
	s.logLimit = 5
	for i := 0; i < 12; i++ {
		s.AppendLog(fmt.Sprintf("line %d", i))
	}
	logs := s.Snapshot().Logs
	if len(logs) != 5 {
		t.Fatalf("got %d log lines, want 5", len(logs))
	}
	if logs[0] != "line 7" || logs[4] != "line 11" {
		t.Errorf("kept wrong lines: %v", logs)
	}
}
