package ui

import (
	"sync"
	"time"

	"github.com/signalpathlab/cct/pkg/cct"
	"github.com/signalpathlab/cct/pkg/ports"
	"github.com/signalpathlab/cct/pkg/prune"
)

// StateSnapshot captures a copy of the state data for rendering without
// requiring the UI to hold locks while laying out widgets.
type StateSnapshot struct {
	Busy      bool
	Status    string
	LastError error

	Progress    float32
	CurrentLink string

	Links     []ports.Link
	Summaries []prune.Summary
	Results   []cct.LinkResult

	Logs []string

	LastUpdated time.Time
}

// AppState tracks the mutable state shared between the Gio event loop
// and the background goroutines driving the pipeline.
type AppState struct {
	mu sync.RWMutex

	busy      bool
	status    string
	lastError error

	progress    float32
	currentLink string

	links     []ports.Link
	summaries []prune.Summary
	results   []cct.LinkResult

	logs     []string
	logLimit int

	lastUpdated time.Time
}

// NewState returns a baseline AppState with safe defaults.
func NewState() *AppState {
	return &AppState{
		status:      "Idle",
		logLimit:    200,
		lastUpdated: time.Now(),
	}
}

// Snapshot returns a copy of the mutable state for rendering.
func (s *AppState) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	linksCopy := make([]ports.Link, len(s.links))
	copy(linksCopy, s.links)
	summariesCopy := make([]prune.Summary, len(s.summaries))
	copy(summariesCopy, s.summaries)
	resultsCopy := make([]cct.LinkResult, len(s.results))
	copy(resultsCopy, s.results)
	logCopy := make([]string, len(s.logs))
	copy(logCopy, s.logs)

	return StateSnapshot{
		Busy:        s.busy,
		Status:      s.status,
		LastError:   s.lastError,
		Progress:    s.progress,
		CurrentLink: s.currentLink,
		Links:       linksCopy,
		Summaries:   summariesCopy,
		Results:     resultsCopy,
		Logs:        logCopy,
		LastUpdated: s.lastUpdated,
	}
}

// SetBusy toggles the busy flag.
func (s *AppState) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
	s.lastUpdated = time.Now()
}

// Busy returns the current busy flag.
func (s *AppState) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// SetStatus updates the user-facing status message.
func (s *AppState) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.lastUpdated = time.Now()
}

// SetError stores the latest error surfaced to the UI.
func (s *AppState) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastUpdated = time.Now()
}

// SetProgress records one progress update from a running phase.
func (s *AppState) SetProgress(step, total int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total > 0 {
		s.progress = float32(step) / float32(total)
	} else {
		s.progress = 0
	}
	s.currentLink = label
	s.lastUpdated = time.Now()
}

// ResetProgress clears the progress bar between phases.
func (s *AppState) ResetProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = 0
	s.currentLink = ""
	s.lastUpdated = time.Now()
}

// SetLinks replaces the displayed link list.
func (s *AppState) SetLinks(links []ports.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = make([]ports.Link, len(links))
	copy(s.links, links)
	s.lastUpdated = time.Now()
}

// SetSummaries replaces the pruning summaries shown after a pre-run.
func (s *AppState) SetSummaries(summaries []prune.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make([]prune.Summary, len(summaries))
	copy(s.summaries, summaries)
	s.lastUpdated = time.Now()
}

// SetResults replaces the per-link results table.
func (s *AppState) SetResults(results []cct.LinkResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]cct.LinkResult, len(results))
	copy(s.results, results)
	s.lastUpdated = time.Now()
}

// AppendLog appends a log message, trimming the oldest entries past the
// limit.
func (s *AppState) AppendLog(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, msg)
	if s.logLimit > 0 && len(s.logs) > s.logLimit {
		offset := len(s.logs) - s.logLimit
		s.logs = append([]string(nil), s.logs[offset:]...)
	}
	s.lastUpdated = time.Now()
}
