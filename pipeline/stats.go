package pipeline

import (
	"sync"

	"github.com/deedworks/deedflow/deed"
)

// Snapshot is a point-in-time view of a batch run, safe to hand to
// status endpoints and progress displays.
type Snapshot struct {
	Total      int
	Processed  int
	Successful int
	Failed     int
	Stopped    int

	Stage1Active int
	Stage2Active int
	InBuffer     int

	CurrentDocID string
	IsRunning    bool
	OCRWorkers   int
	LLMWorkers   int
}

// Stats tracks batch progress. All fields move under one mutex so a
// snapshot is always internally consistent.
type Stats struct {
	mu    sync.Mutex
	snap  Snapshot
	depth func() int
}

// StartBatch resets the counters for a new run.
func (s *Stats) StartBatch(total, ocrWorkers, llmWorkers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{
		Total:      total,
		IsRunning:  true,
		OCRWorkers: ocrWorkers,
		LLMWorkers: llmWorkers,
	}
}

// Stage1Start marks a stage-1 worker busy on doc.
func (s *Stats) Stage1Start(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stage1Active++
	s.snap.CurrentDocID = docID
}

// Stage1Done marks a stage-1 worker idle again.
func (s *Stats) Stage1Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stage1Active--
}

// TrackBuffer installs the hand-off depth source read by snapshots.
// Reading the buffer's own occupancy keeps InBuffer exact: counter
// pairs around a channel send can transiently disagree with it.
func (s *Stats) TrackBuffer(depth func() int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth = depth
}

// Stage2Start marks a stage-2 worker busy on doc.
func (s *Stats) Stage2Start(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stage2Active++
	s.snap.CurrentDocID = docID
}

// Stage2Done records a terminal outcome from a stage-2 worker.
func (s *Stats) Stage2Done(status deed.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stage2Active--
	s.tally(status)
}

// Terminal records a terminal outcome settled without a stage-2
// worker, a stage-1 failure or stop.
func (s *Stats) Terminal(status deed.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tally(status)
}

func (s *Stats) tally(status deed.Status) {
	s.snap.Processed++
	switch status {
	case deed.StatusOk:
		s.snap.Successful++
	case deed.StatusFailed:
		s.snap.Failed++
	case deed.StatusStopped:
		s.snap.Stopped++
	}
}

// Finish marks the run over.
func (s *Stats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsRunning = false
	s.snap.CurrentDocID = ""
}

// Snapshot returns a consistent copy of the current state.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap = s.snap
	if s.depth != nil {
		snap.InBuffer = s.depth()
	}
	return snap
}
