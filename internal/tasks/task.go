package tasks

import (
	"time"
)

// State is the lifecycle stage of a download.
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// IsActive reports whether the task still owns a transfer.
func (s State) IsActive() bool {
	return s == StateQueued || s == StateDownloading || s == StatePaused
}

// IsTerminal reports whether the task has finished, successfully or not.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) String() string { return string(s) }

// Task is a snapshot of one download, keyed by its source URL.
type Task struct {
	ID            string
	URL           string
	Name          string
	WrittenBytes  int64
	ExpectedBytes int64   // -1 until the transport learns the size
	Progress      float64 // [0,1]; 0 while ExpectedBytes is unknown
	State         State
	Err           string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// setBytes records counters from the transport and recomputes the fraction.
func (t *Task) setBytes(written, expected int64) {
	if written < 0 {
		written = 0
	}
	if expected <= 0 {
		expected = -1
	}
	t.WrittenBytes = written
	t.ExpectedBytes = expected

	if expected <= 0 {
		t.Progress = 0
		return
	}
	t.Progress = min(float64(written)/float64(expected), 1)
}

// Completion announces a finished download.
//
// RelativePath is relative to the downloads directory.
type Completion struct {
	URL          string
	Name         string
	RelativePath string
	SizeBytes    int64
}

// ProgressUpdate is a task snapshot sent whenever a task changes. Removed is set when the task
// leaves the table, after cancel or purge.
type ProgressUpdate struct {
	Task    Task
	Removed bool
}
