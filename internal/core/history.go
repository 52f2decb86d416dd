package core

import "time"

// SyncRun is one CLI invocation that mutated the workspace, recorded for
// `dogflare history`.
type SyncRun struct {
	ID         string
	Operation  string
	StartedAt  time.Time
	FinishedAt time.Time
	Added      int
	Duplicates int
	Failures   int
}

// History records sync runs. Recording is best-effort: a history write
// failure is logged but never fails the run it describes.
type History interface {
	RecordRun(run *SyncRun) error
	RecentRuns(limit int) ([]*SyncRun, error)
}
