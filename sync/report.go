package sync

import (
	stdsync "sync"
	"time"

	"github.com/google/uuid"
)

// RowError records a per-row failure - either a source row that failed
// validation (Serial unknown, Row set) or a store write that exhausted its
// retries (Serial set).
type RowError struct {
	Serial int64
	Row    int
	Reason string
}

// Conflict records a duplicate serial within one source snapshot. The later
// row wins by position; both positions are reported so the data owner can
// fix the sheet.
type Conflict struct {
	Serial     int64
	KeptRow    int
	DroppedRow int
}

// Report summarizes one reconciliation run. With no live monitoring in a
// typical deployment this is the primary observability surface.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	DryRun   bool

	Inserted int
	Updated  int
	Skipped  int
	Removed  int
	Failed   int
	Retries  int

	Invalid   []RowError
	Conflicts []Conflict
	Errors    []RowError

	mu stdsync.Mutex
}

func NewReport() *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
}

// Clean reports whether the run applied cleanly - no write failures and no
// data-quality problems in the source.
func (r *Report) Clean() bool {
	return r.Failed == 0 && len(r.Invalid) == 0 && len(r.Conflicts) == 0
}

func (r *Report) addRetries(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Retries += n
}
