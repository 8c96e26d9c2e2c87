package sync

import (
	"context"
	stdsync "sync"
	"time"
)

// State is the scheduler's position in its Idle/Running/Queued cycle.
type State int

const (
	Idle State = iota
	Running
	Queued
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"

	case Queued:
		return "queued"

	default:
		return "idle"
	}
}

// Scheduler serializes reconciliation runs. Edit events and timer fires call
// Trigger; a trigger while a run is in progress queues exactly one follow-up
// run, however many triggers arrive in the meantime. This is the system's
// only mutual exclusion: concurrent reconciliations against the same table
// risk lost updates on overlapping serials.
type Scheduler struct {
	run     func(ctx context.Context, reason string)
	timeout time.Duration
	ctx     context.Context

	mu      stdsync.Mutex
	state   State
	pending string
	wg      stdsync.WaitGroup
}

// NewScheduler wraps run in a coalescing trigger gate. Each run executes
// under a context bounded by timeout (zero means no ceiling) and derived
// from ctx, so cancelling ctx aborts an in-flight run.
func NewScheduler(ctx context.Context, timeout time.Duration, run func(ctx context.Context, reason string)) *Scheduler {
	return &Scheduler{
		run:     run,
		timeout: timeout,
		ctx:     ctx,
		state:   Idle,
	}
}

// Trigger requests a run. Idle starts one immediately; Running queues one;
// Queued coalesces into the already-queued run.
func (s *Scheduler) Trigger(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle:
		s.state = Running
		s.wg.Add(1)
		go s.execute(reason)

	case Running:
		s.state = Queued
		s.pending = reason

	case Queued:
		// already queued - coalesce
		s.pending = reason
	}
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Wait blocks until any in-progress and queued runs have completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) execute(reason string) {
	defer s.wg.Done()

	for {
		ctx := s.ctx
		cancel := context.CancelFunc(func() {})
		if s.timeout > 0 {
			ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		}

		s.run(ctx, reason)
		cancel()

		s.mu.Lock()
		if s.state == Queued {
			// a trigger arrived mid-run: go straight back to Running
			s.state = Running
			reason = s.pending
			s.mu.Unlock()
			continue
		}

		s.state = Idle
		s.mu.Unlock()

		return
	}
}
