// Package sync implements the reconciliation pipeline between the worksheet
// snapshot and the backing store, and the trigger scheduler that serializes
// runs. Reconciliation is a full-snapshot diff keyed by serial: it is
// idempotent, so a repeated or interrupted run converges on the same store
// state.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
	"github.com/Dev-debug-web-coder/Project-Portal/store"
)

// Store is the slice of the backing store client used by the engine.
type Store interface {
	FetchPage(ctx context.Context, offset, limit int) ([]projects.ProjectRecord, bool, error)
	Upsert(ctx context.Context, records []projects.ProjectRecord) error
	Delete(ctx context.Context, serials []int64) error
	Archive(ctx context.Context, serials []int64) error
}

// RemovalPolicy is the configured treatment of store rows whose serial has
// disappeared from the worksheet. There is no default - the three policies
// carry materially different data-loss risk, so a deployment must choose.
type RemovalPolicy string

const (
	// PolicyDelete hard-deletes the store row.
	PolicyDelete RemovalPolicy = "delete"

	// PolicyArchive soft-deletes the store row by setting archived_at.
	PolicyArchive RemovalPolicy = "archive"

	// PolicyIgnore leaves the store row untouched.
	PolicyIgnore RemovalPolicy = "ignore"
)

func ParseRemovalPolicy(v string) (RemovalPolicy, error) {
	switch RemovalPolicy(v) {
	case PolicyDelete, PolicyArchive, PolicyIgnore:
		return RemovalPolicy(v), nil

	case "":
		return "", fmt.Errorf("removal policy is not configured - expected one of 'delete', 'archive' or 'ignore'")

	default:
		return "", fmt.Errorf("invalid removal policy '%s' - expected one of 'delete', 'archive' or 'ignore'", v)
	}
}

// EngineConfig collects the construction parameters for an Engine.
type EngineConfig struct {
	Store          Store
	Policy         RemovalPolicy
	BatchSize      int           // records per upsert batch (default 50)
	FanOut         int           // concurrent in-flight batches (default 4)
	PageSize       int           // records per snapshot read page (default 500)
	MaxAttempts    int           // attempts per batch before giving up (default 4)
	InitialBackoff time.Duration // first retry delay (default 500ms)
	MaxBackoff     time.Duration // retry delay ceiling (default 30s)
	DryRun         bool          // plan only, no writes
}

// Engine reconciles worksheet snapshots against the backing store.
type Engine struct {
	store          Store
	policy         RemovalPolicy
	batchSize      int
	fanOut         int
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	dryRun         bool
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine requires a backing store client")
	}

	if _, err := ParseRemovalPolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}

	e := Engine{
		store:          cfg.Store,
		policy:         cfg.Policy,
		batchSize:      cfg.BatchSize,
		fanOut:         cfg.FanOut,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		dryRun:         cfg.DryRun,
	}

	if e.batchSize <= 0 {
		e.batchSize = 50
	}

	if e.fanOut <= 0 {
		e.fanOut = 4
	}

	if e.pageSize <= 0 {
		e.pageSize = 500
	}

	if e.maxAttempts <= 0 {
		e.maxAttempts = 4
	}

	if e.initialBackoff <= 0 {
		e.initialBackoff = 500 * time.Millisecond
	}

	if e.maxBackoff <= 0 {
		e.maxBackoff = 30 * time.Second
	}

	return &e, nil
}

type operation struct {
	record projects.ProjectRecord
	insert bool
}

// Reconcile computes the full source snapshot from the raw worksheet rows
// and applies the difference to the backing store. Row-level problems are
// absorbed into the report; a non-nil error means the run as a whole failed
// (credential rejected, snapshot unreadable, run timeout) and the returned
// report covers whatever was applied before the failure.
func (e *Engine) Reconcile(ctx context.Context, rows []map[string]string) (*Report, error) {
	report := NewReport()
	report.DryRun = e.dryRun

	defer func() {
		report.Duration = time.Since(report.Started)
	}()

	// ... parse source rows, later row wins on duplicate serials
	source := map[int64]projects.ProjectRecord{}
	position := map[int64]int{}
	for i, fields := range rows {
		record, err := projects.ParseRow(i+1, fields)
		if err != nil {
			report.Invalid = append(report.Invalid, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}

		if previous, ok := position[record.Serial]; ok {
			report.Conflicts = append(report.Conflicts, Conflict{
				Serial:     record.Serial,
				KeptRow:    i + 1,
				DroppedRow: previous,
			})
		}

		source[record.Serial] = record
		position[record.Serial] = i + 1
	}

	// ... fetch the current store snapshot
	current, err := e.snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("unable to fetch backing store snapshot (%w)", err)
	}

	// ... diff by serial
	inserts := []projects.ProjectRecord{}
	updates := []projects.ProjectRecord{}
	for _, record := range sortedBySerial(source) {
		stored, ok := current[record.Serial]
		switch {
		case !ok:
			inserts = append(inserts, record)

		case !record.Equal(stored) || record.UpdatedAt.After(stored.UpdatedAt):
			updates = append(updates, record)

		default:
			report.Skipped++
		}
	}

	removals := []int64{}
	if e.policy != PolicyIgnore {
		for serial := range current {
			if _, ok := source[serial]; !ok {
				removals = append(removals, serial)
			}
		}

		sort.Slice(removals, func(i, j int) bool { return removals[i] < removals[j] })
	}

	if e.dryRun {
		report.Inserted = len(inserts)
		report.Updated = len(updates)
		report.Removed = len(removals)
		return report, nil
	}

	// ... apply, bounded fan-out, batch completion awaited before returning
	if err := e.apply(ctx, report, inserts, updates, removals); err != nil {
		return report, err
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sync run aborted (%w)", err)
	}

	return report, nil
}

// snapshot pages through the backing store and returns the live records
// keyed by serial.
func (e *Engine) snapshot(ctx context.Context) (map[int64]projects.ProjectRecord, error) {
	current := map[int64]projects.ProjectRecord{}
	offset := 0

	for {
		var page []projects.ProjectRecord
		var hasMore bool

		err := e.retry(ctx, nil, func() error {
			var err error
			page, hasMore, err = e.store.FetchPage(ctx, offset, e.pageSize)
			return err
		})

		if err != nil {
			return nil, err
		}

		for _, record := range page {
			current[record.Serial] = record
		}

		if !hasMore {
			return current, nil
		}

		offset += e.pageSize
	}
}

func (e *Engine) apply(ctx context.Context, report *Report, inserts, updates []projects.ProjectRecord, removals []int64) error {
	var mu stdsync.Mutex

	operations := make([]operation, 0, len(inserts)+len(updates))
	for _, record := range inserts {
		operations = append(operations, operation{record: record, insert: true})
	}
	for _, record := range updates {
		operations = append(operations, operation{record: record})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)

	for _, batch := range chunk(operations, e.batchSize) {
		g.Go(func() error {
			records := make([]projects.ProjectRecord, len(batch))
			for i, op := range batch {
				records[i] = op.record
			}

			err := e.retry(ctx, report, func() error {
				return e.store.Upsert(ctx, records)
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// credential failures abort the whole run
				var auth *store.AuthError
				if errors.As(err, &auth) {
					return err
				}

				for _, op := range batch {
					report.Failed++
					report.Errors = append(report.Errors, RowError{Serial: op.record.Serial, Reason: err.Error()})
				}

				return nil
			}

			for _, op := range batch {
				if op.insert {
					report.Inserted++
				} else {
					report.Updated++
				}
			}

			return nil
		})
	}

	for _, batch := range chunkSerials(removals, e.batchSize) {
		g.Go(func() error {
			err := e.retry(ctx, report, func() error {
				if e.policy == PolicyArchive {
					return e.store.Archive(ctx, batch)
				}

				return e.store.Delete(ctx, batch)
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				var auth *store.AuthError
				if errors.As(err, &auth) {
					return err
				}

				for _, serial := range batch {
					report.Failed++
					report.Errors = append(report.Errors, RowError{Serial: serial, Reason: err.Error()})
				}

				return nil
			}

			report.Removed += len(batch)

			return nil
		})
	}

	return g.Wait()
}

// retry runs op with exponential backoff, bounded by the configured attempt
// count. Credential failures and non-retryable 4xx responses stop the retry
// schedule immediately. Retries after the first attempt are tallied on the
// report.
func (e *Engine) retry(ctx context.Context, report *Report, op func() error) error {
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxInterval = e.maxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++

		if err := op(); err != nil {
			if permanent(err) {
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(e.maxAttempts)))

	if report != nil && attempts > 1 {
		report.addRetries(attempts - 1)
	}

	return err
}

// permanent reports whether err can never succeed on retry - credential
// rejections and client-side 4xx failures. Rate limits and 5xx responses
// are transient.
func permanent(err error) bool {
	var auth *store.AuthError
	if errors.As(err, &auth) {
		return true
	}

	var query *store.QueryError
	if errors.As(err, &query) {
		return !query.Retryable()
	}

	return false
}

func sortedBySerial(records map[int64]projects.ProjectRecord) []projects.ProjectRecord {
	sorted := make([]projects.ProjectRecord, 0, len(records))
	for _, record := range records {
		sorted = append(sorted, record)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Serial < sorted[j].Serial })

	return sorted
}

func chunk(operations []operation, size int) [][]operation {
	batches := [][]operation{}
	for len(operations) > size {
		batches = append(batches, operations[:size])
		operations = operations[size:]
	}

	if len(operations) > 0 {
		batches = append(batches, operations)
	}

	return batches
}

func chunkSerials(serials []int64, size int) [][]int64 {
	batches := [][]int64{}
	for len(serials) > size {
		batches = append(batches, serials[:size])
		serials = serials[size:]
	}

	if len(serials) > 0 {
		batches = append(batches, serials)
	}

	return batches
}

var _ Store = (*store.Client)(nil)
