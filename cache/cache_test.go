package cache

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

// fakeFetcher serves fixed pages and counts fetches, with optional fault
// injection.
type fakeFetcher struct {
	mu      stdsync.Mutex
	records []projects.ProjectRecord
	fetches int
	fail    bool
	block   chan struct{}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, offset, limit int) ([]projects.ProjectRecord, bool, error) {
	f.mu.Lock()
	if offset == 0 {
		f.fetches++
	}
	fail := f.fail
	block := f.block
	records := f.records
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if fail {
		return nil, false, fmt.Errorf("store unreachable")
	}

	if offset >= len(records) {
		return nil, false, nil
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}

	return records[offset:end], end-offset == limit, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetches
}

func TestGetProjectsServesCachedSnapshotWithinTTL(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{
			{Serial: 1, Name: "Harbour Bridge Repaint"},
			{Serial: 2, Name: "Tunnel Ventilation"},
		},
	}

	c := NewCache(f, time.Minute)

	first, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.count(), "a fresh snapshot must be served without refetching")
	assert.Same(t, &first[0], &second[0], "repeated reads within the TTL share the same snapshot")
}

func TestGetProjectsRefreshesExpiredSnapshot(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{{Serial: 1, Name: "Harbour Bridge Repaint"}},
	}

	c := NewCache(f, time.Minute)

	clock := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)

	_, err = c.GetProjects(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, f.count())
}

func TestGetProjectsForceRefreshBypassesTTL(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{{Serial: 1, Name: "Harbour Bridge Repaint"}},
	}

	c := NewCache(f, time.Minute)

	_, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)

	_, err = c.GetProjects(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, f.count())
}

func TestGetProjectsOrdersBySerial(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{
			{Serial: 3, Name: "Ferry Terminal"},
			{Serial: 1, Name: "Harbour Bridge Repaint"},
			{Serial: 2, Name: "Tunnel Ventilation"},
		},
	}

	c := NewCache(f, time.Minute)

	records, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, serial := range []int64{1, 2, 3} {
		assert.Equal(t, serial, records[i].Serial)
	}
}

func TestGetProjectsServesStaleSnapshotThroughOutage(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{{Serial: 1, Name: "Harbour Bridge Repaint"}},
	}

	c := NewCache(f, time.Minute)

	clock := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_, err := c.GetProjects(context.Background(), false)
	require.NoError(t, err)

	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()

	clock = clock.Add(2 * time.Minute)

	records, err := c.GetProjects(context.Background(), false)
	require.Error(t, err, "degradation must be surfaced alongside the stale data")
	require.Len(t, records, 1)
	assert.Equal(t, "Harbour Bridge Repaint", records[0].Name)

	assert.True(t, c.Stale())
}

func TestGetProjectsFailsWithoutAnySnapshot(t *testing.T) {
	f := &fakeFetcher{fail: true}

	c := NewCache(f, time.Minute)

	records, err := c.GetProjects(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Nil(t, c.Snapshot())
}

func TestGetProjectsCoalescesConcurrentRefreshes(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{{Serial: 1, Name: "Harbour Bridge Repaint"}},
		block:   make(chan struct{}),
	}

	c := NewCache(f, time.Minute)

	var wg stdsync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			records, err := c.GetProjects(context.Background(), false)
			assert.NoError(t, err)
			assert.Len(t, records, 1)
		}()
	}

	// let the callers pile up on the single in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(f.block)
	wg.Wait()

	assert.Equal(t, 1, f.count(), "concurrent misses must share one refresh")
}

func TestGetProjectsAbandonsWaitOnCancelledContext(t *testing.T) {
	f := &fakeFetcher{
		records: []projects.ProjectRecord{{Serial: 1, Name: "Harbour Bridge Repaint"}},
		block:   make(chan struct{}),
	}

	c := NewCache(f, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetProjects(ctx, false)
	require.ErrorIs(t, err, context.Canceled)

	close(f.block)
}

func TestStaleWithDefaultTTL(t *testing.T) {
	c := NewCache(&fakeFetcher{}, 0)

	assert.Equal(t, DefaultTTL, c.ttl)
	assert.True(t, c.Stale(), "an empty cache is stale")
}
