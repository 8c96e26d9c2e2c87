// Package cache implements the viewer-side read cache over the backing
// store. It bounds request volume to the cache TTL rather than the viewer's
// render frequency, and serves the last good snapshot through transient
// backend outages.
package cache

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

const (
	DefaultTTL      = 5 * time.Minute
	defaultPageSize = 500
)

// Fetcher is the read-only query interface the cache refreshes from,
// satisfied by *store.Client.
type Fetcher interface {
	FetchPage(ctx context.Context, offset, limit int) ([]projects.ProjectRecord, bool, error)
}

// Entry is one committed snapshot. Entries are immutable once committed and
// replaced atomically - a fetched-at timestamp is never observable alongside
// records from a different fetch.
type Entry struct {
	Records   []projects.ProjectRecord
	FetchedAt time.Time
}

// Cache holds at most one Entry.
type Cache struct {
	fetcher  Fetcher
	ttl      time.Duration
	pageSize int

	mu    stdsync.Mutex
	entry *Entry

	group singleflight.Group

	// test seam
	now func() time.Time
}

func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		pageSize: defaultPageSize,
		now:      time.Now,
	}
}

// GetProjects returns the project records ordered by serial ascending.
//
// A fresh cached snapshot is returned without a network call. On a miss (or
// forceRefresh) the cache fetches all pages and atomically commits the new
// snapshot; concurrent callers share a single in-flight refresh. If the
// refresh fails and a previous snapshot exists, that snapshot is returned
// together with the error so the caller can render data and surface the
// degradation separately. Only with no prior snapshot does a failure return
// nothing.
func (c *Cache) GetProjects(ctx context.Context, forceRefresh bool) ([]projects.ProjectRecord, error) {
	c.mu.Lock()
	entry := c.entry
	c.mu.Unlock()

	if entry != nil && !forceRefresh && c.now().Sub(entry.FetchedAt) < c.ttl {
		return entry.Records, nil
	}

	refreshed, err := c.refresh(ctx)
	if err != nil {
		if entry != nil {
			return entry.Records, err
		}

		return nil, err
	}

	return refreshed.Records, nil
}

// Snapshot returns the current entry without triggering a refresh, nil if
// nothing has been fetched yet.
func (c *Cache) Snapshot() *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entry
}

// Stale reports whether the current entry is older than the TTL (or absent).
func (c *Cache) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entry == nil || c.now().Sub(c.entry.FetchedAt) >= c.ttl
}

// refresh coalesces concurrent refreshes into one fetch. The fetch itself
// runs on a context detached from the caller so that a viewer being torn
// down abandons its wait without aborting the shared flight or corrupting
// the committed entry.
func (c *Cache) refresh(ctx context.Context) (*Entry, error) {
	results := c.group.DoChan("refresh", func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}

		return result.Val.(*Entry), nil
	}
}

func (c *Cache) fetch(ctx context.Context) (*Entry, error) {
	records := []projects.ProjectRecord{}
	offset := 0

	for {
		page, hasMore, err := c.fetcher.FetchPage(ctx, offset, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("unable to refresh project snapshot (%w)", err)
		}

		records = append(records, page...)
		if !hasMore {
			break
		}

		offset += c.pageSize
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Serial < records[j].Serial })

	entry := Entry{
		Records:   records,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	c.entry = &entry
	c.mu.Unlock()

	return &entry, nil
}
