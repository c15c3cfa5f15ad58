// Package cache holds the two cache levels used by search synchronization:
// the per-record content cache and the per-query result set cache.
// Both persist in SQLite and are constructed once per process, then passed
// to the synchronization engine.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/dtbar/internal/backend"
	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// Unknown is the hint that trusts a cached entry unconditionally.
var Unknown = time.Time{}

const defaultHotSize = 1024

// ContentCache resolves uuids to full records, fetching only entries that are
// missing or whose modification date differs from the caller's hint.
type ContentCache struct {
	db          *sql.DB
	fetcher     backend.Fetcher
	hot         *lru.Cache[string, record.Record]
	limit       int
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

// ContentOption configures a ContentCache.
type ContentOption func(*ContentCache)

// WithLimit bounds the persisted entry count; 0 disables eviction.
func WithLimit(n int) ContentOption {
	return func(c *ContentCache) { c.limit = n }
}

// WithConcurrency sets how many fetches may run at once within one Resolve.
func WithConcurrency(n int) ContentOption {
	return func(c *ContentCache) { c.concurrency = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ContentOption {
	return func(c *ContentCache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ContentOption {
	return func(c *ContentCache) { c.log = l }
}

// NewContentCache creates a content cache over database using fetcher for
// misses and refreshes.
func NewContentCache(database *sql.DB, fetcher backend.Fetcher, opts ...ContentOption) (*ContentCache, error) {
	c := &ContentCache{
		db:          database,
		fetcher:     fetcher,
		concurrency: 1,
		now:         time.Now,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}

	size := defaultHotSize
	if c.limit > 0 && c.limit < size {
		size = c.limit
	}
	hot, err := lru.New[string, record.Record](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.hot = hot

	return c, nil
}

// Resolve returns one record per uuid, index-aligned with uuids.
//
// hints must be nil (all Unknown) or the same length as uuids. A zero hint
// trusts any cached entry; a concrete hint forces a fetch unless the cached
// modification date matches it. Any fetch failure fails the whole call with
// FETCH_ERROR and leaves every cached entry untouched.
func (c *ContentCache) Resolve(ctx context.Context, uuids []string, hints []time.Time) ([]record.Record, error) {
	if hints != nil && len(hints) != len(uuids) {
		return nil, errors.NewInvalidRequest(
			fmt.Sprintf("hints length %d does not match uuids length %d", len(hints), len(uuids)))
	}
	if len(uuids) == 0 {
		return []record.Record{}, nil
	}

	known, err := c.lookup(ctx, uuids)
	if err != nil {
		return nil, err
	}

	// Decide which uuids need a fetch. A uuid listed twice is fetched once.
	stale := make(map[string]bool)
	var order []string
	for i, uuid := range uuids {
		hint := Unknown
		if hints != nil {
			hint = hints[i]
		}
		cached, ok := known[uuid]
		if ok && (hint.IsZero() || record.SameInstant(hint, cached.ModifiedAt)) {
			continue
		}
		if !stale[uuid] {
			stale[uuid] = true
			order = append(order, uuid)
		}
	}

	fetched, err := c.fetchAll(ctx, order)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if len(fetched) > 0 {
		if err := db.UpsertContentEntries(ctx, c.db, fetched, now); err != nil {
			return nil, err
		}
		for _, r := range fetched {
			known[r.UUID] = r
			c.hot.Add(r.UUID, r)
		}
	}

	var served []string
	for uuid := range known {
		if !stale[uuid] {
			served = append(served, uuid)
		}
	}
	if err := db.TouchContentEntries(ctx, c.db, served, now); err != nil {
		return nil, err
	}

	if len(fetched) > 0 {
		if err := c.evict(ctx); err != nil {
			return nil, err
		}
	}

	c.log.Debug("content cache resolve",
		slog.Int("requested", len(uuids)),
		slog.Int("fetched", len(fetched)),
		slog.Int("served", len(uuids)-len(fetched)))

	out := make([]record.Record, len(uuids))
	for i, uuid := range uuids {
		r, ok := known[uuid]
		if !ok {
			return nil, errors.NewInternal(fmt.Errorf("uuid %s unresolved", uuid))
		}
		out[i] = r
	}
	return out, nil
}

// lookup returns known entries for uuids from the hot LRU, then SQLite.
func (c *ContentCache) lookup(ctx context.Context, uuids []string) (map[string]record.Record, error) {
	known := make(map[string]record.Record, len(uuids))
	var cold []string
	for _, uuid := range uuids {
		if _, done := known[uuid]; done {
			continue
		}
		if r, ok := c.hot.Get(uuid); ok {
			known[uuid] = r
			continue
		}
		cold = append(cold, uuid)
	}
	if len(cold) == 0 {
		return known, nil
	}

	entries, err := db.GetContentEntries(ctx, c.db, cold)
	if err != nil {
		return nil, err
	}
	for uuid, e := range entries {
		known[uuid] = e.Record
		c.hot.Add(uuid, e.Record)
	}
	return known, nil
}

// fetchAll fetches every uuid, at most c.concurrency at a time. Nothing is
// written until all fetches have succeeded.
func (c *ContentCache) fetchAll(ctx context.Context, uuids []string) ([]record.Record, error) {
	if len(uuids) == 0 {
		return nil, nil
	}

	results := make([]record.Record, len(uuids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, uuid := range uuids {
		g.Go(func() error {
			r, err := c.fetcher.Fetch(gctx, uuid)
			if err != nil {
				if errors.Is(err, errors.ErrFetch) {
					return err
				}
				return errors.NewFetch(uuid, err)
			}
			r.UUID = uuid
			r.Score = 0
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *ContentCache) evict(ctx context.Context) error {
	victims, err := db.EvictContentEntries(ctx, c.db, c.limit)
	if err != nil {
		return err
	}
	for _, uuid := range victims {
		c.hot.Remove(uuid)
	}
	if len(victims) > 0 {
		c.log.Debug("content cache eviction", slog.Int("evicted", len(victims)), slog.Int("limit", c.limit))
	}
	return nil
}

// Count returns the number of persisted entries.
func (c *ContentCache) Count(ctx context.Context) (int, error) {
	return db.CountContentEntries(ctx, c.db)
}

// Clear drops every entry and returns the count removed.
func (c *ContentCache) Clear(ctx context.Context) (int, error) {
	n, err := db.ClearContentEntries(ctx, c.db)
	if err != nil {
		return 0, err
	}
	c.hot.Purge()
	return n, nil
}
