package cache

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/errors"
)

// Mode records how a query snapshot was produced.
type Mode string

const (
	ModeFull  Mode = "full"
	ModeDelta Mode = "delta"
)

// Entry is the synchronized result set of one query text.
// UUIDs and Scores are index-aligned.
type Entry struct {
	Query      string
	SnapshotID string
	UUIDs      []string
	Scores     []float64
	Mode       Mode
	SnapshotAt time.Time
}

// QueryCache stores one entry per exact (case-sensitive) query text.
type QueryCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueryCache creates a query cache over database. A nil now uses time.Now.
func NewQueryCache(database *sql.DB, now func() time.Time) *QueryCache {
	if now == nil {
		now = time.Now
	}
	return &QueryCache{db: database, now: now}
}

// Lookup returns the entry for query. found is false when none exists.
// A stored entry with mismatched uuid/score lengths yields CACHE_CORRUPTION.
func (q *QueryCache) Lookup(ctx context.Context, query string) (*Entry, bool, error) {
	e, err := db.GetQueryEntry(ctx, q.db, query)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Entry{
		Query:      e.QueryText,
		SnapshotID: e.SnapshotID,
		UUIDs:      e.UUIDs,
		Scores:     e.Scores,
		Mode:       Mode(e.Mode),
		SnapshotAt: e.SnapshotAt,
	}, true, nil
}

// Store replaces the entry for query, stamping the snapshot time with now.
func (q *QueryCache) Store(ctx context.Context, query string, uuids []string, scores []float64, mode Mode) (*Entry, error) {
	now := q.now()
	id, err := newSnapshotID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	e := &db.QueryEntry{
		QueryText:  query,
		SnapshotID: id,
		UUIDs:      uuids,
		Scores:     scores,
		Mode:       string(mode),
		SnapshotAt: now,
	}
	if err := db.PutQueryEntry(ctx, q.db, e); err != nil {
		return nil, err
	}

	return &Entry{
		Query:      query,
		SnapshotID: id,
		UUIDs:      uuids,
		Scores:     scores,
		Mode:       mode,
		SnapshotAt: now,
	}, nil
}

// Delete removes the entry for query. Returns NOT_FOUND if there was none.
func (q *QueryCache) Delete(ctx context.Context, query string) error {
	return db.DeleteQueryEntry(ctx, q.db, query)
}

// Clear removes every entry and returns the count removed.
func (q *QueryCache) Clear(ctx context.Context) (int, error) {
	return db.ClearQueryEntries(ctx, q.db)
}

// Stats summarizes the cache.
func (q *QueryCache) Stats(ctx context.Context) (*db.QueryCacheStats, error) {
	return db.GetQueryCacheStats(ctx, q.db)
}

// newSnapshotID generates a ULID for a snapshot taken at t.
func newSnapshotID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
