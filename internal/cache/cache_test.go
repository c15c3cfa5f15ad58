package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// fakeFetcher serves records from a map and counts fetches per uuid.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]record.Record
	fail    map[string]bool
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: make(map[string]record.Record),
		fail:    make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) put(uuid, name string, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[uuid] = record.Record{UUID: uuid, ModifiedAt: modified, Payload: record.Payload{Name: name}}
}

func (f *fakeFetcher) Fetch(_ context.Context, uuid string) (record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[uuid]++
	if f.fail[uuid] {
		return record.Record{}, fmt.Errorf("record %s unavailable", uuid)
	}
	r, ok := f.records[uuid]
	if !ok {
		return record.Record{}, errors.NewFetch(uuid, fmt.Errorf("no such record"))
	}
	return r, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFetcher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

var (
	t0 = time.UnixMilli(1_700_000_000_000)
	t1 = t0.Add(time.Hour)
)

func TestResolve_MissFetchesAndStores(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	f := newFakeFetcher()
	f.put("A", "Alpha", t0)
	f.put("B", "Beta", t0)

	c, err := NewContentCache(database, f)
	require.NoError(t, err)

	out, err := c.Resolve(ctx, []string{"A", "B"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Alpha", out[0].Name)
	assert.Equal(t, "Beta", out[1].Name)
	assert.Equal(t, 2, f.total())

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResolve_HintContract(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	f := newFakeFetcher()
	f.put("U", "v1", t0)

	c, err := NewContentCache(database, f)
	require.NoError(t, err)
	_, err = c.Resolve(ctx, []string{"U"}, nil)
	require.NoError(t, err)
	f.reset()

	// Matching hint: zero fetches
	out, err := c.Resolve(ctx, []string{"U"}, []time.Time{t0})
	require.NoError(t, err)
	assert.Equal(t, 0, f.total())
	assert.Equal(t, "v1", out[0].Name)

	// Unknown hint: trust the cache even though the backend changed
	f.put("U", "v2", t1)
	out, err = c.Resolve(ctx, []string{"U"}, []time.Time{Unknown})
	require.NoError(t, err)
	assert.Equal(t, 0, f.total())
	assert.Equal(t, "v1", out[0].Name)

	// Different hint: exactly one fetch, stored timestamp updated
	out, err = c.Resolve(ctx, []string{"U"}, []time.Time{t1})
	require.NoError(t, err)
	assert.Equal(t, 1, f.total())
	assert.Equal(t, "v2", out[0].Name)

	entries, err := db.GetContentEntries(ctx, database, []string{"U"})
	require.NoError(t, err)
	assert.True(t, record.SameInstant(entries["U"].Record.ModifiedAt, t1))
}

func TestResolve_HintSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	f := newFakeFetcher()
	f.put("U", "v1", t0)

	first, err := NewContentCache(database, f)
	require.NoError(t, err)
	_, err = first.Resolve(ctx, []string{"U"}, nil)
	require.NoError(t, err)
	f.reset()

	// A fresh cache has an empty LRU and must read SQLite.
	second, err := NewContentCache(database, f)
	require.NoError(t, err)
	out, err := second.Resolve(ctx, []string{"U"}, []time.Time{t0})
	require.NoError(t, err)
	assert.Equal(t, 0, f.total())
	assert.Equal(t, "v1", out[0].Name)
}

func TestResolve_FetchFailureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	f := newFakeFetcher()
	f.put("A", "a1", t0)
	f.put("B", "b1", t0)

	c, err := NewContentCache(database, f, WithConcurrency(4))
	require.NoError(t, err)
	_, err = c.Resolve(ctx, []string{"A", "B"}, nil)
	require.NoError(t, err)

	// A changed, B is gone from the backend
	f.put("A", "a2", t1)
	f.fail["B"] = true

	_, err = c.Resolve(ctx, []string{"A", "B"}, []time.Time{t1, t1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch), "got %v", err)

	// A must not have been replaced by the failed call
	out, err := c.Resolve(ctx, []string{"A"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a1", out[0].Name)
	assert.True(t, record.SameInstant(out[0].ModifiedAt, t0))
}

func TestResolve_UnknownUUIDFails(t *testing.T) {
	c, err := NewContentCache(openTestDB(t), newFakeFetcher())
	require.NoError(t, err)

	_, err = c.Resolve(context.Background(), []string{"nope"}, nil)
	assert.True(t, errors.Is(err, errors.ErrFetch))
}

func TestResolve_DuplicatesFetchedOnce(t *testing.T) {
	f := newFakeFetcher()
	f.put("A", "Alpha", t0)
	c, err := NewContentCache(openTestDB(t), f)
	require.NoError(t, err)

	out, err := c.Resolve(context.Background(), []string{"A", "A"}, []time.Time{t0, t1})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, f.calls["A"])
}

func TestResolve_HintLengthMismatch(t *testing.T) {
	c, err := NewContentCache(openTestDB(t), newFakeFetcher())
	require.NoError(t, err)

	_, err = c.Resolve(context.Background(), []string{"A", "B"}, []time.Time{t0})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestResolve_Empty(t *testing.T) {
	c, err := NewContentCache(openTestDB(t), newFakeFetcher())
	require.NoError(t, err)

	out, err := c.Resolve(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResolve_ParallelFetch(t *testing.T) {
	f := newFakeFetcher()
	var uuids []string
	for i := range 20 {
		id := fmt.Sprintf("U%02d", i)
		f.put(id, "doc "+id, t0)
		uuids = append(uuids, id)
	}
	c, err := NewContentCache(openTestDB(t), f, WithConcurrency(8))
	require.NoError(t, err)

	out, err := c.Resolve(context.Background(), uuids, nil)
	require.NoError(t, err)
	require.Len(t, out, 20)
	for i, r := range out {
		assert.Equal(t, uuids[i], r.UUID, "output must stay index-aligned")
	}
	assert.Equal(t, 20, f.total())
}

func TestResolve_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	f := newFakeFetcher()
	for _, id := range []string{"A", "B", "C"} {
		f.put(id, id, t0)
	}

	clock := t0
	c, err := NewContentCache(database, f, WithLimit(2), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	require.NoError(t, err)

	_, err = c.Resolve(ctx, []string{"A"}, nil)
	require.NoError(t, err)
	_, err = c.Resolve(ctx, []string{"B"}, nil)
	require.NoError(t, err)
	_, err = c.Resolve(ctx, []string{"A"}, nil) // touch A
	require.NoError(t, err)
	_, err = c.Resolve(ctx, []string{"C"}, nil) // evicts B
	require.NoError(t, err)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := db.GetContentEntries(ctx, database, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Contains(t, entries, "A")
	assert.Contains(t, entries, "C")
	assert.NotContains(t, entries, "B")

	// B must be refetched now
	f.reset()
	_, err = c.Resolve(ctx, []string{"B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["B"])
}

func TestContentCache_Clear(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.put("A", "Alpha", t0)
	c, err := NewContentCache(openTestDB(t), f)
	require.NoError(t, err)

	_, err = c.Resolve(ctx, []string{"A"}, nil)
	require.NoError(t, err)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.reset()
	_, err = c.Resolve(ctx, []string{"A"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.total(), "cleared entries are refetched")
}

func TestQueryCache_LookupMiss(t *testing.T) {
	q := NewQueryCache(openTestDB(t), nil)

	e, found, err := q.Lookup(context.Background(), "report")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, e)
}

func TestQueryCache_StoreStampsNow(t *testing.T) {
	ctx := context.Background()
	now := t0
	q := NewQueryCache(openTestDB(t), func() time.Time { return now })

	stored, err := q.Store(ctx, "report", []string{"A", "B"}, []float64{0.9, 0.5}, ModeFull)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.SnapshotID)

	e, found, err := q.Lookup(ctx, "report")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"A", "B"}, e.UUIDs)
	assert.Equal(t, []float64{0.9, 0.5}, e.Scores)
	assert.Equal(t, ModeFull, e.Mode)
	assert.Equal(t, stored.SnapshotID, e.SnapshotID)
	assert.True(t, record.SameInstant(e.SnapshotAt, t0))

	// Overwrite re-stamps
	now = t1
	_, err = q.Store(ctx, "report", []string{"C"}, []float64{0.1}, ModeDelta)
	require.NoError(t, err)

	e, _, err = q.Lookup(ctx, "report")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, e.UUIDs)
	assert.Equal(t, ModeDelta, e.Mode)
	assert.True(t, record.SameInstant(e.SnapshotAt, t1))
}

func TestQueryCache_StoreRejectsMismatch(t *testing.T) {
	q := NewQueryCache(openTestDB(t), nil)

	_, err := q.Store(context.Background(), "q", []string{"A"}, nil, ModeFull)
	assert.True(t, errors.Is(err, errors.ErrCacheCorruption))
}

func TestQueryCache_LookupCorrupt(t *testing.T) {
	database := openTestDB(t)
	_, err := database.Exec(`INSERT INTO query_cache VALUES ('q', 'S', '["A"]', '[]', 'full', 0)`)
	require.NoError(t, err)

	_, _, err = NewQueryCache(database, nil).Lookup(context.Background(), "q")
	assert.True(t, errors.Is(err, errors.ErrCacheCorruption))
}

func TestQueryCache_DeleteClearStats(t *testing.T) {
	ctx := context.Background()
	q := NewQueryCache(openTestDB(t), func() time.Time { return t0 })

	for _, text := range []string{"a", "b"} {
		_, err := q.Store(ctx, text, []string{}, []float64{}, ModeFull)
		require.NoError(t, err)
	}

	require.NoError(t, q.Delete(ctx, "a"))
	assert.True(t, errors.Is(q.Delete(ctx, "a"), errors.ErrNotFound))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	n, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
