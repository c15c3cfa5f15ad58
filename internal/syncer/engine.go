// Package syncer keeps the cached result set of a query text current.
//
// A cached snapshot is revalidated with one batched pair of delta queries
// against the backend. When the snapshot can no longer be trusted the engine
// falls back to a full search and replaces it.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/dtbar/internal/backend"
	"github.com/hpungsan/dtbar/internal/cache"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// Engine synchronizes query result sets through the query and content caches.
type Engine struct {
	searcher backend.Searcher
	content  *cache.ContentCache
	queries  *cache.QueryCache
	field    string
	limit    int
	strict   bool
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithField sets the field scope of the full search and of both delta
// queries. Defaults to backend.FieldPart; any other scope replaces partial
// mode for all three requests so their counts stay comparable.
func WithField(field string) Option {
	return func(e *Engine) { e.field = field }
}

// WithLimit caps every search; 0 means no cap. A snapshot that reaches the
// cap cannot be validated by count and is rebuilt on every synchronization.
func WithLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithStrictStaleness makes the engine compare the until-query uuid set with
// the snapshot instead of only the count.
func WithStrictStaleness(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine over the given backend and caches.
func NewEngine(searcher backend.Searcher, content *cache.ContentCache, queries *cache.QueryCache, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		content:  content,
		queries:  queries,
		field:    backend.FieldPart,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one synchronization.
type Result struct {
	// Records are de-duplicated and carry the scores of this synchronization.
	// Order is backend order after a full sync and merged order after a delta.
	Records []record.Record

	// Mode is how the stored snapshot was produced.
	Mode cache.Mode

	// Stale is true when a cached snapshot existed but failed validation.
	Stale bool

	SnapshotID string
}

// Synchronize returns the current result set for query, updating the caches.
// Errors are returned as-is; no partial result is ever produced.
func (e *Engine) Synchronize(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}

	cached, found, err := e.queries.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	if !found {
		return e.fullSync(ctx, query, false)
	}

	until, after, err := e.deltaSearch(ctx, query, cached.SnapshotAt)
	if err != nil {
		return nil, err
	}

	if reason := e.staleReason(cached, until); reason != "" {
		e.log.Info("snapshot stale",
			slog.String("query", query),
			slog.String("snapshot_id", cached.SnapshotID),
			slog.String("reason", reason))
		return e.fullSync(ctx, query, true)
	}

	return e.merge(ctx, query, cached, after)
}

// deltaSearch runs the until and after queries for a snapshot taken at t in
// one backend invocation.
func (e *Engine) deltaSearch(ctx context.Context, query string, t time.Time) (until, after []record.Record, err error) {
	results, err := e.searcher.BatchSearch(ctx, []backend.Request{
		e.request(backend.UntilQuery(query, t)),
		e.request(backend.AfterQuery(query, t)),
	})
	if err != nil {
		return nil, nil, err
	}
	if len(results) != 2 {
		return nil, nil, errors.NewBackend("delta search",
			fmt.Errorf("expected 2 result lists, got %d", len(results)))
	}
	return results[0], results[1], nil
}

// staleReason returns why the snapshot cannot be extended, or "" if it can.
func (e *Engine) staleReason(cached *cache.Entry, until []record.Record) string {
	if e.limit > 0 && (len(until) >= e.limit || len(cached.UUIDs) >= e.limit) {
		return fmt.Sprintf("result set at cap %d", e.limit)
	}
	if len(until) != len(cached.UUIDs) {
		return fmt.Sprintf("until count %d, snapshot count %d", len(until), len(cached.UUIDs))
	}
	if !e.strict {
		return ""
	}
	want := make(map[string]struct{}, len(cached.UUIDs))
	for _, uuid := range cached.UUIDs {
		want[uuid] = struct{}{}
	}
	for _, r := range until {
		if _, ok := want[r.UUID]; !ok {
			return fmt.Sprintf("uuid %s not in snapshot", r.UUID)
		}
		delete(want, r.UUID)
	}
	if len(want) > 0 {
		return fmt.Sprintf("%d snapshot uuids missing", len(want))
	}
	return ""
}

func (e *Engine) fullSync(ctx context.Context, query string, stale bool) (*Result, error) {
	hits, err := e.searcher.Search(ctx, e.request(query))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(hits))
	uuids := make([]string, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	hints := make([]time.Time, 0, len(hits))
	for _, h := range hits {
		if h.ModifiedAt.IsZero() {
			return nil, errors.NewBackend("search",
				fmt.Errorf("malformed response: record %s without modification date", h.UUID))
		}
		if _, dup := seen[h.UUID]; dup {
			continue
		}
		seen[h.UUID] = struct{}{}
		uuids = append(uuids, h.UUID)
		scores = append(scores, h.Score)
		hints = append(hints, h.ModifiedAt)
	}

	entry, err := e.queries.Store(ctx, query, uuids, scores, cache.ModeFull)
	if err != nil {
		return nil, err
	}

	records, err := e.resolve(ctx, uuids, scores, hints)
	if err != nil {
		return nil, err
	}

	e.log.Info("full sync",
		slog.String("query", query),
		slog.String("snapshot_id", entry.SnapshotID),
		slog.Int("hits", len(hits)),
		slog.Int("records", len(records)),
		slog.Bool("stale", stale))

	return &Result{Records: records, Mode: cache.ModeFull, Stale: stale, SnapshotID: entry.SnapshotID}, nil
}

// merge extends a validated snapshot with the after-query hits. Present uuids
// get the new score and a refresh hint; new uuids are appended.
func (e *Engine) merge(ctx context.Context, query string, cached *cache.Entry, after []record.Record) (*Result, error) {
	n := len(cached.UUIDs)
	uuids := make([]string, n, n+len(after))
	scores := make([]float64, n, n+len(after))
	hints := make([]time.Time, n, n+len(after))
	copy(uuids, cached.UUIDs)
	copy(scores, cached.Scores)

	index := make(map[string]int, n+len(after))
	for i, uuid := range uuids {
		if _, ok := index[uuid]; !ok {
			index[uuid] = i
		}
	}

	var updated, added int
	for _, h := range after {
		if h.ModifiedAt.IsZero() {
			return nil, errors.NewBackend("delta search",
				fmt.Errorf("malformed response: record %s without modification date", h.UUID))
		}
		if i, ok := index[h.UUID]; ok {
			scores[i] = h.Score
			hints[i] = h.ModifiedAt
			updated++
			continue
		}
		index[h.UUID] = len(uuids)
		uuids = append(uuids, h.UUID)
		scores = append(scores, h.Score)
		hints = append(hints, h.ModifiedAt)
		added++
	}

	if e.limit > 0 && len(uuids) > e.limit {
		e.log.Info("snapshot stale",
			slog.String("query", query),
			slog.String("snapshot_id", cached.SnapshotID),
			slog.String("reason", fmt.Sprintf("merged set exceeds cap %d", e.limit)))
		return e.fullSync(ctx, query, true)
	}

	entry, err := e.queries.Store(ctx, query, uuids, scores, cache.ModeDelta)
	if err != nil {
		return nil, err
	}

	records, err := e.resolve(ctx, uuids, scores, hints)
	if err != nil {
		return nil, err
	}

	e.log.Info("delta sync",
		slog.String("query", query),
		slog.String("snapshot_id", entry.SnapshotID),
		slog.String("previous_snapshot_id", cached.SnapshotID),
		slog.Int("updated", updated),
		slog.Int("added", added),
		slog.Int("records", len(records)))

	return &Result{Records: records, Mode: cache.ModeDelta, SnapshotID: entry.SnapshotID}, nil
}

// resolve loads payloads through the content cache and attaches scores by
// position.
func (e *Engine) resolve(ctx context.Context, uuids []string, scores []float64, hints []time.Time) ([]record.Record, error) {
	records, err := e.content.Resolve(ctx, uuids, hints)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Score = scores[i]
	}
	return records, nil
}

func (e *Engine) request(query string) backend.Request {
	return backend.Request{Query: query, Field: e.field, Limit: e.limit}
}
