package ops

import (
	"context"
	"time"

	"github.com/hpungsan/dtbar/internal/db"
)

// CacheStatsOutput contains the result of the CacheStats operation.
type CacheStatsOutput struct {
	ContentEntries int        `json:"content_entries"`
	ContentLimit   int        `json:"content_limit"`
	QueryEntries   int        `json:"query_entries"`
	OldestSnapshot *time.Time `json:"oldest_snapshot,omitempty"`
	NewestSnapshot *time.Time `json:"newest_snapshot,omitempty"`
	PickedRecords  int        `json:"picked_records"`
}

// CacheStats summarizes both caches and the pick table.
func (s *Service) CacheStats(ctx context.Context) (*CacheStatsOutput, error) {
	content, err := s.content.Count(ctx)
	if err != nil {
		return nil, err
	}
	qs, err := s.queries.Stats(ctx)
	if err != nil {
		return nil, err
	}
	picks, err := db.CountPicks(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return &CacheStatsOutput{
		ContentEntries: content,
		ContentLimit:   s.cfg.CacheLimit(),
		QueryEntries:   qs.Entries,
		OldestSnapshot: qs.OldestSnapshot,
		NewestSnapshot: qs.NewestSnapshot,
		PickedRecords:  picks,
	}, nil
}

// CacheClearInput contains parameters for the CacheClear operation.
type CacheClearInput struct {
	Query   *string // only this query text; nil clears every query entry
	Content bool    // also drop cached record payloads
}

// CacheClearOutput contains the result of the CacheClear operation.
type CacheClearOutput struct {
	QueriesRemoved int `json:"queries_removed"`
	ContentRemoved int `json:"content_removed"`
}

// CacheClear drops query snapshots and optionally record payloads, forcing a
// full sync next time. Pick counts are never cleared.
func (s *Service) CacheClear(ctx context.Context, input CacheClearInput) (*CacheClearOutput, error) {
	output := &CacheClearOutput{}

	if input.Query != nil {
		query, err := validateQuery(*input.Query)
		if err != nil {
			return nil, err
		}
		if err := s.queries.Delete(ctx, query); err != nil {
			return nil, err
		}
		output.QueriesRemoved = 1
	} else {
		n, err := s.queries.Clear(ctx)
		if err != nil {
			return nil, err
		}
		output.QueriesRemoved = n
	}

	if input.Content {
		n, err := s.content.Clear(ctx)
		if err != nil {
			return nil, err
		}
		output.ContentRemoved = n
	}

	s.log.Info("cache cleared",
		"queries_removed", output.QueriesRemoved,
		"content_removed", output.ContentRemoved)

	return output, nil
}
