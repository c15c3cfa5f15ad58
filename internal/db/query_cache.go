package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/dtbar/internal/errors"
)

// QueryEntry is the persisted result set of one query text.
type QueryEntry struct {
	QueryText  string
	SnapshotID string
	UUIDs      []string
	Scores     []float64
	Mode       string
	SnapshotAt time.Time
}

// QueryCacheStats summarizes the query cache table.
type QueryCacheStats struct {
	Entries        int        `json:"entries"`
	OldestSnapshot *time.Time `json:"oldest_snapshot,omitempty"`
	NewestSnapshot *time.Time `json:"newest_snapshot,omitempty"`
}

// GetQueryEntry returns the entry for the exact query text.
// Returns NOT_FOUND if no entry exists and CACHE_CORRUPTION if the stored
// uuid and score lists cannot be decoded or differ in length.
func GetQueryEntry(ctx context.Context, db *sql.DB, queryText string) (*QueryEntry, error) {
	var (
		e          QueryEntry
		uuidsJSON  string
		scoresJSON string
		snapshotMs int64
	)

	err := db.QueryRowContext(ctx, `
		SELECT query_text, snapshot_id, uuids_json, scores_json, mode, snapshot_at_ms
		FROM query_cache
		WHERE query_text = ?
	`, queryText).Scan(&e.QueryText, &e.SnapshotID, &uuidsJSON, &scoresJSON, &e.Mode, &snapshotMs)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(queryText)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := json.Unmarshal([]byte(uuidsJSON), &e.UUIDs); err != nil {
		return nil, errors.NewCacheCorruption(queryText, "undecodable uuids: "+err.Error())
	}
	if err := json.Unmarshal([]byte(scoresJSON), &e.Scores); err != nil {
		return nil, errors.NewCacheCorruption(queryText, "undecodable scores: "+err.Error())
	}
	if len(e.UUIDs) != len(e.Scores) {
		return nil, errors.NewCacheCorruption(queryText,
			fmt.Sprintf("uuids/scores length mismatch (%d != %d)", len(e.UUIDs), len(e.Scores)))
	}
	e.SnapshotAt = time.UnixMilli(snapshotMs)

	return &e, nil
}

// PutQueryEntry inserts or fully replaces the entry for e.QueryText.
func PutQueryEntry(ctx context.Context, db *sql.DB, e *QueryEntry) error {
	if len(e.UUIDs) != len(e.Scores) {
		return errors.NewCacheCorruption(e.QueryText,
			fmt.Sprintf("uuids/scores length mismatch (%d != %d)", len(e.UUIDs), len(e.Scores)))
	}

	uuids := e.UUIDs
	if uuids == nil {
		uuids = []string{}
	}
	scores := e.Scores
	if scores == nil {
		scores = []float64{}
	}
	uuidsJSON, err := json.Marshal(uuids)
	if err != nil {
		return errors.NewInternal(err)
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO query_cache (query_text, snapshot_id, uuids_json, scores_json, mode, snapshot_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_text) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			uuids_json = excluded.uuids_json,
			scores_json = excluded.scores_json,
			mode = excluded.mode,
			snapshot_at_ms = excluded.snapshot_at_ms
	`, e.QueryText, e.SnapshotID, string(uuidsJSON), string(scoresJSON), e.Mode, e.SnapshotAt.UnixMilli())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteQueryEntry removes the entry for the exact query text.
// Returns NOT_FOUND if there was none.
func DeleteQueryEntry(ctx context.Context, db *sql.DB, queryText string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM query_cache WHERE query_text = ?`, queryText)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(queryText)
	}
	return nil
}

// ClearQueryEntries deletes every query cache entry and returns the count removed.
func ClearQueryEntries(ctx context.Context, db *sql.DB) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM query_cache`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// GetQueryCacheStats returns entry count and snapshot age bounds.
func GetQueryCacheStats(ctx context.Context, db *sql.DB) (*QueryCacheStats, error) {
	var (
		stats          QueryCacheStats
		oldest, newest sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(snapshot_at_ms), MAX(snapshot_at_ms) FROM query_cache
	`).Scan(&stats.Entries, &oldest, &newest)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64)
		stats.OldestSnapshot = &t
	}
	if newest.Valid {
		t := time.UnixMilli(newest.Int64)
		stats.NewestSnapshot = &t
	}
	return &stats, nil
}
