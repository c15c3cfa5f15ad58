package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// maxINParams keeps IN (...) lists well below SQLite's host parameter limit.
const maxINParams = 500

// ContentEntry is a cached record payload.
type ContentEntry struct {
	Record         record.Record
	CachedAt       int64 // Unix milliseconds
	LastAccessedAt int64 // Unix milliseconds
}

// GetContentEntries returns the cached entries for the given uuids keyed by uuid.
// Missing uuids are simply absent from the map.
func GetContentEntries(ctx context.Context, db *sql.DB, uuids []string) (map[string]*ContentEntry, error) {
	result := make(map[string]*ContentEntry, len(uuids))

	for _, chunk := range chunkStrings(dedupe(uuids), maxINParams) {
		query := `
			SELECT uuid, modified_at_ms, payload_json, cached_at, last_accessed_at
			FROM content_cache
			WHERE uuid IN (` + placeholders(len(chunk)) + `)
		`
		rows, err := db.QueryContext(ctx, query, stringArgs(chunk)...)
		if err != nil {
			return nil, errors.NewInternal(err)
		}

		for rows.Next() {
			var (
				e           ContentEntry
				modifiedMs  int64
				payloadJSON string
			)
			if err := rows.Scan(&e.Record.UUID, &modifiedMs, &payloadJSON, &e.CachedAt, &e.LastAccessedAt); err != nil {
				rows.Close()
				return nil, errors.NewInternal(err)
			}
			if err := json.Unmarshal([]byte(payloadJSON), &e.Record.Payload); err != nil {
				rows.Close()
				return nil, errors.NewCacheCorruption(e.Record.UUID, "undecodable payload: "+err.Error())
			}
			e.Record.ModifiedAt = time.UnixMilli(modifiedMs)
			result[e.Record.UUID] = &e
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		rows.Close()
	}

	return result, nil
}

// UpsertContentEntries writes records in a single transaction: either every
// entry is replaced or none is.
func UpsertContentEntries(ctx context.Context, db *sql.DB, records []record.Record, now time.Time) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_cache (uuid, modified_at_ms, payload_json, cached_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			modified_at_ms = excluded.modified_at_ms,
			payload_json = excluded.payload_json,
			cached_at = excluded.cached_at,
			last_accessed_at = excluded.last_accessed_at
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	nowMs := now.UnixMilli()
	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := stmt.ExecContext(ctx, r.UUID, r.ModifiedAt.UnixMilli(), string(payload), nowMs, nowMs); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// TouchContentEntries bumps last_accessed_at for the given uuids.
func TouchContentEntries(ctx context.Context, db *sql.DB, uuids []string, now time.Time) error {
	for _, chunk := range chunkStrings(dedupe(uuids), maxINParams) {
		args := append([]any{now.UnixMilli()}, stringArgs(chunk)...)
		query := `UPDATE content_cache SET last_accessed_at = ? WHERE uuid IN (` + placeholders(len(chunk)) + `)`
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// EvictContentEntries deletes the least recently accessed entries beyond limit.
// Returns the uuids removed. A limit <= 0 disables eviction.
func EvictContentEntries(ctx context.Context, db *sql.DB, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT uuid FROM content_cache
		ORDER BY last_accessed_at DESC, uuid
		LIMIT -1 OFFSET ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var victims []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		victims = append(victims, uuid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewInternal(err)
	}
	rows.Close()

	for _, chunk := range chunkStrings(victims, maxINParams) {
		query := `DELETE FROM content_cache WHERE uuid IN (` + placeholders(len(chunk)) + `)`
		if _, err := db.ExecContext(ctx, query, stringArgs(chunk)...); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	return victims, nil
}

// CountContentEntries returns the number of cached payloads.
func CountContentEntries(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_cache`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ClearContentEntries deletes every cached payload and returns the count removed.
func ClearContentEntries(ctx context.Context, db *sql.DB) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM content_cache`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func chunkStrings(ss []string, size int) [][]string {
	var chunks [][]string
	for len(ss) > size {
		chunks = append(chunks, ss[:size])
		ss = ss[size:]
	}
	if len(ss) > 0 {
		chunks = append(chunks, ss)
	}
	return chunks
}
