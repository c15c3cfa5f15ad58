package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/dtbar/internal/errors"
)

// IncrementPick records one user selection of uuid and returns the new count.
func IncrementPick(ctx context.Context, db *sql.DB, uuid string, now time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		INSERT INTO picks (uuid, count, last_picked_at)
		VALUES (?, 1, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			count = count + 1,
			last_picked_at = excluded.last_picked_at
		RETURNING count
	`, uuid, now.Unix()).Scan(&count)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// GetPickCounts returns pick counts for the given uuids.
// Uuids never picked are absent from the map.
func GetPickCounts(ctx context.Context, db *sql.DB, uuids []string) (map[string]int, error) {
	counts := make(map[string]int)

	for _, chunk := range chunkStrings(dedupe(uuids), maxINParams) {
		rows, err := db.QueryContext(ctx,
			`SELECT uuid, count FROM picks WHERE uuid IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		for rows.Next() {
			var (
				uuid  string
				count int
			)
			if err := rows.Scan(&uuid, &count); err != nil {
				rows.Close()
				return nil, errors.NewInternal(err)
			}
			counts[uuid] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		rows.Close()
	}

	return counts, nil
}

// CountPicks returns the number of distinct picked records.
func CountPicks(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM picks`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

