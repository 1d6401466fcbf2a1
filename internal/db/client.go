package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Ping verifies the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// StoreServiceStats stores one row of service statistics
func (c *Client) StoreServiceStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO service_stats (
			time, total_queries, option_queries, invalid_queries,
			fetches, failed_fetches, schema_errors,
			decoded_states, dropped_states, normalized_drops,
			cache_hits, cache_misses, snapshot_rows,
			fetch_time_ms, uptime_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	fetchTime, _ := stats["fetch_time"].(time.Duration)
	uptime, _ := stats["uptime"].(time.Duration)

	_, err := c.db.Exec(query,
		time.Now(),
		counter(stats["total_queries"]),
		counter(stats["option_queries"]),
		counter(stats["invalid_queries"]),
		counter(stats["fetches"]),
		counter(stats["failed_fetches"]),
		counter(stats["schema_errors"]),
		counter(stats["decoded_states"]),
		counter(stats["dropped_states"]),
		counter(stats["normalized_drops"]),
		counter(stats["cache_hits"]),
		counter(stats["cache_misses"]),
		counter(stats["snapshot_rows"]),
		fetchTime.Milliseconds(),
		int64(uptime.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to store service stats: %w", err)
	}

	return nil
}

// counter converts a stats counter to a BIGINT value, treating missing values as zero
func counter(v interface{}) int64 {
	switch n := v.(type) {
	case uint64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// GetServiceStats retrieves service statistics for a time range, newest first
func (c *Client) GetServiceStats(start, end time.Time) ([]map[string]interface{}, error) {
	query := `
		SELECT
			time, total_queries, option_queries, invalid_queries,
			fetches, failed_fetches, schema_errors,
			decoded_states, dropped_states, normalized_drops,
			cache_hits, cache_misses, snapshot_rows,
			fetch_time_ms, uptime_seconds
		FROM service_stats
		WHERE time BETWEEN $1 AND $2
		ORDER BY time DESC
	`

	rows, err := c.db.Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "error closing rows: %v\n", cerr)
		}
	}()

	var stats []map[string]interface{}
	for rows.Next() {
		var (
			timestamp       time.Time
			totalQueries    int64
			optionQueries   int64
			invalidQueries  int64
			fetches         int64
			failedFetches   int64
			schemaErrors    int64
			decodedStates   int64
			droppedStates   int64
			normalizedDrops int64
			cacheHits       int64
			cacheMisses     int64
			snapshotRows    int64
			fetchTimeMs     int64
			uptimeSeconds   int64
		)

		if err := rows.Scan(
			&timestamp,
			&totalQueries,
			&optionQueries,
			&invalidQueries,
			&fetches,
			&failedFetches,
			&schemaErrors,
			&decodedStates,
			&droppedStates,
			&normalizedDrops,
			&cacheHits,
			&cacheMisses,
			&snapshotRows,
			&fetchTimeMs,
			&uptimeSeconds,
		); err != nil {
			return nil, err
		}

		stats = append(stats, map[string]interface{}{
			"time":             timestamp,
			"total_queries":    totalQueries,
			"option_queries":   optionQueries,
			"invalid_queries":  invalidQueries,
			"fetches":          fetches,
			"failed_fetches":   failedFetches,
			"schema_errors":    schemaErrors,
			"decoded_states":   decodedStates,
			"dropped_states":   droppedStates,
			"normalized_drops": normalizedDrops,
			"cache_hits":       cacheHits,
			"cache_misses":     cacheMisses,
			"snapshot_rows":    snapshotRows,
			"fetch_time":       time.Duration(fetchTimeMs) * time.Millisecond,
			"uptime_seconds":   uptimeSeconds,
		})
	}

	return stats, rows.Err()
}
