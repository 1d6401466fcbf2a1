package migrations

// StatsRollups adds an hourly view over service_stats. Counters are
// cumulative per process, so each bucket keeps the maximum seen.
var StatsRollups = &Migration{
	ID:   "002_stats_rollups",
	Name: "002_stats_rollups",
	UpSQL: `
	CREATE OR REPLACE VIEW service_stats_hourly AS
	SELECT
		date_trunc('hour', time) AS hour,
		MAX(total_queries) AS total_queries,
		MAX(invalid_queries) AS invalid_queries,
		MAX(fetches) AS fetches,
		MAX(failed_fetches) AS failed_fetches,
		MAX(schema_errors) AS schema_errors,
		MAX(cache_hits) AS cache_hits,
		MAX(cache_misses) AS cache_misses,
		MAX(snapshot_rows) AS snapshot_rows,
		COUNT(*) AS samples
	FROM service_stats
	GROUP BY hour;
	`,
	DownSQL: `
	DROP VIEW IF EXISTS service_stats_hourly;
	`,
}
