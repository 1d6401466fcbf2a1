package migrations

// InitialSchema creates the service statistics table
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		CREATE TABLE IF NOT EXISTS service_stats (
			time TIMESTAMPTZ NOT NULL,
			total_queries BIGINT NOT NULL,
			option_queries BIGINT NOT NULL,
			invalid_queries BIGINT NOT NULL,
			fetches BIGINT NOT NULL,
			failed_fetches BIGINT NOT NULL,
			schema_errors BIGINT NOT NULL,
			decoded_states BIGINT NOT NULL,
			dropped_states BIGINT NOT NULL,
			normalized_drops BIGINT NOT NULL,
			cache_hits BIGINT NOT NULL,
			cache_misses BIGINT NOT NULL,
			snapshot_rows BIGINT NOT NULL,
			fetch_time_ms BIGINT NOT NULL,
			uptime_seconds BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_service_stats_time ON service_stats (time DESC);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS service_stats;
	`,
}
