package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID        string
	Name      string
	UpSQL     string
	DownSQL   string
	CreatedAt time.Time
}

// All returns the service schema migrations in apply order
func All() []*Migration {
	return []*Migration{
		InitialSchema,
		StatsRollups,
	}
}

// Migrator manages database migrations
type Migrator struct {
	db *sql.DB
}

// New creates a new Migrator
func New(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// GetAppliedMigrations returns the set of applied migration names
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	query := `SELECT name FROM migrations ORDER BY id`
	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "error closing rows: %v\n", cerr)
		}
	}()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Pending returns the migrations not yet applied, in order
func (m *Migrator) Pending(migrations []*Migration) ([]*Migration, error) {
	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var pending []*Migration
	for _, migration := range migrations {
		if !applied[migration.Name] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// executeMigration runs query and the bookkeeping statement in one transaction
func (m *Migrator) executeMigration(migration *Migration, query, recordQuery string, recordArgs ...interface{}) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}

	if _, err := tx.Exec(recordQuery, recordArgs...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	return tx.Commit()
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.UpSQL,
		"INSERT INTO migrations (name) VALUES ($1)",
		migration.Name,
	)
}

// RollbackMigration rolls back a single migration
func (m *Migrator) RollbackMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.DownSQL,
		"DELETE FROM migrations WHERE name = $1",
		migration.Name,
	)
}

// Migrate applies all pending migrations
func (m *Migrator) Migrate(migrations []*Migration) error {
	pending, err := m.Pending(migrations)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		if err := m.ApplyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
		log.Printf("Applied migration: %s", migration.Name)
	}

	return nil
}

// Rollback rolls back the last applied migration
func (m *Migrator) Rollback(migrations []*Migration) error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var lastMigration *Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		if applied[migrations[i].Name] {
			lastMigration = migrations[i]
			break
		}
	}

	if lastMigration == nil {
		return fmt.Errorf("no migrations to rollback")
	}

	if err := m.RollbackMigration(lastMigration); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", lastMigration.Name, err)
	}

	log.Printf("Rolled back migration: %s", lastMigration.Name)
	return nil
}
