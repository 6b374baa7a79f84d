package snapshot

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations in version order. The DDL is
// accepted by both PostgreSQL and SQLite.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					code VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					permissions TEXT NOT NULL DEFAULT '[]',
					data_scope VARCHAR(32) NOT NULL,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(64) PRIMARY KEY,
					home_page VARCHAR(255) NOT NULL DEFAULT ''
				);
			`,
		},
		{
			Version:     3,
			Description: "Create role and binding tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_code VARCHAR(64) NOT NULL REFERENCES roles(code) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_code)
				);

				CREATE TABLE IF NOT EXISTS user_lines (
					user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					line_id VARCHAR(64) NOT NULL,
					PRIMARY KEY (user_id, line_id)
				);

				CREATE TABLE IF NOT EXISTS user_stations (
					user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					station_id VARCHAR(64) NOT NULL,
					PRIMARY KEY (user_id, station_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_code ON user_roles(role_code);
			`,
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}

	for _, m := range GetMigrations() {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
