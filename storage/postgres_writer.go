package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresWriter persists merged catalog records to PostgreSQL as an
// optional sink next to the JSON artifact. Records are upserted keyed by
// (source, property_id); the full normalized record goes into a JSONB
// column so downstream consumers see the same shape as merged.json.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection, runs schema migration, and returns
// a ready-to-use writer.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS merged_properties (
			id          SERIAL PRIMARY KEY,
			source      VARCHAR(100) NOT NULL,
			property_id TEXT         NOT NULL,
			record      JSONB        NOT NULL DEFAULT '{}'::jsonb,
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (source, property_id)
		);

		CREATE INDEX IF NOT EXISTS idx_merged_properties_source ON merged_properties(source);
	`)
	return err
}

// WriteCatalog upserts every merged record. The fields argument is
// accepted for interface symmetry; the JSONB column stores the whole
// record regardless of schema order.
func (pw *PostgresWriter) WriteCatalog(fields []string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO merged_properties (source, property_id, record, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (source, property_id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		source, _ := record["source"].(string)
		propertyID, _ := record["property_id"].(string)

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("postgres: marshal record %s/%s: %w", source, propertyID, err)
		}
		if _, err := stmt.Exec(source, propertyID, string(payload)); err != nil {
			return fmt.Errorf("postgres: upsert %s/%s: %w", source, propertyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
