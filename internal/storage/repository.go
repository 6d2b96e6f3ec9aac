// Package storage is the SQLite history backend. Each recorded calculation is
// a row holding the JSON-encoded history.Record; the table is trimmed to
// history.Capacity rows inside the same transaction as the insert.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nebenkosten/internal/history"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ history.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Record(ctx context.Context, e history.Entry) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO calculation_history (id, recorded_at, payload) VALUES (?, ?, ?)`,
		e.ID, e.Timestamp, string(payload)); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM calculation_history
		 WHERE seq NOT IN (SELECT seq FROM calculation_history ORDER BY seq DESC LIMIT ?)`,
		history.Capacity); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history entry: %w", err)
	}

	slog.DebugContext(ctx, "History entry saved to SQLite", "id", e.ID)
	return nil
}

// List returns the retained entries, newest first. Rows whose payload no
// longer decodes are skipped.
func (r *SQLiteRepository) List(ctx context.Context) ([]history.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, recorded_at, payload FROM calculation_history ORDER BY seq DESC LIMIT ?`,
		history.Capacity)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e       history.Entry
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Data); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt history row", "id", e.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calculation_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	slog.InfoContext(ctx, "History cleared")
	return nil
}
