package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/iasistente/internal/models"
)

// SQLiteStorage implements IngestionLog using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestions (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		name TEXT NOT NULL,
		index_path TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		pages INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		embedding_model TEXT,
		started_at TIMESTAMP NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_ingestions_started_at ON ingestions(started_at);
	CREATE INDEX IF NOT EXISTS idx_ingestions_name ON ingestions(name, started_at);
	`
	_, err := db.Exec(schema)
	return err
}

const selectIngestion = `SELECT id, source, name, index_path, status, error_kind, error, pages, chunks,
	embedding_model, started_at, duration_ns FROM ingestions`

// Record inserts r. Recording the same ID twice is an error.
func (s *SQLiteStorage) Record(ctx context.Context, r *models.IngestionResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestions (id, source, name, index_path, status, error_kind, error, pages, chunks,
			embedding_model, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Name, r.IndexPath, string(r.Status), r.ErrorKind, r.Error, r.Pages, r.Chunks,
		r.EmbeddingModel, r.StartedAt.UTC(), int64(r.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion: %w", err)
	}
	return nil
}

// List returns up to limit results, newest first. A limit of zero or less means 50.
func (s *SQLiteStorage) List(ctx context.Context, name string, limit int) ([]*models.IngestionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if name == "" {
		rows, err = s.db.QueryContext(ctx, selectIngestion+` ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectIngestion+` WHERE name = ? ORDER BY started_at DESC LIMIT ?`, name, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestions: %w", err)
	}
	defer rows.Close()

	var out []*models.IngestionResult
	for rows.Next() {
		r, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastSuccess returns the newest successful ingestion of name.
func (s *SQLiteStorage) LastSuccess(ctx context.Context, name string) (*models.IngestionResult, error) {
	row := s.db.QueryRowContext(ctx,
		selectIngestion+` WHERE name = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		name, string(models.IngestionSucceeded),
	)
	r, err := scanIngestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngestion(sc scanner) (*models.IngestionResult, error) {
	var (
		r                                       models.IngestionResult
		status                                  string
		indexPath, errorKind, errMsg, embedding sql.NullString
		durationNS                              int64
		startedAt                               time.Time
	)
	if err := sc.Scan(&r.ID, &r.Source, &r.Name, &indexPath, &status, &errorKind, &errMsg,
		&r.Pages, &r.Chunks, &embedding, &startedAt, &durationNS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ingestion: %w", err)
	}
	r.Status = models.IngestionStatus(status)
	r.IndexPath = indexPath.String
	r.ErrorKind = errorKind.String
	r.Error = errMsg.String
	r.EmbeddingModel = embedding.String
	r.StartedAt = startedAt
	r.Duration = time.Duration(durationNS)
	return &r, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
