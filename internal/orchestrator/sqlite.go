package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteMetadataStore is a MetadataStore backed by a SQLite database.
// The segment_metadata table is populated out-of-band by the ingest
// pipeline; this store only reads it.
type SQLiteMetadataStore struct {
	db *sql.DB
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (and if necessary creates) the database at
// dbPath and ensures the segment_metadata table exists.
func NewSQLiteMetadataStore(dbPath string) (*SQLiteMetadataStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS segment_metadata (
		segment_id   TEXT PRIMARY KEY,
		input_path   TEXT NOT NULL,
		start_time   TEXT NOT NULL,
		duration     TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create segment_metadata table: %w", err)
	}

	return &SQLiteMetadataStore{db: db}, nil
}

// GetSegmentMetadata implements MetadataStore.
func (s *SQLiteMetadataStore) GetSegmentMetadata(ctx context.Context, id SegmentID) (*SegmentMetadata, error) {
	const q = `SELECT input_path, start_time, duration FROM segment_metadata WHERE segment_id = ?`

	m := SegmentMetadata{SegmentID: id}
	err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&m.SourceRef, &m.StartOffset, &m.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query segment metadata: %w", err)
	}
	return &m, nil
}

// PutSegmentMetadata inserts or replaces a metadata row. Production rows are
// written by the ingest pipeline; this is exposed for seeding and tests.
func (s *SQLiteMetadataStore) PutSegmentMetadata(ctx context.Context, m SegmentMetadata) error {
	const q = `INSERT OR REPLACE INTO segment_metadata (segment_id, input_path, start_time, duration) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, string(m.SegmentID), m.SourceRef, m.StartOffset, m.Duration); err != nil {
		return fmt.Errorf("insert segment metadata: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteMetadataStore) Close() error {
	return s.db.Close()
}
