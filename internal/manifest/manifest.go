// Package manifest records per-document ingestion outcomes in SQLite so
// re-runs can skip unchanged files and report corpus state. The chunks
// themselves live only in the vector store; this is bookkeeping.
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is the last known ingestion state for one source document.
type Entry struct {
	Source      string
	Path        string
	MtimeNS     int64
	SizeBytes   int64
	TotalChunks int
	Succeeded   int
	Failed      int
	RunID       string
	UpdatedAt   time.Time
}

// Store is a SQLite-backed ingestion manifest.
type Store struct {
	db *sql.DB
}

// Open opens or creates the manifest database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		mtime_ns INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Record upserts the entry for a source document.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	e.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (source, path, mtime_ns, size_bytes, total_chunks, succeeded, failed, run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
			path = excluded.path,
			mtime_ns = excluded.mtime_ns,
			size_bytes = excluded.size_bytes,
			total_chunks = excluded.total_chunks,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`,
		e.Source, e.Path, e.MtimeNS, e.SizeBytes, e.TotalChunks, e.Succeeded, e.Failed, e.RunID, e.UpdatedAt,
	)
	return err
}

// Get returns the entry for source, or nil when the source has never been
// ingested.
func (s *Store) Get(ctx context.Context, source string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT source, path, mtime_ns, size_bytes, total_chunks, succeeded, failed, run_id, updated_at
		 FROM documents WHERE source = ?`, source,
	).Scan(&e.Source, &e.Path, &e.MtimeNS, &e.SizeBytes, &e.TotalChunks, &e.Succeeded, &e.Failed, &e.RunID, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Unchanged reports whether source was fully ingested before from the same
// path with the same mtime and size. Used to skip re-uploads on incremental
// runs.
func (s *Store) Unchanged(ctx context.Context, source, path string, mtimeNS, sizeBytes int64) (bool, error) {
	e, err := s.Get(ctx, source)
	if err != nil || e == nil {
		return false, err
	}
	return e.Path == path &&
		e.MtimeNS == mtimeNS &&
		e.SizeBytes == sizeBytes &&
		e.Failed == 0 &&
		e.Succeeded > 0, nil
}

// Counts returns the number of recorded documents and the sum of their
// successfully uploaded chunks.
func (s *Store) Counts(ctx context.Context) (documents int64, chunks int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(succeeded), 0) FROM documents`,
	).Scan(&documents, &chunks)
	return documents, chunks, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
