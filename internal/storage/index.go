package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is the indexed metadata of one transcript.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Duration  float64   `json:"duration" yaml:"duration"`
	Segments  int       `json:"segments" yaml:"segments"`
	Speakers  []string  `json:"speakers,omitempty" yaml:"speakers,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Enriched  bool      `json:"enriched" yaml:"enriched"`
}

// Index is the SQLite transcript index.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	duration REAL NOT NULL DEFAULT 0,
	segments INTEGER NOT NULL DEFAULT 0,
	speakers TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	enriched INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_started_at ON transcripts(started_at);
`

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Put inserts or replaces a record.
func (x *Index) Put(ctx context.Context, r Record) error {
	const q = `
	INSERT OR REPLACE INTO transcripts (id, name, path, started_at, duration, segments, speakers, created_at, enriched)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := x.db.ExecContext(ctx, q, r.ID, r.Name, r.Path, r.StartedAt.Unix(), r.Duration,
		r.Segments, strings.Join(r.Speakers, ","), created.Unix(), boolInt(r.Enriched))
	if err != nil {
		return fmt.Errorf("index transcript: %w", err)
	}
	return nil
}

// Get returns the record for id; ok is false when it is not indexed.
func (x *Index) Get(ctx context.Context, id string) (Record, bool, error) {
	const q = `
	SELECT id, name, path, started_at, duration, segments, speakers, created_at, enriched
	FROM transcripts WHERE id = ?
	`
	r, err := scanRecord(x.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get transcript: %w", err)
	}
	return r, true, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (x *Index) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	const q = `
	SELECT id, name, path, started_at, duration, segments, speakers, created_at, enriched
	FROM transcripts ORDER BY started_at DESC, id DESC LIMIT ?
	`
	rows, err := x.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkEnriched flags a transcript as enriched.
func (x *Index) MarkEnriched(ctx context.Context, id string) error {
	_, err := x.db.ExecContext(ctx, `UPDATE transcripts SET enriched = 1 WHERE id = ?`, id)
	return err
}

// Delete removes a record.
func (x *Index) Delete(ctx context.Context, id string) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	return err
}

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r                Record
		started, created int64
		speakers         string
		enriched         int
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Path, &started, &r.Duration, &r.Segments, &speakers, &created, &enriched); err != nil {
		return Record{}, err
	}
	r.StartedAt = time.Unix(started, 0)
	r.CreatedAt = time.Unix(created, 0)
	if speakers != "" {
		r.Speakers = strings.Split(speakers, ",")
	}
	r.Enriched = enriched != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
