// Package archive keeps encrypted mapping blobs in SQLite so a mapping can be
// recovered when the .lethe file is lost. Only the vault blob and
// non-sensitive metadata (document name, timestamp, per-category counts) are
// stored; nothing in the archive is readable without the password.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/lethe/internal/mapping"
	letheotel "github.com/dativo-io/lethe/internal/otel"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/archive")

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("archived mapping not found")

// Record is one archived mapping.
type Record struct {
	ID        string          `json:"id"`
	Document  string          `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
	Summary   mapping.Summary `json:"summary"`
	Blob      []byte          `json:"-"`
}

// Store persists archived mappings in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (creating if needed) the archive database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS mappings (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		persons INTEGER NOT NULL DEFAULT 0,
		tax_ids INTEGER NOT NULL DEFAULT 0,
		doc_ids INTEGER NOT NULL DEFAULT 0,
		dates INTEGER NOT NULL DEFAULT 0,
		blob BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mappings_created ON mappings(created_at);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the number of archived mappings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mappings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting mappings: %w", err)
	}
	return n, nil
}

// Save archives blob under a new ID.
func (s *Store) Save(ctx context.Context, document string, summary mapping.Summary, blob []byte) (*Record, error) {
	rec := &Record{
		ID:        "map_" + uuid.New().String(),
		Document:  document,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Summary:   summary,
		Blob:      blob,
	}

	ctx, span := tracer.Start(ctx, "archive.save",
		trace.WithAttributes(attribute.String("archive.id", rec.ID)))
	defer span.End()

	query := `INSERT INTO mappings (id, document, created_at, persons, tax_ids, doc_ids, dates, blob)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Document, rec.CreatedAt,
		summary.Persons, summary.TaxIDs, summary.DocIDs, summary.Dates, blob,
	)
	if err != nil {
		return nil, fmt.Errorf("storing mapping: %w", err)
	}
	return rec, nil
}

// Get returns the record with the given ID, blob included.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "archive.get",
		trace.WithAttributes(attribute.String("archive.id", id)))
	defer span.End()

	query := `SELECT id, document, created_at, persons, tax_ids, doc_ids, dates, blob FROM mappings WHERE id = ?`
	var rec Record
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Document, &rec.CreatedAt,
		&rec.Summary.Persons, &rec.Summary.TaxIDs, &rec.Summary.DocIDs, &rec.Summary.Dates,
		&rec.Blob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping: %w", err)
	}
	return &rec, nil
}

// List returns record metadata, newest first. Blobs are not loaded.
// A non-positive limit returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "archive.list")
	defer span.End()

	query := `SELECT id, document, created_at, persons, tax_ids, doc_ids, dates FROM mappings ORDER BY created_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	results := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.Document, &rec.CreatedAt,
			&rec.Summary.Persons, &rec.Summary.TaxIDs, &rec.Summary.DocIDs, &rec.Summary.Dates,
		); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	span.SetAttributes(attribute.Int("archive.count", len(results)))
	return results, nil
}

// Delete removes the record with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "archive.delete",
		trace.WithAttributes(attribute.String("archive.id", id)))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// PurgeOlderThan deletes records created before cutoff and returns how many
// were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "archive.purge")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE created_at < ?`, cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("purging mappings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging mappings: %w", err)
	}
	span.SetAttributes(attribute.Int64("archive.purged", n))
	return n, nil
}
