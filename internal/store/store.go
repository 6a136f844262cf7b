package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed record store. Records are persisted in a key-value
// layout (record:/vector:/rawtext: keys plus a live-id index table) and every
// Add/Delete runs in a single transaction so readers never observe a
// half-written record.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// recordValue is the serialized form behind a record: key.
type recordValue struct {
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
}

// New connects to Postgres and ensures the key-value tables exist.
// dim is the fixed embedding dimensionality for the whole system.
func New(ctx context.Context, databaseURL string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool, dim: dim}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key   TEXT PRIMARY KEY,
			value BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS kv_index (
			namespace  TEXT NOT NULL,
			id         TEXT NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func recordKey(ns Namespace, id string) string  { return fmt.Sprintf("record:%s:%s", ns, id) }
func vectorKey(ns Namespace, id string) string  { return fmt.Sprintf("vector:%s:%s", ns, id) }
func rawtextKey(ns Namespace, id string) string { return fmt.Sprintf("rawtext:%s:%s", ns, id) }

// Add writes all keys for a record plus its index entry in one transaction.
// A rerun of the same id is an explicit replace; the original indexed_at is
// kept so dedup ordering stays stable.
func (s *Store) Add(ctx context.Context, ns Namespace, id, document string, meta Metadata, vector []float32, rawText string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	if len(vector) != s.dim {
		return fmt.Errorf("vector dimension %d, want %d", len(vector), s.dim)
	}

	recJSON, err := json.Marshal(recordValue{Document: document, Metadata: meta})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
	           ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	for _, kv := range []struct {
		key   string
		value []byte
	}{
		{recordKey(ns, id), recJSON},
		{vectorKey(ns, id), vecJSON},
		{rawtextKey(ns, id), []byte(rawText)},
	} {
		if _, err := tx.Exec(ctx, upsert, kv.key, kv.value); err != nil {
			return fmt.Errorf("write %s: %w", kv.key, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO kv_index (namespace, id) VALUES ($1, $2)
		ON CONFLICT (namespace, id) DO NOTHING
	`, ns, id)
	if err != nil {
		return fmt.Errorf("index %s/%s: %w", ns, id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add: %w", err)
	}

	slog.Debug("record added", "namespace", ns, "id", id)
	return nil
}

// Get returns the full record, or ErrNotFound for a missing id.
func (s *Store) Get(ctx context.Context, ns Namespace, id string) (*Record, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT e.value, v.value, i.indexed_at
		FROM kv_index i
		JOIN kv_entries e ON e.key = $3
		JOIN kv_entries v ON v.key = $4
		WHERE i.namespace = $1 AND i.id = $2
	`, ns, id, recordKey(ns, id), vectorKey(ns, id))

	var rec Record
	var recJSON, vecJSON []byte
	if err := row.Scan(&recJSON, &vecJSON, &rec.IndexedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", ns, id, err)
	}

	var val recordValue
	if err := json.Unmarshal(recJSON, &val); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", ns, id, err)
	}
	if err := json.Unmarshal(vecJSON, &rec.Vector); err != nil {
		return nil, fmt.Errorf("decode vector %s/%s: %w", ns, id, err)
	}

	rec.Namespace = ns
	rec.ID = id
	rec.Document = val.Document
	rec.Metadata = val.Metadata
	return &rec, nil
}

// GetRawText returns the original transcript text stored alongside a record.
func (s *Store) GetRawText(ctx context.Context, ns Namespace, id string) (string, error) {
	if err := ns.Validate(); err != nil {
		return "", err
	}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`, rawtextKey(ns, id),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get rawtext %s/%s: %w", ns, id, err)
	}
	return string(raw), nil
}

// List returns summaries of all live records, ordered by id ascending.
func (s *Store) List(ctx context.Context, ns Namespace) ([]Summary, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.indexed_at, e.value
		FROM kv_index i
		JOIN kv_entries e ON e.key = 'record:' || i.namespace || ':' || i.id
		WHERE i.namespace = $1
		ORDER BY i.id
	`, ns)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var recJSON []byte
		if err := rows.Scan(&sum.ID, &sum.IndexedAt, &recJSON); err != nil {
			return nil, err
		}
		var val recordValue
		if err := json.Unmarshal(recJSON, &val); err != nil {
			slog.Warn("skipping undecodable record", "namespace", ns, "id", sum.ID, "error", err)
			continue
		}
		sum.Metadata = val.Metadata
		results = append(results, sum)
	}
	return results, rows.Err()
}

// Vectors returns the embeddings of all live records in the namespace,
// ordered by id. A record whose vector key vanished mid-scan is skipped by
// the inner join rather than failing the scan.
func (s *Store) Vectors(ctx context.Context, ns Namespace) ([]VectorEntry, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, v.value
		FROM kv_index i
		JOIN kv_entries v ON v.key = 'vector:' || i.namespace || ':' || i.id
		WHERE i.namespace = $1
		ORDER BY i.id
	`, ns)
	if err != nil {
		return nil, fmt.Errorf("vectors %s: %w", ns, err)
	}
	defer rows.Close()

	var results []VectorEntry
	for rows.Next() {
		var entry VectorEntry
		var vecJSON []byte
		if err := rows.Scan(&entry.ID, &vecJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(vecJSON, &entry.Vector); err != nil {
			slog.Warn("skipping undecodable vector", "namespace", ns, "id", entry.ID, "error", err)
			continue
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

// Delete removes the record, vector, raw text, and index entry together.
// Either all four go, or none do.
func (s *Store) Delete(ctx context.Context, ns Namespace, id string) error {
	if err := ns.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM kv_index WHERE namespace = $1 AND id = $2`, ns, id)
	if err != nil {
		return fmt.Errorf("delete index %s/%s: %w", ns, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`,
		[]string{recordKey(ns, id), vectorKey(ns, id), rawtextKey(ns, id)})
	if err != nil {
		return fmt.Errorf("delete keys %s/%s: %w", ns, id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.Debug("record deleted", "namespace", ns, "id", id)
	return nil
}
