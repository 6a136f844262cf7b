package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
)

// Namespace is the storage partition for one privacy tier. Every read and
// write is scoped to exactly one namespace; records never cross.
type Namespace string

const (
	NamespaceOrdinary  Namespace = "ordinary"
	NamespaceSensitive Namespace = "sensitive"
)

var (
	// ErrNotFound is returned for a missing id. It is the expected outcome of
	// existence checks, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrNamespaceIsolation marks a call with a namespace outside the two
	// known partitions. This is a programming error, never a data condition.
	ErrNamespaceIsolation = errors.New("namespace isolation violation")
)

// ForTier maps a tier to its namespace (1:1 by construction).
func ForTier(t meeting.Tier) Namespace {
	return Namespace(t)
}

// Validate rejects any namespace that is not one of the two partitions.
func (n Namespace) Validate() error {
	switch n {
	case NamespaceOrdinary, NamespaceSensitive:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNamespaceIsolation, string(n))
}

// Metadata is the summary blob stored alongside each record's document.
type Metadata struct {
	MeetingID   string          `json:"meeting_id"`
	Title       string          `json:"title"`
	Tier        string          `json:"tier"`
	ProcessedAt time.Time       `json:"processed_at"`
	Meeting     json.RawMessage `json:"meeting,omitempty"`
}

// Record is the unit of storage: document text used for search, metadata,
// and the embedding vector, co-located under one id.
type Record struct {
	Namespace Namespace
	ID        string
	Document  string
	Metadata  Metadata
	Vector    []float32
	IndexedAt time.Time
}

// Summary is the listing view of a record.
type Summary struct {
	ID        string
	Metadata  Metadata
	IndexedAt time.Time
}

// VectorEntry pairs a live record id with its embedding, for the search scan.
type VectorEntry struct {
	ID     string
	Vector []float32
}

// RecordStore is the interface consumed by the pipeline, search engine,
// dedup sweep, and API. Concrete implementations are *Store (pgx-backed)
// and *Memory (in-process).
type RecordStore interface {
	// Add writes document, metadata, vector, raw text, and the index entry
	// atomically. A successful add is immediately visible to Get and search.
	Add(ctx context.Context, ns Namespace, id, document string, meta Metadata, vector []float32, rawText string) error
	Get(ctx context.Context, ns Namespace, id string) (*Record, error)
	GetRawText(ctx context.Context, ns Namespace, id string) (string, error)
	// List returns live record summaries ordered by id ascending.
	List(ctx context.Context, ns Namespace) ([]Summary, error)
	// Vectors returns the embeddings of all live records, ordered by id.
	Vectors(ctx context.Context, ns Namespace) ([]VectorEntry, error)
	// Delete removes all keys for the id together; ErrNotFound if absent.
	Delete(ctx context.Context, ns Namespace, id string) error
	Close()
}
