package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is a thread-safe in-process RecordStore with the same semantics as
// the pgx store: whole-record visibility, namespace isolation, idempotent
// deletes. It backs unit tests and single-node development.
type Memory struct {
	mu   sync.RWMutex
	dim  int
	data map[Namespace]map[string]*memRecord
}

type memRecord struct {
	document  string
	meta      Metadata
	vector    []float32
	rawText   string
	indexedAt time.Time
}

func NewMemory(dim int) *Memory {
	return &Memory{
		dim: dim,
		data: map[Namespace]map[string]*memRecord{
			NamespaceOrdinary:  {},
			NamespaceSensitive: {},
		},
	}
}

func (m *Memory) Add(_ context.Context, ns Namespace, id, document string, meta Metadata, vector []float32, rawText string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	if len(vector) != m.dim {
		return fmt.Errorf("vector dimension %d, want %d", len(vector), m.dim)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &memRecord{
		document:  document,
		meta:      meta,
		vector:    vec,
		rawText:   rawText,
		indexedAt: time.Now().UTC(),
	}

	// Replace keeps the original indexed_at, like the SQL upsert.
	if prev, ok := m.data[ns][id]; ok {
		rec.indexedAt = prev.indexedAt
	}
	m.data[ns][id] = rec
	return nil
}

func (m *Memory) Get(_ context.Context, ns Namespace, id string) (*Record, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[ns][id]
	if !ok {
		return nil, ErrNotFound
	}

	vec := make([]float32, len(rec.vector))
	copy(vec, rec.vector)
	return &Record{
		Namespace: ns,
		ID:        id,
		Document:  rec.document,
		Metadata:  rec.meta,
		Vector:    vec,
		IndexedAt: rec.indexedAt,
	}, nil
}

func (m *Memory) GetRawText(_ context.Context, ns Namespace, id string) (string, error) {
	if err := ns.Validate(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[ns][id]
	if !ok {
		return "", ErrNotFound
	}
	return rec.rawText, nil
}

func (m *Memory) List(_ context.Context, ns Namespace) ([]Summary, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Summary, 0, len(m.data[ns]))
	for id, rec := range m.data[ns] {
		results = append(results, Summary{ID: id, Metadata: rec.meta, IndexedAt: rec.indexedAt})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *Memory) Vectors(_ context.Context, ns Namespace) ([]VectorEntry, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]VectorEntry, 0, len(m.data[ns]))
	for id, rec := range m.data[ns] {
		vec := make([]float32, len(rec.vector))
		copy(vec, rec.vector)
		results = append(results, VectorEntry{ID: id, Vector: vec})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *Memory) Delete(_ context.Context, ns Namespace, id string) error {
	if err := ns.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[ns][id]; !ok {
		return ErrNotFound
	}
	delete(m.data[ns], id)
	return nil
}

func (m *Memory) Close() {}

// SetIndexedAt overrides a record's index time. Tests use it to pin dedup
// ordering without sleeping.
func (m *Memory) SetIndexedAt(ns Namespace, id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.data[ns][id]; ok {
		rec.indexedAt = at
	}
}
