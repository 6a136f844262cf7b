package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/anderson-ufrj/meeting-intelligence/internal/embedding"
	"github.com/anderson-ufrj/meeting-intelligence/internal/store"
)

// Result is one ranked hit from a similarity search.
type Result struct {
	ID    string  `json:"meeting_id"`
	Score float64 `json:"score"`
}

// Engine ranks every live record in a namespace by cosine similarity against
// a query vector. This is a deliberate O(namespace size) scan: for the
// expected scale (thousands of records) a full pass that can never miss or
// double-count a record beats an approximate index.
type Engine struct {
	store    store.RecordStore
	embedder embedding.Embedder
}

func NewEngine(s store.RecordStore, e embedding.Embedder) *Engine {
	return &Engine{store: s, embedder: e}
}

// Search scores all live records in ns against queryVec and returns up to
// topK results sorted by descending score, ties broken by id ascending so
// repeated searches over unchanged data are reproducible. Records deleted by
// a concurrent writer are simply absent from the scan.
func (e *Engine) Search(ctx context.Context, ns store.Namespace, queryVec []float32, topK int) ([]Result, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	entries, err := e.store.Vectors(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("scan namespace %s: %w", ns, err)
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, Result{
			ID:    entry.ID,
			Score: Cosine(queryVec, entry.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// SearchText embeds the query and delegates to Search.
func (e *Engine) SearchText(ctx context.Context, ns store.Namespace, query string, topK int) ([]Result, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.Search(ctx, ns, vec, topK)
}

// Cosine returns the normalized dot product of a and b. If either vector has
// zero norm the score is 0.0 — never NaN, never a panic.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	for i := n; i < len(a); i++ {
		normA += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0.0
	}
	return dot / denom
}
