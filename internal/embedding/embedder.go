package embedding

import "context"

// Embedder converts free text into a fixed-length numeric vector. The
// dimensionality is chosen once for the whole system; the record store
// rejects vectors of any other length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
