// Package embedding provides text embedding adapters and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must be
// deterministic for identical text within a model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
