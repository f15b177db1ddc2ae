// Package store provides the vector-store interface and its backend adapters.
package store

import (
	"context"

	"github.com/hyperjump/ronbun/internal/models"
)

// Record is one chunk ready for upsert: deterministic ID, embedding, and the
// metadata needed to reconstruct the chunk text at query time.
type Record struct {
	ID       string               `json:"id"`
	Values   []float32            `json:"values"`
	Metadata models.ChunkMetadata `json:"metadata"`
}

// Match is a single nearest-neighbor hit, highest score first.
type Match struct {
	ID       string               `json:"id"`
	Score    float64              `json:"score"`
	Metadata models.ChunkMetadata `json:"metadata"`
}

// Stats summarizes index contents.
type Stats struct {
	VectorCount int `json:"vector_count"`
	Dimensions  int `json:"dimensions"`
}

// VectorStore is the single interface both backends implement: the managed
// vector database and the local in-memory index are interchangeable, selected
// by configuration. Implementations must be safe for concurrent use.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
