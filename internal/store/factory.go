package store

import (
	"fmt"
	"time"

	"github.com/hyperjump/ronbun/internal/config"
)

// NewFromConfig builds the vector store selected by cfg.Backend.Type.
// Both backends satisfy VectorStore; the rest of the system never knows
// which one it is talking to.
func NewFromConfig(cfg *config.Config) (VectorStore, error) {
	switch cfg.Backend.Type {
	case "memory":
		return NewMemoryStore(cfg.Embedding.Dimensions, cfg.Backend.Memory.IndexPath)
	case "pinecone":
		return NewPineconeStore(PineconeConfig{
			IndexHost: cfg.Backend.Pinecone.IndexHost,
			APIKey:    cfg.Backend.Pinecone.APIKey,
			Namespace: cfg.Backend.Pinecone.Namespace,
			Timeout:   time.Duration(cfg.Backend.Pinecone.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}
