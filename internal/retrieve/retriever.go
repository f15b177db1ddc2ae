// Package retrieve turns a natural-language question into ranked context
// chunks from the vector store.
package retrieve

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/store"
)

// Retriever performs similarity search and filters the results by a relevance
// threshold.
type Retriever struct {
	embedder  embedding.Embedder
	store     store.VectorStore
	threshold float64
	logger    *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// New creates a Retriever. Matches scoring below threshold are discarded;
// a match scoring exactly at the threshold is kept.
func New(embedder embedding.Embedder, vs store.VectorStore, threshold float64, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		store:     vs,
		threshold: threshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query and returns up to topK matches at or above the
// relevance threshold, in descending score order. It never returns an error:
// when the embedding or store backend fails, the result is a single sentinel
// match carrying the failure detail, which downstream composition turns into
// a user-facing message.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []models.RetrievalMatch {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed", zap.Error(err))
		return []models.RetrievalMatch{models.BackendErrorMatch(err.Error())}
	}

	raw, err := r.store.Query(ctx, vector, topK)
	if err != nil {
		r.logger.Warn("vector query failed", zap.Error(err))
		return []models.RetrievalMatch{models.BackendErrorMatch(err.Error())}
	}

	matches := make([]models.RetrievalMatch, 0, len(raw))
	for _, m := range raw {
		if m.Score < r.threshold {
			continue
		}
		matches = append(matches, models.RetrievalMatch{
			Text:   m.Metadata.Text,
			Score:  m.Score,
			Source: m.Metadata.Source,
		})
	}

	r.logger.Debug("retrieved context",
		zap.Int("raw_matches", len(raw)),
		zap.Int("relevant_matches", len(matches)),
		zap.Float64("threshold", r.threshold))
	return matches
}
