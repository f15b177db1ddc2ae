package answer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/retrieve"
)

// ErrBackendUnavailable reports that retrieval could not reach the embedding
// or vector backend.
var ErrBackendUnavailable = errors.New("knowledge base unavailable")

// Service answers questions by retrieving context and composing a response
// from it.
type Service struct {
	retriever *retrieve.Retriever
	topK      int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates an answering service. topK is the default number of
// context chunks considered per question.
func NewService(retriever *retrieve.Retriever, topK int, opts ...Option) *Service {
	s := &Service{retriever: retriever, topK: topK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask retrieves context for question and composes an answer from it. k
// overrides the default context size when positive. The returned matches are
// the retrieval context the answer was composed from; sentinel matches are
// stripped so callers can show the context to users as-is.
func (s *Service) Ask(ctx context.Context, question string, k int) (*models.AnswerResult, []models.RetrievalMatch) {
	if k <= 0 {
		k = s.topK
	}
	matches := s.retriever.Retrieve(ctx, question, k)
	result := Compose(question, matches)

	context := matches
	if result.State == models.AnswerBackendError {
		context = nil
	}

	s.logger.Info("question answered",
		zap.String("state", string(result.State)),
		zap.Int("context_chunks", len(context)))
	return result, context
}

// Context retrieves the raw context chunks for a query without composing an
// answer. Backend failures are returned as an error wrapping
// ErrBackendUnavailable, so callers can tell an outage from an empty corpus.
func (s *Service) Context(ctx context.Context, query string, k int) ([]models.RetrievalMatch, error) {
	if k <= 0 {
		k = s.topK
	}
	matches := s.retriever.Retrieve(ctx, query, k)
	for _, m := range matches {
		if m.IsBackendError() {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, m.BackendErrorDetail())
		}
	}
	return matches, nil
}
