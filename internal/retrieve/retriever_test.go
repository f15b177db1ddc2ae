package retrieve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/store"
)

type stubStore struct {
	matches []store.Match
	err     error
}

func (s *stubStore) Upsert(ctx context.Context, records []store.Record) error { return nil }

func (s *stubStore) Query(ctx context.Context, vector []float32, topK int) ([]store.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.matches) {
		return s.matches[:topK], nil
	}
	return s.matches, nil
}

func (s *stubStore) Stats(ctx context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}
func (s *stubStore) Close() error { return nil }

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func match(id string, score float64) store.Match {
	return store.Match{
		ID:    id,
		Score: score,
		Metadata: models.ChunkMetadata{
			Text:   "text for " + id,
			Source: "paper.pdf",
		},
	}
}

func TestRetrieve_ThresholdIsInclusive(t *testing.T) {
	vs := &stubStore{matches: []store.Match{
		match("a", 0.92),
		match("b", 0.35),
		match("c", 0.349),
	}}
	r := New(embedding.NewMockEmbedder(8), vs, 0.35)

	got := r.Retrieve(context.Background(), "what is the fold rate?", 5)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(got), got)
	}
	if got[0].Text != "text for a" || got[1].Text != "text for b" {
		t.Errorf("matches = %+v", got)
	}
	if got[0].Score < got[1].Score {
		t.Error("matches not in descending score order")
	}
}

func TestRetrieve_NoRelevantMatches(t *testing.T) {
	vs := &stubStore{matches: []store.Match{match("a", 0.1), match("b", 0.05)}}
	r := New(embedding.NewMockEmbedder(8), vs, 0.35)

	got := r.Retrieve(context.Background(), "unrelated question", 5)
	if len(got) != 0 {
		t.Errorf("got %d matches, want 0", len(got))
	}
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	r := New(failingEmbedder{}, &stubStore{}, 0.35)

	got := r.Retrieve(context.Background(), "anything", 5)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1 sentinel", len(got))
	}
	if !got[0].IsBackendError() {
		t.Fatalf("expected backend error sentinel, got %+v", got[0])
	}
	if !strings.Contains(got[0].BackendErrorDetail(), "connection refused") {
		t.Errorf("detail = %q", got[0].BackendErrorDetail())
	}
}

func TestRetrieve_StoreFailure(t *testing.T) {
	vs := &stubStore{err: errors.New("index host unreachable")}
	r := New(embedding.NewMockEmbedder(8), vs, 0.35)

	got := r.Retrieve(context.Background(), "anything", 5)
	if len(got) != 1 || !got[0].IsBackendError() {
		t.Fatalf("expected backend error sentinel, got %+v", got)
	}
}

func TestRetrieve_RespectsTopK(t *testing.T) {
	vs := &stubStore{matches: []store.Match{
		match("a", 0.9), match("b", 0.8), match("c", 0.7),
	}}
	r := New(embedding.NewMockEmbedder(8), vs, 0.35)

	got := r.Retrieve(context.Background(), "q", 2)
	if len(got) != 2 {
		t.Errorf("got %d matches, want 2", len(got))
	}
}
