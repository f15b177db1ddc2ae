package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/retrieve"
	"github.com/hyperjump/ronbun/internal/store"
)

type stubStore struct {
	matches []store.Match
	err     error
	lastK   int
}

func (s *stubStore) Upsert(ctx context.Context, records []store.Record) error { return nil }

func (s *stubStore) Query(ctx context.Context, vector []float32, topK int) ([]store.Match, error) {
	s.lastK = topK
	return s.matches, s.err
}

func (s *stubStore) Stats(ctx context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}
func (s *stubStore) Close() error { return nil }

func newTestService(vs *stubStore) *Service {
	r := retrieve.New(embedding.NewMockEmbedder(8), vs, 0.35)
	return NewService(r, 5)
}

func TestAsk_GroundedWithContext(t *testing.T) {
	vs := &stubStore{matches: []store.Match{
		{ID: "a", Score: 0.9, Metadata: models.ChunkMetadata{Text: "The sample was annealed for two hours at 300K.", Source: "paper.pdf"}},
		{ID: "b", Score: 0.5, Metadata: models.ChunkMetadata{Text: "Additional annealing context from the appendix.", Source: "paper.pdf"}},
	}}
	svc := newTestService(vs)

	result, context := svc.Ask(context.Background(), "how long was the sample annealed?", 0)
	if result.State != models.AnswerGrounded {
		t.Fatalf("state = %s", result.State)
	}
	if len(context) != 2 {
		t.Errorf("context size = %d, want 2", len(context))
	}
	if vs.lastK != 5 {
		t.Errorf("default k = %d, want 5", vs.lastK)
	}
}

func TestAsk_KOverride(t *testing.T) {
	vs := &stubStore{}
	svc := newTestService(vs)
	svc.Ask(context.Background(), "q", 3)
	if vs.lastK != 3 {
		t.Errorf("k = %d, want 3", vs.lastK)
	}
}

func TestAsk_BackendErrorHidesContext(t *testing.T) {
	vs := &stubStore{err: errors.New("timeout")}
	svc := newTestService(vs)

	result, context := svc.Ask(context.Background(), "q", 0)
	if result.State != models.AnswerBackendError {
		t.Fatalf("state = %s", result.State)
	}
	if len(context) != 0 {
		t.Errorf("context = %+v, want none on backend error", context)
	}
}

func TestContext_BackendErrorSurfaces(t *testing.T) {
	vs := &stubStore{err: errors.New("timeout")}
	svc := newTestService(vs)

	got, err := svc.Context(context.Background(), "q", 0)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("err = %v, want the backend detail preserved", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want no matches alongside the error", got)
	}
}

func TestContext_ReturnsMatches(t *testing.T) {
	vs := &stubStore{matches: []store.Match{
		{ID: "a", Score: 0.8, Metadata: models.ChunkMetadata{Text: "Chunk one text.", Source: "a.pdf"}},
		{ID: "b", Score: 0.2, Metadata: models.ChunkMetadata{Text: "Below threshold.", Source: "a.pdf"}},
	}}
	svc := newTestService(vs)

	got, err := svc.Context(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "Chunk one text." {
		t.Errorf("got %+v", got)
	}
}
