package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, err := e.Embed(context.Background(), "microRNA sponges")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "microRNA sponges")
	c, _ := e.Embed(context.Background(), "something else")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text produced different embeddings at %d", i)
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	e := NewMockEmbedder(32)
	emb, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("embedding norm = %f, want 1.0", math.Sqrt(sum))
	}
}

// countingEmbedder tracks backend calls for cache tests.
type countingEmbedder struct {
	*MockEmbedder
	embedCalls int
	batchCalls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitsSkipBackend(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "q"); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Embed(ctx, "q"); err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("backend called %d times, want 1", inner.embedCalls)
	}
}

func TestCachedEmbedder_BatchOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	out, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(out))
	}
	for i, emb := range out {
		if len(emb) != 8 {
			t.Errorf("embedding %d has dimension %d, want 8", i, len(emb))
		}
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch backend called %d times, want 1", inner.batchCalls)
	}
	// Everything is cached now; no further backend calls.
	if _, err := cached.EmbedBatch(ctx, []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch backend called %d times after warm cache, want 1", inner.batchCalls)
	}
}

func TestNewCachedEmbedder_ZeroCapacityPassthrough(t *testing.T) {
	inner := NewMockEmbedder(8)
	if got := NewCachedEmbedder(inner, 0); got != Embedder(inner) {
		t.Error("zero capacity should return the inner embedder unchanged")
	}
}

func TestOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
				{"object": "embedding", "index": 1, "embedding": []float32{0.4, 0.5, 0.6}},
			},
			"model": "text-embedding-3-small",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    ts.URL + "/v1",
		Dimensions: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || len(out[0]) != 3 {
		t.Fatalf("unexpected shape: %v", out)
	}
	if out[1][0] != 0.4 {
		t.Errorf("out[1][0] = %f, want 0.4", out[1][0])
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: ts.URL + "/v1", Dimensions: 384})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
