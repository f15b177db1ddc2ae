package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/answer"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/retrieve"
	"github.com/hyperjump/ronbun/internal/store"
)

// newTestServer wires a server against the in-memory store and the
// deterministic embedder, optionally pre-loading corpus text chunks.
func newTestServer(t *testing.T, chunks ...string) *Server {
	t.Helper()
	emb := embedding.NewMockEmbedder(8)
	vs, err := store.NewMemoryStore(8, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = vs.Close() })

	records := make([]store.Record, len(chunks))
	for i, text := range chunks {
		vec, err := emb.Embed(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		records[i] = store.Record{
			ID:     models.ChunkID("corpus.txt", i),
			Values: vec,
			Metadata: models.ChunkMetadata{
				Text:        text,
				Source:      "corpus.txt",
				ChunkIndex:  i,
				TotalChunks: len(chunks),
			},
		}
	}
	if len(records) > 0 {
		if err := vs.Upsert(context.Background(), records); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	retriever := retrieve.New(emb, vs, cfg.Retrieval.RelevanceThreshold)
	answers := answer.NewService(retriever, cfg.Retrieval.TopK)
	return NewServer(answers, vs, cfg, zap.NewNop())
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleAsk_Grounded(t *testing.T) {
	text := "The folding rate of the protein doubles between 20C and 30C."
	srv := newTestServer(t, text)

	// Asking with the chunk's own text guarantees a perfect similarity
	// score from the deterministic embedder.
	w := postJSON(t, srv.Router(), "/api/v1/ask", askRequest{Question: text})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != models.AnswerGrounded {
		t.Fatalf("state = %s, body = %+v", resp.State, resp)
	}
	if resp.Answer != text {
		t.Errorf("answer = %q, want chunk text verbatim", resp.Answer)
	}
	if len(resp.Context) == 0 {
		t.Error("grounded answer came with no context")
	}
}

func TestHandleAsk_EmptyStoreDeclines(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(t, srv.Router(), "/api/v1/ask", askRequest{Question: "what is chirality?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != models.AnswerNoContext {
		t.Errorf("state = %s, want no_context", resp.State)
	}
	if !strings.Contains(resp.Answer, "don't have information") {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestHandleAsk_Validation(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing question", askRequest{}},
		{"blank question", askRequest{Question: "   "}},
		{"negative k", askRequest{Question: "q", K: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/api/v1/ask", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestHandleContext(t *testing.T) {
	text := "Spectroscopy data was collected at five minute intervals."
	srv := newTestServer(t, text)

	w := postJSON(t, srv.Router(), "/api/v1/context", contextRequest{Query: text})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.ContextResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Context) == 0 || resp.Context[0] != text {
		t.Errorf("context = %+v", resp.Context)
	}
}

func TestHandleQuery(t *testing.T) {
	text := "The control group received a saline buffer instead."
	srv := newTestServer(t, text)

	w := postJSON(t, srv.Router(), "/api/v1/query", contextRequest{Query: text, K: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Chunks) != 1 {
		t.Fatalf("chunks = %+v", resp.Chunks)
	}
	if resp.Chunks[0].Source != "corpus.txt" || resp.Chunks[0].Score <= 0.9 {
		t.Errorf("chunk = %+v", resp.Chunks[0])
	}
}

// failingStore refuses every query, standing in for an unreachable backend.
type failingStore struct{}

func (failingStore) Upsert(ctx context.Context, records []store.Record) error { return nil }

func (failingStore) Query(ctx context.Context, vector []float32, topK int) ([]store.Match, error) {
	return nil, errors.New("index host unreachable")
}

func (failingStore) Stats(ctx context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}
func (failingStore) Close() error { return nil }

func newFailingServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	retriever := retrieve.New(embedding.NewMockEmbedder(8), failingStore{}, cfg.Retrieval.RelevanceThreshold)
	answers := answer.NewService(retriever, cfg.Retrieval.TopK)
	return NewServer(answers, failingStore{}, cfg, zap.NewNop())
}

func TestHandleContext_BackendFailure(t *testing.T) {
	srv := newFailingServer(t)

	w := postJSON(t, srv.Router(), "/api/v1/context", contextRequest{Query: "anything"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when the backend is down", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp["error"], "unavailable") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestHandleQuery_BackendFailure(t *testing.T) {
	srv := newFailingServer(t)

	w := postJSON(t, srv.Router(), "/api/v1/query", contextRequest{Query: "anything"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when the backend is down", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, "Some corpus text that is long enough to matter here.")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["vectors"].(float64) != 1 {
		t.Errorf("vectors = %v", resp["vectors"])
	}
	cfg, ok := resp["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("config missing: %+v", resp)
	}
	if cfg["relevance_threshold"].(float64) != 0.35 {
		t.Errorf("threshold = %v", cfg["relevance_threshold"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
