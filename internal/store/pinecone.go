package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PineconeConfig holds connection settings for a Pinecone index. The API key
// must come from configuration (environment), never from literals.
type PineconeConfig struct {
	IndexHost string // e.g. "https://my-index-abc123.svc.us-east1-gcp.pinecone.io"
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// PineconeStore is a REST client for a Pinecone index. All request bodies
// are built from typed structs; nothing is interpolated into payloads.
type PineconeStore struct {
	host      string
	apiKey    string
	namespace string
	client    *http.Client
}

// NewPineconeStore creates a client for the given index host.
func NewPineconeStore(cfg PineconeConfig) (*PineconeStore, error) {
	if cfg.IndexHost == "" {
		return nil, errors.New("pinecone store requires an index host")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone store requires an API key")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &PineconeStore{
		host:      cfg.IndexHost,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type pineconeUpsertRequest struct {
	Vectors   []Record `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

type pineconeStatsResponse struct {
	TotalVectorCount int `json:"totalVectorCount"`
	Dimension        int `json:"dimension"`
}

// Upsert writes records to the index in one call.
func (p *PineconeStore) Upsert(ctx context.Context, records []Record) error {
	req := pineconeUpsertRequest{Vectors: records, Namespace: p.namespace}
	return p.post(ctx, "/vectors/upsert", req, nil)
}

// Query returns the top-k nearest neighbors with metadata, descending score.
func (p *PineconeStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	req := pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       p.namespace,
	}
	var resp pineconeQueryResponse
	if err := p.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Stats returns index vector count and dimension.
func (p *PineconeStore) Stats(ctx context.Context) (*Stats, error) {
	var resp pineconeStatsResponse
	if err := p.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &Stats{VectorCount: resp.TotalVectorCount, Dimensions: resp.Dimension}, nil
}

// Close is a no-op; the HTTP client needs no teardown.
func (p *PineconeStore) Close() error {
	return nil
}

func (p *PineconeStore) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone POST %s: %s: %s", path, resp.Status, bytes.TrimSpace(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
