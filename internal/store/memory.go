package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector store using brute-force cosine search.
// Suitable for local runs, tests, and small corpora. Records are keyed by ID,
// so re-upserting a chunk replaces its previous vector. When a path is
// configured the contents are persisted as JSON on Save/Close.
type MemoryStore struct {
	dimensions int
	path       string
	records    map[string]Record
	mu         sync.RWMutex
}

// NewMemoryStore creates an in-memory store with the given dimension.
// If path is non-empty and the file exists, previous contents are loaded.
func NewMemoryStore(dimensions int, path string) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryStore{
		dimensions: dimensions,
		path:       path,
		records:    make(map[string]Record),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert inserts or replaces records by ID.
func (m *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if len(r.Values) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Values), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, r.Values)
		r.Values = vec
		m.records[r.ID] = r
	}
	return nil
}

// Query returns the top-k records by cosine similarity, descending.
func (m *MemoryStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    cosineSimilarity(vector, r.Values),
			Metadata: r.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Stats returns the vector count and dimension.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{VectorCount: len(m.records), Dimensions: m.dimensions}, nil
}

// Close persists the store when a path is configured.
func (m *MemoryStore) Close() error {
	return m.Save()
}

type memorySnapshot struct {
	Dimensions int      `json:"dimensions"`
	Records    []Record `json:"records"`
}

// Save writes the store contents to the configured path, if any.
func (m *MemoryStore) Save() error {
	if m.path == "" {
		return nil
	}
	m.mu.RLock()
	snap := memorySnapshot{Dimensions: m.dimensions, Records: make([]Record, 0, len(m.records))}
	for _, r := range m.records {
		snap.Records = append(snap.Records, r)
	}
	m.mu.RUnlock()
	sort.Slice(snap.Records, func(i, j int) bool { return snap.Records[i].ID < snap.Records[j].ID })

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// load reads the snapshot at the configured path. A missing file is fine;
// a dimension mismatch is a configuration error.
func (m *MemoryStore) load() error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse index: %w", err)
	}
	if snap.Dimensions != m.dimensions {
		return fmt.Errorf("index dimension mismatch: file has %d, store expects %d", snap.Dimensions, m.dimensions)
	}
	for _, r := range snap.Records {
		m.records[r.ID] = r
	}
	return nil
}

// cosineSimilarity returns the cosine similarity of a and b, clamped to [0, 1].
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, sim))
}
