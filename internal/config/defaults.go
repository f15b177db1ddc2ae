package config

// DefaultRelevanceThreshold is the minimum similarity score for retrieved
// context. It is the anti-hallucination gate: below it a match is discarded.
const DefaultRelevanceThreshold = 0.35

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "memory"
	}
	if cfg.Backend.Pinecone.Namespace == "" {
		cfg.Backend.Pinecone.Namespace = "default"
	}
	if cfg.Backend.Pinecone.TimeoutSecs == 0 {
		cfg.Backend.Pinecone.TimeoutSecs = 15
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.RelevanceThreshold == 0 {
		cfg.Retrieval.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 600
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 150
	}
	if cfg.Ingest.UploadDelaySeconds == 0 {
		cfg.Ingest.UploadDelaySeconds = 2.0
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 1
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf", ".txt", ".md"}
	}
}
