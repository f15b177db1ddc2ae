// Package config provides configuration loading and validation for ronbun.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError is a fatal startup-time configuration problem: missing
// credentials, missing source directory, or an invalid chunk/overlap
// relationship. It is never produced per-request.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds all configuration for the application. API keys are never
// read from the config file; they come exclusively from the environment
// (see LoadSecrets).
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig selects and configures the vector-store backend.
type BackendConfig struct {
	Type     string         `yaml:"type"` // "pinecone" or "memory"
	Pinecone PineconeConfig `yaml:"pinecone"`
	Memory   MemoryConfig   `yaml:"memory"`
}

// PineconeConfig holds the managed vector database connection settings.
// APIKey is populated from the PINECONE_API_KEY environment variable.
type PineconeConfig struct {
	IndexHost   string `yaml:"index_host"`
	Namespace   string `yaml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	APIKey      string `yaml:"-"`
}

// MemoryConfig holds the local in-memory backend settings.
type MemoryConfig struct {
	IndexPath string `yaml:"index_path"` // optional persistence; empty = volatile
}

// EmbeddingConfig selects and configures the embedder. APIKey is populated
// from the OPENAI_API_KEY environment variable.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "mock"
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	CacheSize  int    `yaml:"cache_size"`
	APIKey     string `yaml:"-"`
}

// RetrievalConfig holds query-path settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// RelevanceThreshold is the minimum similarity score for a match to be
	// surfaced as context. Matches scoring exactly at the threshold are kept.
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
}

// IngestConfig holds offline ingestion settings.
type IngestConfig struct {
	SourceDir          string   `yaml:"source_dir"`
	ChunkSize          int      `yaml:"chunk_size"`
	ChunkOverlap       int      `yaml:"chunk_overlap"`
	UploadDelaySeconds float64  `yaml:"upload_delay_seconds"`
	BatchSize          int      `yaml:"batch_size"`
	SkipOnError        bool     `yaml:"skip_on_error"`
	ManifestPath       string   `yaml:"manifest_path"`
	Extensions         []string `yaml:"extensions"`
	Watch              bool     `yaml:"watch"` // auto-ingest new files while the server runs
}

// Load reads and parses the config file at path, expands paths relative to
// the config directory, applies defaults, and pulls secrets from the
// environment. A missing file yields the defaults (memory backend, mock
// embedder) so local runs work without any setup.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)
	LoadSecrets(&cfg)

	configDir := filepath.Dir(path)
	cfg.Backend.Memory.IndexPath = expandPath(cfg.Backend.Memory.IndexPath, configDir)
	cfg.Ingest.SourceDir = expandPath(cfg.Ingest.SourceDir, configDir)
	cfg.Ingest.ManifestPath = expandPath(cfg.Ingest.ManifestPath, configDir)
	return &cfg, nil
}

// LoadSecrets fills API keys from the environment. Call godotenv.Load first
// when .env support is wanted; keys never live in the config file.
func LoadSecrets(cfg *Config) {
	cfg.Backend.Pinecone.APIKey = os.Getenv("PINECONE_API_KEY")
	cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
}

// Validate checks the configuration for fatal problems. It returns a
// *ConfigError describing the first one found.
func Validate(cfg *Config) error {
	if cfg.Ingest.ChunkSize <= 0 {
		return &ConfigError{Field: "ingest.chunk_size", Reason: "must be positive"}
	}
	if cfg.Ingest.ChunkOverlap < 0 {
		return &ConfigError{Field: "ingest.chunk_overlap", Reason: "must be non-negative"}
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return &ConfigError{
			Field:  "ingest.chunk_overlap",
			Reason: fmt.Sprintf("overlap %d must be smaller than chunk size %d", cfg.Ingest.ChunkOverlap, cfg.Ingest.ChunkSize),
		}
	}
	if cfg.Embedding.Dimensions <= 0 {
		return &ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	switch cfg.Backend.Type {
	case "pinecone":
		if cfg.Backend.Pinecone.APIKey == "" {
			return &ConfigError{Field: "backend.pinecone", Reason: "PINECONE_API_KEY environment variable is not set"}
		}
		if cfg.Backend.Pinecone.IndexHost == "" {
			return &ConfigError{Field: "backend.pinecone.index_host", Reason: "index host is required"}
		}
	case "memory":
		// nothing to validate
	default:
		return &ConfigError{Field: "backend.type", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend.Type)}
	}
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return &ConfigError{Field: "embedding", Reason: "OPENAI_API_KEY environment variable is not set"}
		}
	case "mock":
		// nothing to validate
	default:
		return &ConfigError{Field: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Embedding.Provider)}
	}
	return nil
}

// ValidateSourceDir checks that the ingest source directory exists.
// Separate from Validate because only ingestion needs it.
func ValidateSourceDir(cfg *Config) error {
	dir := cfg.Ingest.SourceDir
	if dir == "" {
		return &ConfigError{Field: "ingest.source_dir", Reason: "source directory is not set"}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Field: "ingest.source_dir", Reason: fmt.Sprintf("directory %q does not exist", dir)}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
