// Package main is the ronbun CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/answer"
	"github.com/hyperjump/ronbun/internal/cli"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/ingest"
	"github.com/hyperjump/ronbun/internal/manifest"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/retrieve"
	"github.com/hyperjump/ronbun/internal/server"
	"github.com/hyperjump/ronbun/internal/store"
	"github.com/hyperjump/ronbun/internal/watcher"
	"github.com/hyperjump/ronbun/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ronbun/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "ronbun server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Best effort: a .env in the working directory supplies API keys during
	// development. Secrets are only ever read from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "context":
		runContext()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ronbun version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Ingest.Watch {
		if cfg.Ingest.SourceDir == "" {
			logger.Fatal("watch enabled but ingest.source_dir is not set")
		}
		ingestSvc := components.Ingest
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(cfg.Ingest.SourceDir, cfg.Ingest.Extensions, func(path string) {
			if _, err := ingestSvc.UploadFile(context.Background(), path, false); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srvOpts := []server.Option{}
	if components.Manifest != nil {
		srvOpts = append(srvOpts, server.WithManifest(components.Manifest))
	}
	srv := server.NewServer(components.Answers, components.Store, cfg, logger, srvOpts...)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutputFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "json":
		return cli.OutputJSON, nil
	case "text":
		return cli.OutputText, nil
	default:
		return cli.OutputText, fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer locally without a running server)")
	k := fs.Int("k", 0, "number of context chunks to consider (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun ask [flags] <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: ronbun ask [flags] <question>")
		os.Exit(1)
	}
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		resp, err := askViaHTTP(*serverURL, question, *k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		result := &models.AnswerResult{Answer: resp.Answer, State: resp.State}
		if err := cli.WriteAnswer(os.Stdout, result, resp.Context, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	result, matches := components.Answers.Ask(context.Background(), question, *k)
	if err := cli.WriteAnswer(os.Stdout, result, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = retrieve locally without a running server)")
	k := fs.Int("k", 0, "number of context chunks (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun context [flags] <query>")
		os.Exit(1)
	}
	query := buildQuestion(fs.Args())
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		resp, err := queryViaHTTP(*serverURL, query, *k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Context retrieval failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteContext(os.Stdout, resp.Chunks, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	matches, err := components.Answers.Context(context.Background(), query, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Context retrieval failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteContext(os.Stdout, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	directory := fs.String("directory", "", "directory to ingest (default: ingest.source_dir from config)")
	file := fs.String("file", "", "single file to ingest")
	chunkSize := fs.Int("chunk-size", 0, "chunk size override")
	chunkOverlap := fs.Int("chunk-overlap", -1, "chunk overlap override")
	uploadDelay := fs.Float64("upload-delay", -1, "seconds to wait between uploads override")
	batchSize := fs.Int("batch-size", 0, "chunks per embedding batch override")
	skipOnError := fs.Bool("skip-on-error", false, "continue past files that fail to ingest")
	force := fs.Bool("force", false, "re-ingest files even when unchanged since the last run")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *chunkSize > 0 {
		cfg.Ingest.ChunkSize = *chunkSize
	}
	if *chunkOverlap >= 0 {
		cfg.Ingest.ChunkOverlap = *chunkOverlap
	}
	if *uploadDelay >= 0 {
		cfg.Ingest.UploadDelaySeconds = *uploadDelay
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	if *skipOnError {
		cfg.Ingest.SkipOnError = true
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if *file != "" {
		summary, err := components.Ingest.UploadFile(ctx, *file, *force)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
			os.Exit(1)
		}
		printDocumentSummary(summary)
		return
	}

	dir := *directory
	if dir == "" {
		dir = cfg.Ingest.SourceDir
	}
	if dir == "" {
		fmt.Println("Usage: ronbun ingest --directory <dir> | --file <file>")
		os.Exit(1)
	}
	run, err := components.Ingest.UploadDirectory(ctx, dir, cfg.Ingest.SkipOnError, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d document(s): %d chunks uploaded, %d failed\n",
		len(run.Documents), run.Succeeded(), run.Failed())
	for _, doc := range run.Documents {
		printDocumentSummary(&doc)
	}
}

func printDocumentSummary(s *ingest.DocumentSummary) {
	if s.Skipped {
		fmt.Printf("  %s: unchanged, skipped\n", s.Source)
		return
	}
	if s.Error != "" {
		fmt.Printf("  %s: failed: %s\n", s.Source, s.Error)
		return
	}
	fmt.Printf("  %s: %d/%d chunks uploaded", s.Source, s.Succeeded, s.TotalChunks)
	if s.Failed > 0 {
		fmt.Printf(" (%d failed)", s.Failed)
	}
	fmt.Println()
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = inspect local backend directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		cfg, logger, components := mustInitialize(*configPath)
		defer logger.Sync()
		defer components.Close()

		ctx := context.Background()
		stats, err := components.Store.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Store stats failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"vectors":    stats.VectorCount,
			"dimensions": stats.Dimensions,
			"config": map[string]interface{}{
				"backend":             cfg.Backend.Type,
				"embedding_provider":  cfg.Embedding.Provider,
				"embedding_model":     cfg.Embedding.Model,
				"top_k":               cfg.Retrieval.TopK,
				"relevance_threshold": cfg.Retrieval.RelevanceThreshold,
				"chunk_size":          cfg.Ingest.ChunkSize,
				"chunk_overlap":       cfg.Ingest.ChunkOverlap,
			},
		}
		if components.Manifest != nil {
			if docs, chunks, err := components.Manifest.Counts(ctx); err == nil {
				status["documents"] = docs
				status["uploaded_chunks"] = chunks
			}
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		printStatusText(status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printStatusText(status map[string]interface{}) {
	fmt.Printf("vectors:          %v   # vectors in the store\n", status["vectors"])
	fmt.Printf("dimensions:       %v\n", status["dimensions"])
	if docs, ok := status["documents"]; ok {
		fmt.Printf("documents:        %v   # documents recorded in the manifest\n", docs)
	}
	if chunks, ok := status["uploaded_chunks"]; ok {
		fmt.Printf("uploaded_chunks:  %v\n", chunks)
	}
	if cfg, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println()
		fmt.Println("# configuration")
		for _, key := range []string{"backend", "embedding_provider", "embedding_model", "top_k", "relevance_threshold", "chunk_size", "chunk_overlap"} {
			if v, present := cfg[key]; present {
				fmt.Printf("%-20s %v\n", key+":", v)
			}
		}
	}
}

func askViaHTTP(serverURL, question string, k int) (*models.AskResponse, error) {
	body, err := json.Marshal(map[string]interface{}{"question": question, "k": k})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func queryViaHTTP(serverURL, query string, k int) (*models.QueryResponse, error) {
	body, err := json.Marshal(map[string]interface{}{"query": query, "k": k})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}

// mustInitialize loads config, builds a logger and the component graph, or
// exits. Shared by the direct-mode subcommands.
func mustInitialize(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

// Components holds initialized services.
type Components struct {
	Store    store.VectorStore
	Embedder embedding.Embedder
	Manifest *manifest.Store
	Answers  *answer.Service
	Ingest   *ingest.Service
}

func (c *Components) Close() {
	if c.Manifest != nil {
		_ = c.Manifest.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	vs, err := store.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			_ = vs.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	default:
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	var mf *manifest.Store
	if cfg.Ingest.ManifestPath != "" {
		mf, err = manifest.Open(cfg.Ingest.ManifestPath)
		if err != nil {
			_ = embedder.Close()
			_ = vs.Close()
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
	}

	retriever := retrieve.New(embedder, vs, cfg.Retrieval.RelevanceThreshold,
		retrieve.WithLogger(logger))
	answers := answer.NewService(retriever, cfg.Retrieval.TopK,
		answer.WithLogger(logger))

	ingestOpts := []ingest.Option{ingest.WithLogger(logger)}
	if mf != nil {
		ingestOpts = append(ingestOpts, ingest.WithManifest(mf))
	}
	extractor := extract.NewExtractor(extract.WithLogger(logger))
	ingestSvc, err := ingest.NewService(extractor, embedder, vs, cfg.Ingest, ingestOpts...)
	if err != nil {
		if mf != nil {
			_ = mf.Close()
		}
		_ = embedder.Close()
		_ = vs.Close()
		return nil, fmt.Errorf("failed to initialize ingestion: %w", err)
	}

	return &Components{
		Store:    vs,
		Embedder: embedder,
		Manifest: mf,
		Answers:  answers,
		Ingest:   ingestSvc,
	}, nil
}

func printUsage() {
	fmt.Println(`ronbun - Question answering over a corpus of scientific papers

Usage:
  ronbun server [flags]            Start the HTTP API server
  ronbun ask [flags] <question>    Ask a question against the corpus
  ronbun context [flags] <query>   Show the retrieved context for a query
  ronbun ingest [flags]            Ingest documents into the vector store
  ronbun status [flags]            Show backend and corpus status
  ronbun version                   Show version
  ronbun help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ronbun/config.yaml)
  --debug            Enable debug logging

Ask/Context Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run locally without a server.
  --k int            Number of context chunks to consider (0 = config default)
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string        Config file path
  --directory string     Directory to ingest (default: ingest.source_dir from config)
  --file string          Single file to ingest
  --chunk-size int       Chunk size override
  --chunk-overlap int    Chunk overlap override
  --upload-delay float   Seconds between uploads override
  --batch-size int       Chunks per embedding batch override
  --skip-on-error        Continue past files that fail to ingest
  --force                Re-ingest files even when unchanged

Status Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for local mode.
  --output string    Output format: text or json (default: text)

Examples:
  ronbun server
  ronbun ingest --directory ./papers
  ronbun ingest --file paper.pdf --force
  ronbun ask "what fold rate was measured at 300K?"
  ronbun ask --output json "what buffer was used?"
  ronbun context "annealing temperature"
  ronbun status --output json`)
}
