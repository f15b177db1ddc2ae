// Package ingest drives document upload: extract text, chunk it, embed each
// chunk and upsert the vectors into the configured store. Pacing between
// uploads is deliberate so remote embedding and vector APIs are not hammered.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/chunker"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/manifest"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/store"
)

// ErrNoText is returned when extraction produces no usable text for a file.
var ErrNoText = errors.New("no text extracted")

// DocumentSummary reports the outcome of ingesting one document. Error is
// set when the document failed outright (extraction error, empty text) and a
// skip-on-error run kept going.
type DocumentSummary struct {
	Source      string
	TotalChunks int
	Succeeded   int
	Failed      int
	Skipped     bool
	RunID       string
	Error       string
}

// DirectorySummary aggregates per-document results for a directory run.
type DirectorySummary struct {
	Documents []DocumentSummary
	RunID     string
}

// Succeeded returns the total number of chunks uploaded across all documents.
func (d *DirectorySummary) Succeeded() int {
	n := 0
	for _, doc := range d.Documents {
		n += doc.Succeeded
	}
	return n
}

// Failed returns the total number of failed chunk uploads across all documents.
func (d *DirectorySummary) Failed() int {
	n := 0
	for _, doc := range d.Documents {
		n += doc.Failed
	}
	return n
}

// Service ingests documents into the vector store.
type Service struct {
	extractor *extract.Extractor
	embedder  embedding.Embedder
	store     store.VectorStore
	chunker   *chunker.Chunker
	manifest  *manifest.Store
	cfg       config.IngestConfig
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithManifest enables manifest bookkeeping: unchanged files are skipped and
// per-document outcomes are recorded.
func WithManifest(m *manifest.Store) Option {
	return func(s *Service) { s.manifest = m }
}

// withSleep overrides the pacing function. Test hook.
func withSleep(fn func(time.Duration)) Option {
	return func(s *Service) { s.sleep = fn }
}

// NewService creates an ingestion service.
func NewService(extractor *extract.Extractor, embedder embedding.Embedder, vs store.VectorStore, cfg config.IngestConfig, opts ...Option) (*Service, error) {
	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	s := &Service{
		extractor: extractor,
		embedder:  embedder,
		store:     vs,
		chunker:   ch,
		cfg:       cfg,
		logger:    zap.NewNop(),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadText chunks, embeds and uploads raw text under the given source name.
// Chunk IDs are derived from the source and chunk index, so re-uploading the
// same document overwrites its previous vectors instead of duplicating them.
func (s *Service) UploadText(ctx context.Context, text, source string) (*DocumentSummary, error) {
	summary := &DocumentSummary{Source: source, RunID: uuid.NewString()}

	text = strings.TrimSpace(text)
	if text == "" {
		return summary, fmt.Errorf("%s: %w", source, ErrNoText)
	}

	chunks := s.chunker.Chunk(text)
	summary.TotalChunks = len(chunks)

	s.logger.Info("uploading document",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("batch_size", s.batchSize()))

	for start := 0; start < len(chunks); start += s.batchSize() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := start + s.batchSize()
		if end > len(chunks) {
			end = len(chunks)
		}
		failed := s.uploadBatch(ctx, chunks, start, end, source, len(chunks), summary)

		// Pacing follows every upload, the final one included; the doubled
		// delay only applies to per-chunk failures.
		s.pause(failed && s.batchSize() == 1)
	}

	s.logger.Info("document uploaded",
		zap.String("source", source),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// uploadBatch embeds chunks[start:end] in one backend call and upserts them
// together. With batch size 1 this degenerates to the per-chunk path. Returns
// whether the batch failed, so the caller can pace accordingly.
func (s *Service) uploadBatch(ctx context.Context, chunks []string, start, end int, source string, total int, summary *DocumentSummary) bool {
	batch := chunks[start:end]

	vectors, err := s.embedder.EmbedBatch(ctx, batch)
	if err != nil {
		s.logger.Warn("embedding failed",
			zap.String("source", source),
			zap.Int("from_chunk", start),
			zap.Error(err))
		summary.Failed += len(batch)
		return true
	}

	records := make([]store.Record, len(batch))
	for i, text := range batch {
		records[i] = store.Record{
			ID:     models.ChunkID(source, start+i),
			Values: vectors[i],
			Metadata: models.ChunkMetadata{
				Text:        text,
				Source:      source,
				ChunkIndex:  start + i,
				TotalChunks: total,
			},
		}
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		s.logger.Warn("upsert failed",
			zap.String("source", source),
			zap.Int("from_chunk", start),
			zap.Error(err))
		summary.Failed += len(batch)
		return true
	}

	summary.Succeeded += len(batch)
	return false
}

// UploadFile extracts, chunks and uploads a single file. When a manifest is
// configured and force is false, files already ingested from the same path
// with the same mtime and size are skipped.
func (s *Service) UploadFile(ctx context.Context, path string, force bool) (*DocumentSummary, error) {
	source := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if s.manifest != nil && !force {
		unchanged, err := s.manifest.Unchanged(ctx, source, path, info.ModTime().UnixNano(), info.Size())
		if err != nil {
			return nil, fmt.Errorf("manifest lookup failed for %s: %w", source, err)
		}
		if unchanged {
			s.logger.Info("skipping unchanged document", zap.String("source", source))
			return &DocumentSummary{Source: source, Skipped: true}, nil
		}
	}

	text, err := s.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", source, err)
	}

	summary, err := s.UploadText(ctx, text, source)
	if err != nil {
		return summary, err
	}

	if s.manifest != nil {
		entry := &manifest.Entry{
			Source:      source,
			Path:        path,
			MtimeNS:     info.ModTime().UnixNano(),
			SizeBytes:   info.Size(),
			TotalChunks: summary.TotalChunks,
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			RunID:       summary.RunID,
		}
		if err := s.manifest.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record manifest entry",
				zap.String("source", source), zap.Error(err))
		}
	}
	return summary, nil
}

// UploadDirectory ingests every matching file in dir, in lexicographic order.
// When skipOnError is true, a file that fails to extract or upload is logged
// and the run continues; otherwise the first failure aborts the run.
func (s *Service) UploadDirectory(ctx context.Context, dir string, skipOnError, force bool) (*DirectorySummary, error) {
	paths, err := s.listFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no ingestable files found in %s", dir)
	}

	run := &DirectorySummary{RunID: uuid.NewString()}
	s.logger.Info("starting directory ingestion",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.String("run_id", run.RunID))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		summary, err := s.UploadFile(ctx, path, force)
		if err != nil {
			if !skipOnError {
				return run, fmt.Errorf("ingestion aborted at %s: %w", path, err)
			}
			s.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			if summary == nil {
				summary = &DocumentSummary{Source: filepath.Base(path)}
			}
			// Record the failure so the completion report names the file.
			summary.Error = err.Error()
		}
		summary.RunID = run.RunID
		run.Documents = append(run.Documents, *summary)

		// Longer pause between documents than between chunks.
		if i < len(paths)-1 && !summary.Skipped {
			s.pause(true)
		}
	}
	return run, nil
}

func (s *Service) listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.wantExtension(filepath.Ext(entry.Name())) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Service) wantExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, want := range s.cfg.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (s *Service) batchSize() int {
	if s.cfg.BatchSize < 1 {
		return 1
	}
	return s.cfg.BatchSize
}

// pause sleeps for the configured upload delay, doubled after a failure.
func (s *Service) pause(doubled bool) {
	d := time.Duration(s.cfg.UploadDelaySeconds * float64(time.Second))
	if d <= 0 {
		return
	}
	if doubled {
		d *= 2
	}
	s.sleep(d)
}
