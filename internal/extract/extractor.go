// Package extract provides text extraction from corpus documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor extracts plain text from document files. PDF pages that fail to
// extract are logged and skipped; whatever text was recovered is returned.
type Extractor struct {
	logger *zap.Logger // optional; when set, logs per-page failures
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for per-page extraction warnings.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text content.
// PDF text is extracted page by page; plain text files (.txt, .md, .rst)
// are returned as-is (UTF-8 sanitized). Unknown extensions are treated as
// plain text. Returns an error only when the file itself cannot be read or
// parsed; partial extraction returns the recovered text and no error.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext, filepath.Base(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"); name is used for logging.
func (e *Extractor) ExtractBytes(content []byte, ext, name string) (string, error) {
	switch ext {
	case ".pdf":
		return e.extractPDF(content, name)
	default:
		return extractPlain(content)
	}
}
