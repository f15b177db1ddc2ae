// Package models defines core data structures for chunks, retrieval matches, and answers.
package models

import "fmt"

// Chunk is a bounded substring of a source document, the unit of embedding
// and retrieval. Chunks from the same document share Source and TotalChunks.
type Chunk struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// ID returns the deterministic vector-store ID for the chunk. The same
// source and index always map to the same ID, so re-ingesting a document
// overwrites its previous vectors instead of duplicating them.
func (c *Chunk) ID() string {
	return ChunkID(c.Source, c.ChunkIndex)
}

// ChunkID builds a chunk ID from a source name and chunk index.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", source, index)
}

// ChunkMetadata is the metadata stored alongside each vector in the store.
// It carries everything needed to reconstruct a RetrievalMatch at query time.
type ChunkMetadata struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}
