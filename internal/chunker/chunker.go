// Package chunker splits document text into overlapping, boundary-aware chunks.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New for degenerate size/overlap combinations
// that would loop forever or produce zero-progress chunks.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

const (
	// paragraphRadius is how far around the nominal cut a paragraph break may be.
	paragraphRadius = 100
	// sentenceRadius is how far around the nominal cut a sentence end may be.
	sentenceRadius = 50
)

var paragraphBreak = []rune("\n\n")

// Cuts after the terminator and its trailing space, so the boundary text
// stays with the chunk it closes.
var sentenceTerminators = [][]rune{[]rune(". "), []rune("? "), []rune("! ")}

// Chunker splits text into overlapping character-window chunks, snapping
// window ends to paragraph or sentence boundaries when one is nearby.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a chunker. chunkSize must be positive and strictly greater
// than overlap; overlap must be non-negative.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text into ordered chunk texts. Empty text yields no chunks.
// The sequence covers every character of the input; consecutive chunks share
// approximately overlap characters (the shared region is verbatim), and each
// chunk is at most chunkSize+paragraphRadius characters long. Sizes and
// offsets count runes, not bytes, so a cut never lands inside a multi-byte
// character. Deterministic for identical input.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	spans := c.spans(runes)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = string(runes[sp.start:sp.end])
	}
	return chunks
}

// span is a half-open [start, end) rune range into the source text.
type span struct {
	start, end int
}

func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}
	var out []span
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end >= n {
			out = append(out, span{start, n})
			break
		}
		end = c.snap(runes, start, end)
		out = append(out, span{start, end})
		if end >= n {
			break
		}
		// Back up by overlap so the region is shared verbatim with the next
		// chunk. The snapped end always lies past start, so clamping to
		// start+1 keeps progress even when overlap swallows a short chunk.
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// snap moves the nominal cut position end to a natural boundary: the nearest
// paragraph break within ±paragraphRadius, else the nearest sentence
// terminator within ±sentenceRadius, else end unchanged. The returned cut is
// always in (start, len(runes)].
func (c *Chunker) snap(runes []rune, start, end int) int {
	if cut, ok := nearestCut(runes, start, end, paragraphBreak, paragraphRadius); ok {
		return cut
	}
	best := -1
	for _, term := range sentenceTerminators {
		cut, ok := nearestCut(runes, start, end, term, sentenceRadius)
		if !ok {
			continue
		}
		if best == -1 || abs(cut-end) < abs(best-end) {
			best = cut
		}
	}
	if best != -1 {
		return best
	}
	return end
}

// nearestCut finds the occurrence of sep whose cut position (index past the
// separator) is nearest to end, considering only cuts within ±radius of end
// that still lie inside (start, len(runes)]. The earlier occurrence wins ties.
func nearestCut(runes []rune, start, end int, sep []rune, radius int) (int, bool) {
	lo := end - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(runes) {
		hi = len(runes)
	}
	best := -1
	for i := lo; i+len(sep) <= hi; i++ {
		if !sepAt(runes, i, sep) {
			continue
		}
		cut := i + len(sep)
		if cut <= start {
			continue
		}
		if best == -1 || abs(cut-end) < abs(best-end) {
			best = cut
		}
		// Occurrences past end only get farther from it.
		if cut >= end {
			break
		}
	}
	return best, best != -1
}

func sepAt(runes []rune, i int, sep []rune) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
