package rag

import "strings"

// DefaultChunkSize is the fixed chunk length in bytes used by the upload
// endpoints.
const DefaultChunkSize = 500

// Chunk is one fixed-size slice of a document. Index is the slice's position
// over the whole document, counted before blank-only slices are dropped, so
// stored indexes keep their gaps.
type Chunk struct {
	Index int
	Text  string
}

// SplitContent splits content into fixed-size chunks. Slicing is byte-based,
// matching the simple character splitter of the upload pipeline; chunks that
// contain only whitespace are dropped. A non-positive chunkSize falls back to
// DefaultChunkSize.
func SplitContent(content string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunks := []Chunk{}
	for i, offset := 0, 0; offset < len(content); i, offset = i+1, offset+chunkSize {
		end := offset + chunkSize
		if end > len(content) {
			end = len(content)
		}
		text := content[offset:end]
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: i, Text: text})
	}
	return chunks
}
