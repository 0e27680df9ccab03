// Package model provides data models for the NPHIES retrieval assistant.
package model

// Chunk represents a contiguous window of the knowledge base text.
type Chunk struct {
	Text string `json:"text"`
	// SourceOffset is the rune index of the chunk's first character in the corpus.
	SourceOffset int `json:"source_offset"`
}

// Hit is a retrieved chunk with its cosine distance to the query vector.
type Hit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// ChunkSource describes a chunk that contributed to a generated answer.
type ChunkSource struct {
	SourceOffset int     `json:"source_offset"`
	Distance     float64 `json:"distance"`
	Preview      string  `json:"preview"`
}
