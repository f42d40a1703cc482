package models

// Chunk represents a piece of the uploaded text, numbered from 1 in document order
type Chunk struct {
	Content string
	ChunkID int
}

type ChunkEmbedding struct {
	Content   string
	ChunkID   int
	Embedding []float32
}

// SearchResult is a chunk returned by an index lookup
type SearchResult struct {
	Content    string
	ChunkID    int
	Similarity float32
}
