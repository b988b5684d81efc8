// Package chunk defines the ephemeral Chunk value produced by the chunker
// and consumed by the vector-store manager. Chunks are never persisted
// outside the vector store.
package chunk

// Chunk is a bounded substring of a document, paired with a copy of the
// parent document's metadata and its ordinal position within the parent.
type Chunk struct {
	Content  string
	Source   string
	Ordinal  int
	Metadata map[string]string
}
