// Package embedding defines the pluggable text-to-vector provider used by
// the semantic chunker and the vector-store manager.
package embedding

import "context"

// Provider turns text into fixed-width float32 vectors.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
