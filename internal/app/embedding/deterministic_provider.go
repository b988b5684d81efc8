package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DeterministicProvider produces reproducible pseudo-embeddings from a
// seeded hash of each input string, so tests can exercise the semantic
// splitter and vector store without a live embedding service.
type DeterministicProvider struct {
	Dims int
}

// NewDeterministicProvider returns a DeterministicProvider with dims-wide
// vectors (defaulting to 8).
func NewDeterministicProvider(dims int) *DeterministicProvider {
	if dims <= 0 {
		dims = 8
	}
	return &DeterministicProvider{Dims: dims}
}

// Dimensions returns the configured vector width.
func (p *DeterministicProvider) Dimensions() int { return p.Dims }

// Embed returns one deterministic vector per text, derived from an FNV
// hash of the text seeded per dimension.
func (p *DeterministicProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = seededVector(text, p.Dims)
	}
	return out, nil
}

func seededVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for d := 0; d < dims; d++ {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(d)})
		// Map the hash into [-1, 1] so cosine distance behaves sensibly.
		vec[d] = float32(math.Mod(float64(h.Sum32()), 2000)-1000) / 1000
	}
	return vec
}
