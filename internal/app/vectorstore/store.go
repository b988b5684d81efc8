// Package vectorstore owns the vector collection: the sole component
// permitted to mutate it. Two backends are provided — a remote Redis-backed
// store and a local on-disk bbolt store — behind a common Store interface.
package vectorstore

import (
	"context"

	"github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
)

// Store is the minimal vector-collection contract the Manager drives.
type Store interface {
	// Add upserts chunks, each already paired with its embedding.
	Add(ctx context.Context, entries []Entry) error
	// RemoveBySource deletes every chunk whose parent source matches.
	RemoveBySource(ctx context.Context, source string) (removed int, err error)
	// ValidateHealth performs a cheap reachability probe.
	ValidateHealth(ctx context.Context) error
	// Close releases any held connections/handles.
	Close() error
}

// Entry pairs a chunk with its embedding for storage.
type Entry struct {
	Chunk     chunk.Chunk
	Embedding []float32
}
