package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	store, err := OpenBoltStore(path, "posts")
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreAddAndRemoveBySource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Chunk: chunk.Chunk{Source: "a.md", Ordinal: 0, Content: "one"}, Embedding: []float32{0.1, 0.2}},
		{Chunk: chunk.Chunk{Source: "a.md", Ordinal: 1, Content: "two"}, Embedding: []float32{0.3, 0.4}},
		{Chunk: chunk.Chunk{Source: "b.md", Ordinal: 0, Content: "three"}, Embedding: []float32{0.5, 0.6}},
	}
	if err := store.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := store.RemoveBySource(ctx, "a.md")
	if err != nil {
		t.Fatalf("remove by source: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 chunks removed for a.md, got %d", removed)
	}

	removed, err = store.RemoveBySource(ctx, "b.md")
	if err != nil {
		t.Fatalf("remove by source: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 chunk removed for b.md, got %d", removed)
	}
}

func TestBoltStoreValidateHealth(t *testing.T) {
	store := openTestStore(t)
	if err := store.ValidateHealth(context.Background()); err != nil {
		t.Fatalf("expected healthy store, got %v", err)
	}
}

func TestBoltStoreRemoveBySourceDoesNotAffectOtherPrefixes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Chunk: chunk.Chunk{Source: "a.md", Ordinal: 0}},
		{Chunk: chunk.Chunk{Source: "a-extended.md", Ordinal: 0}},
	}
	if err := store.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := store.RemoveBySource(ctx, "a.md")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 removed (not the a-extended.md sibling), got %d", removed)
	}
}
