package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mafzaal/letstalk-index/internal/app/batch"
	"github.com/mafzaal/letstalk-index/internal/app/domain/change"
	"github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/internal/app/embedding"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	backend := BackendConfig{LocalPath: filepath.Join(t.TempDir(), "vectors.db"), Collection: "posts"}
	m := NewManager(backend, embedding.NewDeterministicProvider(4), batch.Options{BatchSize: 10, MaxConcurrency: 2}, nil)
	if err := m.OpenOrCreate(false); err != nil {
		t.Fatalf("open or create: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerAddEmbedsAndStores(t *testing.T) {
	m := newTestManager(t)
	chunks := []chunk.Chunk{
		{Source: "a.md", Ordinal: 0, Content: "hello"},
		{Source: "a.md", Ordinal: 1, Content: "world"},
	}
	added, failed, err := m.Add(context.Background(), chunks)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failed sources, got %v", failed)
	}
}

func TestManagerIncrementalUpdateAddsAndRemoves(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	docs := map[string]document.Document{
		"new.md": {Source: "new.md", Content: "brand new content"},
	}
	sets := change.Set{New: []string{"new.md"}, DeletedSource: []string{"gone.md"}}

	chunkFn := func(doc document.Document) ([]chunk.Chunk, error) {
		return []chunk.Chunk{{Source: doc.Source, Ordinal: 0, Content: doc.Content}}, nil
	}

	result, err := m.IncrementalUpdate(ctx, docs, sets, chunkFn)
	if err != nil {
		t.Fatalf("incremental update: %v", err)
	}
	if result.AddedCount != 1 {
		t.Fatalf("expected 1 added, got %d", result.AddedCount)
	}
	if len(result.FailedSources) != 0 {
		t.Fatalf("expected no failures, got %v", result.FailedSources)
	}
}

func TestManagerValidateHealth(t *testing.T) {
	m := newTestManager(t)
	if err := m.ValidateHealth(context.Background()); err != nil {
		t.Fatalf("expected healthy manager, got %v", err)
	}
}
