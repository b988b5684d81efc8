package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/batch"
	changepkg "github.com/mafzaal/letstalk-index/internal/app/change"
	"github.com/mafzaal/letstalk-index/internal/app/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	"github.com/mafzaal/letstalk-index/internal/app/embedding"
	"github.com/mafzaal/letstalk-index/internal/app/loader"
	"github.com/mafzaal/letstalk-index/internal/app/vectorstore"
)

func writePost(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write post: %v", err)
	}
}

func newTestEngine() *Engine {
	provider := embedding.NewDeterministicProvider(4)
	return New(loader.New(nil), changepkg.New(nil), chunk.New(provider, nil), nil, service.NewFakeClock(time.Unix(0, 0)), nil)
}

func newTestVectorManager(t *testing.T) *vectorstore.Manager {
	t.Helper()
	backend := vectorstore.BackendConfig{LocalPath: filepath.Join(t.TempDir(), "vectors.db"), Collection: "posts"}
	return vectorstore.NewManager(backend, embedding.NewDeterministicProvider(4), batch.Options{BatchSize: 10, MaxConcurrency: 2}, nil)
}

func TestRunEmptyCorpusSucceeds(t *testing.T) {
	dataDir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dataDir

	e := newTestEngine()
	manager := newTestVectorManager(t)

	run := e.Run(context.Background(), "job-1", cfg, filepath.Join(t.TempDir(), "ledger.csv"), manager)
	if run.Status != report.StatusSuccess {
		t.Fatalf("expected success on empty corpus, got %v: %v", run.Status, run.Errors)
	}
	if run.Counts.Loaded != 0 {
		t.Fatalf("expected 0 loaded documents, got %d", run.Counts.Loaded)
	}
}

func TestRunNewDocumentsAreIndexed(t *testing.T) {
	dataDir := t.TempDir()
	writePost(t, dataDir, "a/index.md", "---\npublished: true\n---\nHello from document A with enough content to chunk.")
	writePost(t, dataDir, "b/index.md", "---\npublished: true\n---\nHello from document B with different content entirely.")

	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.UseChunking = true

	e := newTestEngine()
	manager := newTestVectorManager(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.csv")

	run := e.Run(context.Background(), "job-1", cfg, ledgerPath, manager)
	if run.Status != report.StatusSuccess {
		t.Fatalf("expected success, got %v: %v", run.Status, run.Errors)
	}
	if run.Counts.Loaded != 2 {
		t.Fatalf("expected 2 loaded documents, got %d", run.Counts.Loaded)
	}
	if run.Counts.New != 2 {
		t.Fatalf("expected 2 new documents, got %d", run.Counts.New)
	}
}

func TestRunModifyThenDeleteFlowsThroughChangeSets(t *testing.T) {
	dataDir := t.TempDir()
	writePost(t, dataDir, "a/index.md", "---\npublished: true\n---\nOriginal content for document A.")
	writePost(t, dataDir, "b/index.md", "---\npublished: true\n---\nContent for document B that stays put.")

	cfg := config.Default()
	cfg.DataDir = dataDir

	e := newTestEngine()
	manager := newTestVectorManager(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.csv")

	first := e.Run(context.Background(), "job-1", cfg, ledgerPath, manager)
	if first.Status != report.StatusSuccess {
		t.Fatalf("expected first run success, got %v: %v", first.Status, first.Errors)
	}

	writePost(t, dataDir, "a/index.md", "---\npublished: true\n---\nChanged content for document A, now longer.")
	second := e.Run(context.Background(), "job-1", cfg, ledgerPath, manager)
	if second.Status != report.StatusSuccess {
		t.Fatalf("expected second run success, got %v: %v", second.Status, second.Errors)
	}
	if second.Counts.Modified != 1 {
		t.Fatalf("expected 1 modified document, got %d", second.Counts.Modified)
	}

	if err := os.RemoveAll(filepath.Join(dataDir, "b")); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	third := e.Run(context.Background(), "job-1", cfg, ledgerPath, manager)
	if third.Status != report.StatusSuccess {
		t.Fatalf("expected third run success, got %v: %v", third.Status, third.Errors)
	}
	if third.Counts.Deleted != 1 {
		t.Fatalf("expected 1 deleted source, got %d", third.Counts.Deleted)
	}
}
