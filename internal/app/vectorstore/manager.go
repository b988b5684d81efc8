package vectorstore

import (
	"context"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/mafzaal/letstalk-index/internal/app/batch"
	"github.com/mafzaal/letstalk-index/internal/app/domain/change"
	"github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/internal/app/embedding"
	"github.com/mafzaal/letstalk-index/pkg/errors"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// BackendConfig selects and configures the underlying Store.
type BackendConfig struct {
	// RedisAddr non-empty selects the remote Redis-backed store; otherwise
	// the local bbolt store rooted at LocalPath is used.
	RedisAddr  string
	RedisDB    int
	LocalPath  string
	Collection string
}

// ChunkFn produces chunks for a document, used by IncrementalUpdate.
type ChunkFn func(doc document.Document) ([]chunk.Chunk, error)

// Manager owns the vector collection lifecycle and is the sole component
// permitted to mutate it.
type Manager struct {
	backend  BackendConfig
	provider embedding.Provider
	store    Store
	batch    batch.Options
	log      *logger.Logger
}

// NewManager returns a Manager. Call OpenOrCreate before using it.
func NewManager(backend BackendConfig, provider embedding.Provider, batchOpts batch.Options, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("vectorstore")
	}
	return &Manager{backend: backend, provider: provider, batch: batchOpts, log: log}
}

// OpenOrCreate opens the configured backend. If forceRecreate, an existing
// local collection is dropped first (the file is removed, the bucket is
// recreated empty); a remote collection is truncated via a scan+delete over
// the whole collection prefix. A store opened by an earlier call is closed
// first.
func (m *Manager) OpenOrCreate(forceRecreate bool) error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.log.Warnf("close previously opened store: %v", err)
		}
		m.store = nil
	}
	if m.backend.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: m.backend.RedisAddr, DB: m.backend.RedisDB})
		store := NewRedisStore(client, m.backend.Collection)
		if forceRecreate {
			if err := store.Clear(context.Background()); err != nil {
				return errors.Store("truncate existing remote collection", err)
			}
		}
		m.store = store
		return nil
	}

	if forceRecreate {
		if err := os.Remove(m.backend.LocalPath); err != nil && !os.IsNotExist(err) {
			return errors.Store("remove existing local collection", err)
		}
	}
	store, err := OpenBoltStore(m.backend.LocalPath, m.backend.Collection)
	if err != nil {
		return err
	}
	m.store = store
	return nil
}

// Close releases the underlying store's resources.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Add embeds and upserts chunks through the Batch Processor.
func (m *Manager) Add(ctx context.Context, chunks []chunk.Chunk) (added int, failedSources map[string]struct{}, err error) {
	if len(chunks) == 0 {
		return 0, nil, nil
	}

	outcome := batch.Process(ctx, chunks, m.batch, func(ctx context.Context, batchChunks []chunk.Chunk) error {
		texts := make([]string, len(batchChunks))
		for i, c := range batchChunks {
			texts[i] = c.Content
		}
		vectors, err := m.provider.Embed(ctx, texts)
		if err != nil {
			return err
		}
		entries := make([]Entry, len(batchChunks))
		for i, c := range batchChunks {
			entries[i] = Entry{Chunk: c, Embedding: vectors[i]}
		}
		return m.store.Add(ctx, entries)
	})

	failedSources = map[string]struct{}{}
	for _, f := range outcome.Failed {
		failedSources[f.Item.Source] = struct{}{}
	}
	return len(outcome.Succeeded), failedSources, nil
}

// RemoveBySource removes every chunk for source.
func (m *Manager) RemoveBySource(ctx context.Context, source string) (int, error) {
	return m.store.RemoveBySource(ctx, source)
}

// IncrementalUpdateResult reports what IncrementalUpdate did.
type IncrementalUpdateResult struct {
	RemovedCount  int
	AddedCount    int
	FailedSources []string
}

// IncrementalUpdate removes chunks for deleted and modified sources, then
// (re)adds chunks for new and modified sources. It is not globally atomic:
// the Pipeline Engine is responsible for the surrounding ledger-backup
// transaction described alongside it.
func (m *Manager) IncrementalUpdate(ctx context.Context, docs map[string]document.Document, sets change.Set, chunkFn ChunkFn) (IncrementalUpdateResult, error) {
	var result IncrementalUpdateResult

	toRemove := append(append([]string{}, sets.DeletedSource...), sets.Modified...)
	for _, source := range toRemove {
		n, err := m.RemoveBySource(ctx, source)
		if err != nil {
			result.FailedSources = append(result.FailedSources, source)
			m.log.WithField("source", source).Warnf("remove by source failed: %v", err)
			continue
		}
		result.RemovedCount += n
	}

	toAdd := append(append([]string{}, sets.New...), sets.Modified...)
	failed := map[string]struct{}{}
	for _, source := range toAdd {
		doc, ok := docs[source]
		if !ok {
			continue
		}
		chunks, err := chunkFn(doc)
		if err != nil {
			failed[source] = struct{}{}
			m.log.WithField("source", source).Warnf("chunk production failed: %v", err)
			continue
		}
		added, failedFromBatch, err := m.Add(ctx, chunks)
		if err != nil {
			failed[source] = struct{}{}
			continue
		}
		result.AddedCount += added
		for src := range failedFromBatch {
			failed[src] = struct{}{}
		}
	}
	for src := range failed {
		result.FailedSources = append(result.FailedSources, src)
	}

	return result, nil
}

// ValidateHealth performs a cheap reachability probe against the backend.
func (m *Manager) ValidateHealth(ctx context.Context) error {
	if m.store == nil {
		return errors.Store("vector store not opened", nil)
	}
	return m.store.ValidateHealth(ctx)
}
