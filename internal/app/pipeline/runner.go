package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/batch"
	changepkg "github.com/mafzaal/letstalk-index/internal/app/change"
	"github.com/mafzaal/letstalk-index/internal/app/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	"github.com/mafzaal/letstalk-index/internal/app/embedding"
	"github.com/mafzaal/letstalk-index/internal/app/loader"
	"github.com/mafzaal/letstalk-index/internal/app/perf"
	"github.com/mafzaal/letstalk-index/internal/app/vectorstore"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// embeddingDimensions is the vector width used whenever a run falls back to
// the deterministic provider (no EMBEDDING_ENDPOINT configured).
const embeddingDimensions = 384

// Runner builds a fresh Engine and vectorstore.Manager from a config
// snapshot and executes one run. Each job keeps its own config snapshot, so
// Runner never caches a Manager across runs: pointing two jobs at the same
// collection with different embedding dimensions must fail loudly rather
// than share stale state.
type Runner struct {
	Clock     service.Clock
	Monitor   *perf.Monitor
	Optimizer *perf.Optimizer
	log       *logger.Logger
}

// NewRunner returns a Runner.
func NewRunner(clock service.Clock, monitor *perf.Monitor, log *logger.Logger) *Runner {
	if clock == nil {
		clock = service.SystemClock{}
	}
	if log == nil {
		log = logger.NewDefault("pipeline-runner")
	}
	return &Runner{Clock: clock, Monitor: monitor, Optimizer: perf.NewOptimizer(), log: log}
}

func buildProvider(cfg config.Config) embedding.Provider {
	endpoint := os.Getenv("EMBEDDING_ENDPOINT")
	if endpoint == "" {
		return embedding.NewDeterministicProvider(embeddingDimensions)
	}
	apiKey := os.Getenv("EMBEDDING_API_KEY")
	return embedding.NewHTTPProvider(endpoint, cfg.EmbeddingModel, apiKey, embeddingDimensions)
}

func buildBackend(cfg config.Config) vectorstore.BackendConfig {
	return vectorstore.BackendConfig{
		RedisAddr:  os.Getenv("VECTORSTORE_REDIS_ADDR"),
		LocalPath:  cfg.DocsPath,
		Collection: cfg.CollectionName,
	}
}

// Run resolves every pipeline collaborator from cfg and executes a single
// end-to-end run for jobID against ledgerPath. The opened vectorstore.Manager
// is closed before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, jobID string, cfg config.Config, ledgerPath string) report.Run {
	provider := buildProvider(cfg)

	batchSize := cfg.BatchSize
	if cfg.AdaptiveChunking && r.Optimizer != nil {
		if availGB, ok := perf.AvailableMemoryGB(); ok {
			batchSize = r.Optimizer.RecommendBatchSize(availGB, cfg.BatchSize)
			r.log.WithField("job_id", jobID).Infof("adaptive batching: available_memory_gb=%.2f batch_size=%d", availGB, batchSize)
		}
	}

	manager := vectorstore.NewManager(buildBackend(cfg), provider, batch.Options{
		BatchSize:           batchSize,
		MaxConcurrency:      cfg.MaxConcurrentOperations,
		PauseBetweenBatches: time.Duration(cfg.BatchPauseSeconds * float64(time.Second)),
	}, r.log)

	if err := manager.OpenOrCreate(cfg.ForceRecreate); err != nil {
		return report.Run{
			JobID:     jobID,
			StartTime: r.Clock.Now(),
			EndTime:   r.Clock.Now(),
			Status:    report.StatusFailure,
			Errors:    []string{err.Error()},
		}
	}
	defer func() {
		if err := manager.Close(); err != nil {
			r.log.WithField("job_id", jobID).Warnf("close vector store: %v", err)
		}
	}()

	engine := NewWithOptimizer(
		loader.New(r.log),
		changepkg.New(r.log),
		chunk.New(provider, r.log),
		r.Monitor,
		r.Optimizer,
		r.Clock,
		r.log,
	)

	return engine.Run(ctx, jobID, cfg, ledgerPath, manager)
}
