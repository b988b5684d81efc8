// Package pipeline orchestrates a single end-to-end run: load, detect
// changes, rebuild or incrementally update the vector store, update the
// ledger, and emit a run report.
package pipeline

import (
	"context"

	changepkg "github.com/mafzaal/letstalk-index/internal/app/change"
	"github.com/mafzaal/letstalk-index/internal/app/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/change"
	chunkdomain "github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/internal/app/domain/ledgerrow"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	"github.com/mafzaal/letstalk-index/internal/app/ledger"
	"github.com/mafzaal/letstalk-index/internal/app/loader"
	"github.com/mafzaal/letstalk-index/internal/app/perf"
	"github.com/mafzaal/letstalk-index/internal/app/vectorstore"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// Mode is the rebuild strategy chosen for a run.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullRebuild Mode = "full_rebuild"
)

// Engine is stateless: every Run call takes its own config snapshot, so
// concurrent runs of different jobs never share mutable engine state.
type Engine struct {
	Loader    *loader.Loader
	Detector  *changepkg.Detector
	Splitter  *chunk.Splitter
	Monitor   *perf.Monitor
	Optimizer *perf.Optimizer
	Clock     service.Clock
	log       *logger.Logger
}

// New returns an Engine wired with its collaborators.
func New(l *loader.Loader, d *changepkg.Detector, s *chunk.Splitter, m *perf.Monitor, clock service.Clock, log *logger.Logger) *Engine {
	return NewWithOptimizer(l, d, s, m, perf.NewOptimizer(), clock, log)
}

// NewWithOptimizer is New with an explicit Optimizer, used by callers that
// share one Optimizer instance across runs (the Runner).
func NewWithOptimizer(l *loader.Loader, d *changepkg.Detector, s *chunk.Splitter, m *perf.Monitor, o *perf.Optimizer, clock service.Clock, log *logger.Logger) *Engine {
	if clock == nil {
		clock = service.SystemClock{}
	}
	if log == nil {
		log = logger.NewDefault("pipeline")
	}
	if o == nil {
		o = perf.NewOptimizer()
	}
	return &Engine{Loader: l, Detector: d, Splitter: s, Monitor: m, Optimizer: o, Clock: clock, log: log}
}

// Run executes one end-to-end pipeline run for jobID using cfg. ledgerPath
// and manager are resolved by the caller: the Runner builds manager from cfg,
// and the Scheduler passes the job's cfg.MetadataCSVPath as ledgerPath.
func (e *Engine) Run(ctx context.Context, jobID string, cfg config.Config, ledgerPath string, manager *vectorstore.Manager) report.Run {
	run := report.Run{JobID: jobID, StartTime: e.Clock.Now()}

	if e.Monitor != nil {
		r := e.Monitor.Start("pipeline_run", 0, nil)
		defer r.Done()
	}

	l := ledger.New(ledgerPath, e.Clock)

	docs, err := e.Loader.Load(loader.Options{
		RootDir:            cfg.DataDir,
		GlobPattern:        cfg.DataDirPattern,
		BlogBaseURL:        cfg.BlogBaseURL,
		IndexOnlyPublished: cfg.IndexOnlyPublished,
		ChecksumAlgorithm:  document.ChecksumAlgorithm(cfg.ChecksumAlgorithm),
	})
	if err != nil {
		run.Status = report.StatusFailure
		run.Errors = append(run.Errors, err.Error())
		run.EndTime = e.Clock.Now()
		return run
	}
	run.Counts.Loaded = len(docs)

	ledgerRows, err := l.Load()
	if err != nil {
		run.Status = report.StatusFailure
		run.Errors = append(run.Errors, err.Error())
		run.EndTime = e.Clock.Now()
		return run
	}
	if _, err := l.Backup(); err != nil {
		e.log.WithField("job_id", jobID).Warnf("ledger backup failed: %v", err)
	}

	docByExternal := make(map[string]document.Document, len(docs))
	for _, d := range docs {
		docByExternal[d.Source] = d
	}

	sets := e.Detector.Detect(docs, ledgerRows)
	run.Counts.New = len(sets.New)
	run.Counts.Modified = len(sets.Modified)
	run.Counts.Deleted = len(sets.DeletedSource)

	mode := decideMode(cfg, sets, len(ledgerRows))

	chunkSize, chunkOverlap := cfg.ChunkSize, cfg.ChunkOverlap
	if cfg.AdaptiveChunking && e.Optimizer != nil {
		lengths := make([]int, 0, len(docs))
		for _, d := range docs {
			lengths = append(lengths, d.ContentLength)
		}
		chunkSize, chunkOverlap = e.Optimizer.RecommendChunkParameters(lengths)
		e.log.WithField("job_id", jobID).Infof("adaptive chunking: chunk_size=%d chunk_overlap=%d", chunkSize, chunkOverlap)
	}

	params := chunk.Params{
		ChunkSize:                         chunkSize,
		ChunkOverlap:                      chunkOverlap,
		SemanticBreakpointType:            cfg.SemanticBreakpointType,
		SemanticBreakpointThresholdAmount: cfg.SemanticBreakpointThresholdAmount,
		SemanticMinChunkSize:              cfg.SemanticMinChunkSize,
	}
	chunkFn := func(doc document.Document) ([]chunkdomain.Chunk, error) {
		return e.Splitter.Split(doc, cfg.ChunkingStrategy, params)
	}

	var updatedRows map[string]ledgerrow.Row
	if mode == ModeFullRebuild {
		updatedRows, err = e.runFullRebuild(ctx, manager, docs, chunkFn, &run)
	} else {
		updatedRows, err = e.runIncremental(ctx, manager, docByExternal, sets, ledgerRows, chunkFn, &run)
	}

	if err != nil {
		if restoreErr := l.RestoreLatest(); restoreErr != nil {
			e.log.WithField("job_id", jobID).Errorf("ledger restore after failed run also failed: %v", restoreErr)
		}
		run.Status = report.StatusFailure
		run.Errors = append(run.Errors, err.Error())
		run.EndTime = e.Clock.Now()
		return run
	}

	if err := l.Save(updatedRows); err != nil {
		// The store mutation already succeeded; per the accepted drift
		// policy the backup is not restored here.
		run.Status = report.StatusPartial
		run.Errors = append(run.Errors, err.Error())
		run.EndTime = e.Clock.Now()
		return run
	}
	if err := l.CleanupBackups(cfg.MaxBackupFiles); err != nil {
		e.log.WithField("job_id", jobID).Warnf("backup cleanup failed: %v", err)
	}

	if len(run.Errors) > 0 {
		run.Status = report.StatusPartial
	} else {
		run.Status = report.StatusSuccess
	}
	run.EndTime = e.Clock.Now()
	return run
}

func decideMode(cfg config.Config, sets change.Set, ledgerSize int) Mode {
	if cfg.ForceRecreate || cfg.IncrementalMode == config.IncrementalForceRebuild {
		return ModeFullRebuild
	}
	if cfg.IncrementalMode == config.IncrementalForceIncr {
		return ModeIncremental
	}
	if sets.Ratio(ledgerSize) >= cfg.IncrementalFallbackThreshold {
		return ModeFullRebuild
	}
	return ModeIncremental
}

func (e *Engine) runFullRebuild(ctx context.Context, manager *vectorstore.Manager, docs []document.Document, chunkFn func(document.Document) ([]chunkdomain.Chunk, error), run *report.Run) (map[string]ledgerrow.Row, error) {
	if err := manager.OpenOrCreate(true); err != nil {
		return nil, err
	}

	rows := make(map[string]ledgerrow.Row, len(docs))
	for _, doc := range docs {
		chunks, err := chunkFn(doc)
		if err != nil {
			e.log.WithField("source", doc.Source).Warnf("chunking failed, skipping document: %v", err)
			continue
		}
		run.Counts.Chunked += len(chunks)

		added, _, err := manager.Add(ctx, chunks)
		if err != nil {
			return nil, err
		}
		run.Counts.Upserted += added

		rows[doc.Source] = ledgerrow.Row{
			Source:          doc.Source,
			ContentChecksum: doc.ContentChecksum,
			LastModified:    doc.LastModified,
			IndexedAt:       e.Clock.Now().Unix(),
			Indexed:         true,
		}
	}
	return rows, nil
}

func (e *Engine) runIncremental(ctx context.Context, manager *vectorstore.Manager, docs map[string]document.Document, sets change.Set, existing map[string]ledgerrow.Row, chunkFn vectorstore.ChunkFn, run *report.Run) (map[string]ledgerrow.Row, error) {
	if err := manager.OpenOrCreate(false); err != nil {
		return nil, err
	}

	result, err := manager.IncrementalUpdate(ctx, docs, sets, chunkFn)
	if err != nil {
		return nil, err
	}
	run.Counts.Removed = result.RemovedCount
	run.Counts.Upserted = result.AddedCount
	run.Warnings = append(run.Warnings, failedSourceWarnings(result.FailedSources)...)

	failed := toSet(result.FailedSources)
	rows := make(map[string]ledgerrow.Row, len(existing))
	for source, row := range existing {
		if _, deleted := contains(sets.DeletedSource, source); deleted {
			if _, didFail := failed[source]; didFail {
				rows[source] = row
			}
			continue
		}
		if _, modified := contains(sets.Modified, source); modified {
			if _, didFail := failed[source]; didFail {
				rows[source] = row
				continue
			}
			doc := docs[source]
			rows[source] = ledgerrow.Row{Source: source, ContentChecksum: doc.ContentChecksum, LastModified: doc.LastModified, IndexedAt: e.Clock.Now().Unix(), Indexed: true}
			continue
		}
		rows[source] = row
	}
	for _, source := range sets.New {
		if _, didFail := failed[source]; didFail {
			continue
		}
		doc := docs[source]
		rows[source] = ledgerrow.Row{Source: source, ContentChecksum: doc.ContentChecksum, LastModified: doc.LastModified, IndexedAt: e.Clock.Now().Unix(), Indexed: true}
	}
	return rows, nil
}

func failedSourceWarnings(sources []string) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = "failed to update source " + s
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}

func contains(items []string, want string) (int, bool) {
	for i, item := range items {
		if item == want {
			return i, true
		}
	}
	return -1, false
}
