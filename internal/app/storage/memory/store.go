// Package memory provides in-memory JobStore and ReportStore implementations
// used as the default backing store and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	"github.com/mafzaal/letstalk-index/pkg/errors"
)

// Store is a thread-safe in-memory backing store for scheduler jobs and run
// reports. It is the default when no relational store is configured.
type Store struct {
	mu sync.RWMutex

	jobs    map[string]job.Definition
	reports []report.Run
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{jobs: make(map[string]job.Definition)}
}

// CreateJob inserts def, rejecting a duplicate id.
func (s *Store) CreateJob(_ context.Context, def job.Definition) (job.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[def.ID]; exists {
		return job.Definition{}, errors.Schedule("job id already exists: "+def.ID, nil)
	}
	s.jobs[def.ID] = def
	return def, nil
}

// UpdateJob overwrites an existing job definition.
func (s *Store) UpdateJob(_ context.Context, def job.Definition) (job.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[def.ID]; !exists {
		return job.Definition{}, errors.Schedule("job not found: "+def.ID, nil)
	}
	s.jobs[def.ID] = def
	return def, nil
}

// GetJob returns the job with id.
func (s *Store) GetJob(_ context.Context, id string) (job.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.jobs[id]
	if !ok {
		return job.Definition{}, errors.Schedule("job not found: "+id, nil)
	}
	return def, nil
}

// ListJobs returns every job, sorted by id for deterministic output.
func (s *Store) ListJobs(_ context.Context) ([]job.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]job.Definition, 0, len(s.jobs))
	for _, def := range s.jobs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteJob removes the job with id. Deleting a missing job is a no-op.
func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// AppendReport adds run to the report log.
func (s *Store) AppendReport(_ context.Context, run report.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, run)
	return nil
}

// ListReports returns the most recent limit reports, newest first. limit <= 0
// returns every report.
func (s *Store) ListReports(_ context.Context, limit int) ([]report.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Run, len(s.reports))
	copy(out, s.reports)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
