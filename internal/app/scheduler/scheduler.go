// Package scheduler owns the set of persistent jobs, computes their next
// fire times, and dispatches due jobs into the Pipeline Engine while
// enforcing a per-job non-overlap guard.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	core "github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	"github.com/mafzaal/letstalk-index/internal/app/pipeline"
	"github.com/mafzaal/letstalk-index/internal/app/storage"
	"github.com/mafzaal/letstalk-index/internal/app/system"
	pkgerrors "github.com/mafzaal/letstalk-index/pkg/errors"
	"github.com/mafzaal/letstalk-index/pkg/logger"
	"github.com/mafzaal/letstalk-index/pkg/metrics"
)

// Ensure Scheduler implements system.Service and advertises a descriptor.
var (
	_ system.Service            = (*Scheduler)(nil)
	_ system.DescriptorProvider = (*Scheduler)(nil)
)

const defaultPollInterval = time.Second

// Scheduler is the single coordinator for job dispatch. Created jobs are
// durable: Start recomputes every job's next_fire_time from the current
// time and resumes, so a restart never loses a schedule.
type Scheduler struct {
	store             storage.JobStore
	reports           storage.ReportStore
	runner            *pipeline.Runner
	clock             core.Clock
	log               *logger.Logger
	maxConcurrentJobs int
	pollInterval      time.Duration
	metrics           *metrics.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	wake    chan struct{}

	inFlightMu sync.Mutex
	inFlight   map[string]bool

	statsMu sync.Mutex
	stats   report.Statistics
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithMaxConcurrentJobs bounds the number of jobs the dispatcher runs at
// once. The default is 4.
func WithMaxConcurrentJobs(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxConcurrentJobs = n
		}
	}
}

// WithPollInterval overrides the dispatcher's wake granularity, mostly
// useful to speed up tests.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMetrics wires a Metrics collector so dispatch outcomes and run
// durations are exported for scraping. Omitted in tests that don't care.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New returns a Scheduler backed by store for job persistence and reports
// for the run report log.
func New(store storage.JobStore, reports storage.ReportStore, runner *pipeline.Runner, clock core.Clock, log *logger.Logger, opts ...Option) *Scheduler {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	s := &Scheduler{
		store:             store,
		reports:           reports,
		runner:            runner,
		clock:             clock,
		log:               log,
		maxConcurrentJobs: 4,
		pollInterval:      defaultPollInterval,
		wake:              make(chan struct{}, 1),
		inFlight:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the scheduler service to the lifecycle manager.
func (s *Scheduler) Name() string { return "scheduler" }

// Descriptor advertises the scheduler's architectural placement.
func (s *Scheduler) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "scheduler",
		Domain:       "scheduling",
		Layer:        core.LayerControl,
		Capabilities: []string{"create_job", "delete_job", "list_jobs", "trigger_now", "dispatch"},
	}
}

// CreateJob validates trigger, computes its first next_fire_time, and
// persists the definition. Duplicate ids are rejected by the store.
func (s *Scheduler) CreateJob(ctx context.Context, id string, trigger job.Trigger, cfg config.Config) (job.Definition, error) {
	if err := validateTrigger(trigger); err != nil {
		return job.Definition{}, err
	}
	if err := cfg.Validate(); err != nil {
		return job.Definition{}, err
	}
	configJSON, err := json.Marshal(cfg.Snapshot())
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("marshal job config snapshot", err)
	}

	next, err := computeNextFireTime(trigger, s.clock.Now(), time.Time{})
	if err != nil {
		return job.Definition{}, err
	}

	def := job.Definition{
		ID:           id,
		Trigger:      trigger,
		ConfigJSON:   configJSON,
		NextFireTime: next,
	}
	created, err := s.store.CreateJob(ctx, def)
	if err != nil {
		return job.Definition{}, err
	}
	s.signal()
	return created, nil
}

// DeleteJob removes a job; idempotent on a missing id.
func (s *Scheduler) DeleteJob(ctx context.Context, id string) error {
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.signal()
	return nil
}

// ListJobs returns every persisted job.
func (s *Scheduler) ListJobs(ctx context.Context) ([]job.Definition, error) {
	return s.store.ListJobs(ctx)
}

// TriggerNow runs id immediately, bypassing its schedule. It still honours
// the per-job non-overlap guard: a job already in flight records a missed
// execution instead of running twice.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) error {
	def, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	go s.fireJob(context.Background(), def, true)
	return nil
}

// Stats returns a snapshot of scheduler-wide counters.
func (s *Scheduler) Stats(ctx context.Context) report.Statistics {
	jobs, err := s.store.ListJobs(ctx)
	active := 0
	if err == nil {
		active = len(jobs)
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	stats := s.stats
	stats.ActiveJobs = active
	s.mu.Lock()
	stats.SchedulerRunning = s.running
	s.mu.Unlock()
	return stats
}

// Start loads every persisted job, recomputes its next_fire_time against
// the current time, and begins the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	if err := s.resumeJobs(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		return err
	}

	s.wg.Add(1)
	go s.loop(runCtx)

	s.log.Info("scheduler started")
	return nil
}

// Stop halts the dispatch loop and waits for any in-flight tick to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("scheduler stopped")
	return nil
}

// resumeJobs recomputes next_fire_time for every persisted job from "now",
// per the startup-recovery rule (spec §4.10).
func (s *Scheduler) resumeJobs(ctx context.Context) error {
	defs, err := s.store.ListJobs(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, def := range defs {
		if def.Completed {
			continue
		}
		changed, err := s.recomputeOnResume(def, now)
		if err != nil {
			s.log.WithField("job_id", def.ID).Warnf("recompute next fire time on resume: %v", err)
			continue
		}
		if _, err := s.store.UpdateJob(ctx, changed); err != nil {
			s.log.WithField("job_id", def.ID).Warnf("persist resumed job: %v", err)
		}
	}
	return nil
}

func (s *Scheduler) recomputeOnResume(def job.Definition, now time.Time) (job.Definition, error) {
	if def.Trigger.Kind == job.TriggerOneShot {
		if def.Trigger.At.After(now) {
			def.NextFireTime = def.Trigger.At
			return def, nil
		}
		late := now.Sub(def.Trigger.At)
		if def.Trigger.LatenessTolerance > 0 && late > def.Trigger.LatenessTolerance {
			def.Completed = true
			def.NextFireTime = time.Time{}
			s.recordMissed(def.ID)
			return def, nil
		}
		def.NextFireTime = now
		return def, nil
	}

	next, err := computeNextFireTime(def.Trigger, now, def.LastFireTime)
	if err != nil {
		return job.Definition{}, err
	}
	def.NextFireTime = next
	return def, nil
}

// loop is the single dispatch coordinator. A panic inside a tick is
// recovered, logged, and retried after a backoff so the dispatcher is
// self-healing (spec §4.10).
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if s.runProtectedTick(ctx) {
			return
		}
	}
}

func (s *Scheduler) runProtectedTick(ctx context.Context) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("scheduler dispatch loop panic: %v", r)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				stopped = true
			}
		}
	}()

	timer := time.NewTimer(s.nextWait(ctx))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-s.wake:
	case <-timer.C:
		s.dispatchDue(ctx)
	}
	return false
}

// nextWait bounds how long the loop sleeps before re-evaluating due jobs,
// capped at pollInterval so newly created jobs are picked up promptly.
func (s *Scheduler) nextWait(ctx context.Context) time.Duration {
	defs, err := s.store.ListJobs(ctx)
	if err != nil || len(defs) == 0 {
		return s.pollInterval
	}
	now := s.clock.Now()
	var earliest time.Duration = s.pollInterval
	found := false
	for _, def := range defs {
		if def.Completed || def.NextFireTime.IsZero() {
			continue
		}
		wait := def.NextFireTime.Sub(now)
		if wait < 0 {
			wait = 0
		}
		if !found || wait < earliest {
			earliest = wait
			found = true
		}
	}
	if earliest > s.pollInterval {
		earliest = s.pollInterval
	}
	return earliest
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	defs, err := s.store.ListJobs(ctx)
	if err != nil {
		s.log.Warnf("list jobs for dispatch: %v", err)
		return
	}
	now := s.clock.Now()

	sem := make(chan struct{}, s.maxConcurrentJobs)
	var wg sync.WaitGroup
	for _, def := range defs {
		if def.Completed || def.NextFireTime.IsZero() || def.NextFireTime.After(now) {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(def job.Definition) {
			defer wg.Done()
			defer func() { <-sem }()
			s.fireJob(ctx, def, false)
		}(def)
	}
	wg.Wait()
}

// fireJob claims the per-job non-overlap guard, runs the pipeline, updates
// statistics and the persisted job state, and releases the guard. bypass is
// true for trigger_now, which never advances a regular schedule's cadence.
func (s *Scheduler) fireJob(ctx context.Context, def job.Definition, bypass bool) {
	if !s.claim(def.ID) {
		s.recordMissed(def.ID)
		return
	}
	defer s.release(def.ID)

	var cfg config.Config
	if err := json.Unmarshal(def.ConfigJSON, &cfg); err != nil {
		s.log.WithField("job_id", def.ID).Errorf("unmarshal job config: %v", err)
		return
	}

	run := s.runner.Run(ctx, def.ID, cfg, cfg.MetadataCSVPath)

	if s.reports != nil {
		if err := s.reports.AppendReport(ctx, run); err != nil {
			s.log.WithField("job_id", def.ID).Warnf("append run report: %v", err)
		}
	}

	s.recordExecution(run)
	s.applyRunOutcome(ctx, def, run, bypass)
}

func (s *Scheduler) applyRunOutcome(ctx context.Context, def job.Definition, run report.Run, bypass bool) {
	def.LastFireTime = run.EndTime
	if run.Status == report.StatusFailure && len(run.Errors) > 0 {
		def.LastError = run.Errors[len(run.Errors)-1]
	} else {
		def.LastError = ""
	}

	if !bypass {
		if def.Trigger.Kind == job.TriggerOneShot {
			def.Completed = true
		} else if next, err := computeNextFireTime(def.Trigger, s.clock.Now(), def.LastFireTime); err == nil {
			def.NextFireTime = next
		}
	}

	if _, err := s.store.UpdateJob(ctx, def); err != nil {
		s.log.WithField("job_id", def.ID).Warnf("persist job state after run: %v", err)
	}
}

func (s *Scheduler) claim(id string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, id)
}

func (s *Scheduler) recordMissed(jobID string) {
	s.statsMu.Lock()
	s.stats.JobsMissed++
	s.statsMu.Unlock()
	if s.metrics != nil {
		s.metrics.JobsMissedTotal.WithLabelValues(jobID).Inc()
	}
}

func (s *Scheduler) recordExecution(run report.Run) {
	s.statsMu.Lock()
	s.stats.JobsExecuted++
	s.stats.LastExecution = run.EndTime
	if run.Status == report.StatusFailure {
		s.stats.JobsFailed++
		if len(run.Errors) > 0 {
			s.stats.LastError = run.Errors[len(run.Errors)-1]
		}
	}
	s.statsMu.Unlock()

	if s.metrics == nil {
		return
	}
	status := "success"
	if run.Status == report.StatusFailure {
		status = "failure"
	}
	s.metrics.RunsTotal.WithLabelValues(run.JobID, status).Inc()
	s.metrics.RunDuration.WithLabelValues(run.JobID).Observe(run.EndTime.Sub(run.StartTime).Seconds())
	s.metrics.DocumentsLoaded.WithLabelValues(run.JobID).Set(float64(run.Counts.Loaded))
	s.metrics.ChunksUpserted.WithLabelValues(run.JobID).Add(float64(run.Counts.Upserted))
	if status == "failure" {
		s.metrics.JobsFailedTotal.WithLabelValues(run.JobID).Inc()
	}
	s.metrics.JobsExecutedTotal.WithLabelValues(run.JobID).Inc()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func validateTrigger(t job.Trigger) error {
	switch t.Kind {
	case job.TriggerCron:
		if _, err := buildCronSchedule(t); err != nil {
			return err
		}
	case job.TriggerInterval:
		if t.IntervalDuration() <= 0 {
			return pkgerrors.Schedule("interval must be greater than zero", nil)
		}
	case job.TriggerOneShot:
		if t.At.IsZero() {
			return pkgerrors.Schedule("one-shot trigger requires a fire instant", nil)
		}
	default:
		return pkgerrors.Schedule(fmt.Sprintf("unknown trigger kind %q", t.Kind), nil)
	}
	return nil
}

func buildCronSchedule(t job.Trigger) (cron.Schedule, error) {
	expr := t.CronExpression
	if expr == "" {
		expr = fmt.Sprintf("%s %s * * %s", orStar(t.Minute), orStar(t.Hour), orStar(t.DayOfWeek))
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, pkgerrors.Schedule("parse cron expression", err)
	}
	return schedule, nil
}

func orStar(field string) string {
	if field == "" {
		return "*"
	}
	return field
}

// computeNextFireTime evaluates trigger against now, per spec §4.10's three
// trigger kinds.
func computeNextFireTime(t job.Trigger, now, lastFireTime time.Time) (time.Time, error) {
	switch t.Kind {
	case job.TriggerCron:
		schedule, err := buildCronSchedule(t)
		if err != nil {
			return time.Time{}, err
		}
		return schedule.Next(now), nil
	case job.TriggerInterval:
		interval := t.IntervalDuration()
		if interval <= 0 {
			return time.Time{}, pkgerrors.Schedule("interval must be greater than zero", nil)
		}
		if lastFireTime.IsZero() {
			return now.Add(interval), nil
		}
		return lastFireTime.Add(interval), nil
	case job.TriggerOneShot:
		return t.At, nil
	default:
		return time.Time{}, pkgerrors.Schedule(fmt.Sprintf("unknown trigger kind %q", t.Kind), nil)
	}
}
