package scheduler

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
	"github.com/mafzaal/letstalk-index/internal/app/pipeline"
	"github.com/mafzaal/letstalk-index/internal/app/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.MetadataCSVPath = filepath.Join(dir, "ledger.csv")
	cfg.DocsPath = filepath.Join(dir, "vectors.db")
	cfg.CollectionName = "posts"
	return cfg
}

func newTestScheduler(t *testing.T) (*Scheduler, *memory.Store, *service.FakeClock) {
	t.Helper()
	store := memory.New()
	clock := service.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	runner := pipeline.NewRunner(clock, nil, nil)
	sched := New(store, store, runner, clock, nil, WithPollInterval(20*time.Millisecond))
	return sched, store, clock
}

func TestCreateJobRejectsDuplicateAndComputesNextFireTime(t *testing.T) {
	sched, _, clock := newTestScheduler(t)
	trigger := job.Trigger{Kind: job.TriggerInterval, IntervalMinutes: 10}

	def, err := sched.CreateJob(context.Background(), "job-1", trigger, testConfig(t))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	want := clock.Now().Add(10 * time.Minute)
	if !def.NextFireTime.Equal(want) {
		t.Fatalf("next fire time = %v, want %v", def.NextFireTime, want)
	}

	if _, err := sched.CreateJob(context.Background(), "job-1", trigger, testConfig(t)); err == nil {
		t.Fatal("expected duplicate job id to fail")
	}
}

func TestCreateJobRejectsInvalidInterval(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	trigger := job.Trigger{Kind: job.TriggerInterval}
	if _, err := sched.CreateJob(context.Background(), "job-1", trigger, testConfig(t)); err == nil {
		t.Fatal("expected zero interval to be rejected")
	}
}

func TestDispatchRunsDueOneShotJob(t *testing.T) {
	sched, store, clock := newTestScheduler(t)
	trigger := job.Trigger{Kind: job.TriggerOneShot, At: clock.Now().Add(10 * time.Millisecond)}

	if _, err := sched.CreateJob(context.Background(), "job-1", trigger, testConfig(t)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	clock.Advance(10 * time.Millisecond)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		def, err := store.GetJob(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if def.Completed {
			reports, err := store.ListReports(context.Background(), 0)
			if err != nil {
				t.Fatalf("list reports: %v", err)
			}
			if len(reports) != 1 {
				t.Fatalf("expected exactly one report, got %d", len(reports))
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("one-shot job never completed")
}

func TestTriggerNowRecordsMissedWhenAlreadyInFlight(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	sched.claim("job-1")

	configJSON, err := json.Marshal(testConfig(t).Snapshot())
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	def := job.Definition{ID: "job-1", Trigger: job.Trigger{Kind: job.TriggerOneShot, At: sched.clock.Now()}, ConfigJSON: configJSON}
	sched.fireJob(context.Background(), def, true)

	stats := sched.Stats(context.Background())
	if stats.JobsMissed != 1 {
		t.Fatalf("jobs_missed = %d, want 1", stats.JobsMissed)
	}
}
