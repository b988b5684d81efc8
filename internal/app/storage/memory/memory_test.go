package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
)

func TestCreateJobRejectsDuplicate(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateJob(ctx, job.Definition{ID: "job-1"}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := store.CreateJob(ctx, job.Definition{ID: "job-1"}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestUpdateAndListJobs(t *testing.T) {
	store := New()
	ctx := context.Background()

	def, err := store.CreateJob(ctx, job.Definition{ID: "job-1"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	def.LastError = "boom"
	if _, err := store.UpdateJob(ctx, def); err != nil {
		t.Fatalf("update job: %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil || got.LastError != "boom" {
		t.Fatalf("expected updated job, got %#v err=%v", got, err)
	}

	list, err := store.ListJobs(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 job, got %#v err=%v", list, err)
	}
}

func TestDeleteJobIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.CreateJob(ctx, job.Definition{ID: "job-1"}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := store.DeleteJob(ctx, "job-1"); err != nil {
		t.Fatalf("delete job: %v", err)
	}
	if err := store.DeleteJob(ctx, "job-1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
	if _, err := store.GetJob(ctx, "job-1"); err == nil {
		t.Fatal("expected job to be gone")
	}
}

func TestListReportsOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := report.Run{JobID: "job-1", StartTime: base.Add(time.Duration(i) * time.Hour)}
		if err := store.AppendReport(ctx, run); err != nil {
			t.Fatalf("append report: %v", err)
		}
	}

	list, err := store.ListReports(ctx, 2)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 reports, got %#v err=%v", list, err)
	}
	if !list[0].StartTime.After(list[1].StartTime) {
		t.Fatalf("expected newest-first ordering")
	}
}
