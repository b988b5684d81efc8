package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/pipeline"
	"github.com/mafzaal/letstalk-index/internal/app/scheduler"
	"github.com/mafzaal/letstalk-index/internal/app/storage/memory"
	"github.com/mafzaal/letstalk-index/pkg/logger"
	"github.com/mafzaal/letstalk-index/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func testDeps(t *testing.T) Dependencies {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.MetadataCSVPath = filepath.Join(dir, "ledger.csv")
	cfg.DocsPath = filepath.Join(dir, "vectors.db")
	cfg.CollectionName = "posts"

	store := memory.New()
	clock := service.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	runner := pipeline.NewRunner(clock, nil, nil)
	sched := scheduler.New(store, store, runner, clock, nil, scheduler.WithPollInterval(10*time.Millisecond))

	return Dependencies{
		Scheduler:     sched,
		Reports:       store,
		DefaultConfig: cfg,
		Metrics:       metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
}

func TestHandlerHealthReportsSchedulerState(t *testing.T) {
	deps := testDeps(t)
	h := NewHandler(deps, logger.NewDefault("test"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
}

func TestHandlerCreateAndListIntervalJob(t *testing.T) {
	deps := testDeps(t)
	h := NewHandler(deps, logger.NewDefault("test"))

	body, _ := json.Marshal(intervalJobRequest{ID: "nightly", Hours: 6})
	req := httptest.NewRequest(http.MethodPost, "/scheduler/jobs/interval", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/scheduler/jobs", nil)
	listRec := httptest.NewRecorder()
	h.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	if !bytes.Contains(listRec.Body.Bytes(), []byte("nightly")) {
		t.Fatalf("expected job id in listing, got %s", listRec.Body.String())
	}
}

func TestHandlerCreateJobRejectsInvalidTrigger(t *testing.T) {
	deps := testDeps(t)
	h := NewHandler(deps, logger.NewDefault("test"))

	body, _ := json.Marshal(intervalJobRequest{ID: "bad"})
	req := httptest.NewRequest(http.MethodPost, "/scheduler/jobs/interval", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero interval, got %d", rec.Code)
	}
}

func TestHandlerRunPipelineCreatesManualJobAndReport(t *testing.T) {
	deps := testDeps(t)
	h := NewHandler(deps, logger.NewDefault("test"))

	req := httptest.NewRequest(http.MethodPost, "/pipeline/run", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	time.Sleep(50 * time.Millisecond)

	reports, err := deps.Reports.ListReports(context.Background(), 0)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report after manual run, got %d", len(reports))
	}
}

func TestWrapWithAuthRejectsMissingToken(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := wrapWithAuth(inner, []string{"secret-token"})

	req := httptest.NewRequest(http.MethodGet, "/scheduler/status", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/scheduler/status", nil)
	req2.Header.Set("Authorization", "Bearer secret-token")
	rec2 := httptest.NewRecorder()
	protected.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec2.Code)
	}
}

func TestWrapWithAuthAllowsPublicPaths(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := wrapWithAuth(inner, []string{"secret-token"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to bypass auth, got %d", rec.Code)
	}
}
