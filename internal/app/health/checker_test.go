package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mafzaal/letstalk-index/internal/app/config"
)

func TestRunHealthyWhenEverythingSane(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "ledger.csv"), 3, 0, config.Default(), nil)
	report := c.Run(context.Background())

	if report.Overall == StatusError {
		t.Fatalf("expected no hard errors, got %+v", report)
	}
	if len(report.Checks) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(report.Checks))
	}
}

func TestRunFlagsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.BatchSize = -1
	c := New(filepath.Join(dir, "ledger.csv"), 3, 0, cfg, nil)

	report := c.Run(context.Background())
	if report.Overall != StatusError {
		t.Fatalf("expected overall error status for invalid config, got %v", report.Overall)
	}
}

func TestWorseOfPicksMoreSevere(t *testing.T) {
	if worseOf(StatusHealthy, StatusWarning) != StatusWarning {
		t.Fatal("expected warning to win over healthy")
	}
	if worseOf(StatusError, StatusWarning) != StatusError {
		t.Fatal("expected error to remain the worst status")
	}
}
