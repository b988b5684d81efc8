// Package health aggregates the five checks that make up the operator-facing
// health summary: ledger integrity, vector-store reachability, backup
// health, configuration sanity, and system resource pressure.
package health

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/ledger"
	"github.com/mafzaal/letstalk-index/internal/app/vectorstore"
)

// Status is the overall or per-check health level.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusWarning   Status = "warning"
	StatusUnhealthy Status = "unhealthy"
	StatusError     Status = "error"
)

var statusSeverity = map[Status]int{
	StatusHealthy:   0,
	StatusWarning:   1,
	StatusUnhealthy: 2,
	StatusError:     3,
}

func worseOf(a, b Status) Status {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}

// CheckResult is the outcome of a single named check.
type CheckResult struct {
	Name            string
	Status          Status
	Detail          string
	Recommendations []string
}

// Report is the aggregated health summary.
type Report struct {
	Overall         Status
	Checks          []CheckResult
	Recommendations []string
	Errors          []string
}

const (
	warningThreshold  = 80.0
	criticalThreshold = 95.0
)

// Checker runs the five aggregate checks.
type Checker struct {
	LedgerPath     string
	MaxBackupFiles int
	MaxBackupAge   time.Duration
	Config         config.Config
	Store          vectorstore.Store
}

// New returns a Checker.
func New(ledgerPath string, maxBackupFiles int, maxBackupAge time.Duration, cfg config.Config, store vectorstore.Store) *Checker {
	return &Checker{LedgerPath: ledgerPath, MaxBackupFiles: maxBackupFiles, MaxBackupAge: maxBackupAge, Config: cfg, Store: store}
}

// Run executes all five checks and aggregates them into a single Report.
func (c *Checker) Run(ctx context.Context) Report {
	checks := []CheckResult{
		c.checkLedgerIntegrity(),
		c.checkVectorStore(ctx),
		c.checkBackups(),
		c.checkConfig(),
		c.checkSystemResources(),
	}

	report := Report{Overall: StatusHealthy}
	for _, check := range checks {
		report.Checks = append(report.Checks, check)
		report.Overall = worseOf(report.Overall, check.Status)
		report.Recommendations = append(report.Recommendations, check.Recommendations...)
		if check.Status == StatusError || check.Status == StatusUnhealthy {
			report.Errors = append(report.Errors, check.Name+": "+check.Detail)
		}
	}
	return report
}

func (c *Checker) checkLedgerIntegrity() CheckResult {
	l := ledger.New(c.LedgerPath, nil)
	rows, err := l.Load()
	if err != nil {
		return CheckResult{Name: "ledger_integrity", Status: StatusError, Detail: err.Error()}
	}
	return CheckResult{Name: "ledger_integrity", Status: StatusHealthy, Detail: "ledger readable with " + strconv.Itoa(len(rows)) + " rows"}
}

func (c *Checker) checkVectorStore(ctx context.Context) CheckResult {
	if c.Store == nil {
		return CheckResult{
			Name:            "vector_store_reachability",
			Status:          StatusWarning,
			Detail:          "no vector store configured",
			Recommendations: []string{"configure a vector store backend"},
		}
	}
	if err := c.Store.ValidateHealth(ctx); err != nil {
		return CheckResult{Name: "vector_store_reachability", Status: StatusUnhealthy, Detail: err.Error()}
	}
	return CheckResult{Name: "vector_store_reachability", Status: StatusHealthy, Detail: "store reachable"}
}

func (c *Checker) checkBackups() CheckResult {
	l := ledger.New(c.LedgerPath, nil)
	backups, err := l.Backups()
	if err != nil {
		return CheckResult{Name: "backup_health", Status: StatusError, Detail: err.Error()}
	}

	result := CheckResult{Name: "backup_health", Status: StatusHealthy, Detail: strconv.Itoa(len(backups)) + " backups present"}
	if c.MaxBackupFiles > 0 && len(backups) > c.MaxBackupFiles {
		result.Status = StatusWarning
		result.Recommendations = append(result.Recommendations, "backup count exceeds max_backup_files, run cleanup")
	}
	if c.MaxBackupAge > 0 && len(backups) > 0 {
		info, err := os.Stat(backups[0])
		if err == nil && time.Since(info.ModTime()) > c.MaxBackupAge {
			result.Status = worseOf(result.Status, StatusWarning)
			result.Recommendations = append(result.Recommendations, "oldest backup exceeds configured max age")
		}
	}
	return result
}

func (c *Checker) checkConfig() CheckResult {
	if err := c.Config.Validate(); err != nil {
		return CheckResult{Name: "configuration_sanity", Status: StatusError, Detail: err.Error()}
	}
	return CheckResult{Name: "configuration_sanity", Status: StatusHealthy, Detail: "configuration valid"}
}

func (c *Checker) checkSystemResources() CheckResult {
	result := CheckResult{Name: "system_resources", Status: StatusHealthy}

	if vm, err := mem.VirtualMemory(); err == nil {
		result.Status = worseOf(result.Status, thresholdStatus(vm.UsedPercent))
	}
	if usage, err := disk.Usage("/"); err == nil {
		result.Status = worseOf(result.Status, thresholdStatus(usage.UsedPercent))
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		result.Status = worseOf(result.Status, thresholdStatus(pct[0]))
	}

	if result.Status != StatusHealthy {
		result.Detail = "resource usage above warning threshold"
		result.Recommendations = append(result.Recommendations, "reduce batch size or concurrency until resource pressure subsides")
	} else {
		result.Detail = "resource usage nominal"
	}
	return result
}

func thresholdStatus(percent float64) Status {
	switch {
	case percent >= criticalThreshold:
		return StatusUnhealthy
	case percent >= warningThreshold:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

