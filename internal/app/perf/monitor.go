// Package perf records per-operation timings and system resource stats,
// and derives batch-size and chunk-parameter recommendations from them.
package perf

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// Metric is a single recorded operation.
type Metric struct {
	Operation      string
	DurationSeconds float64
	DocumentCount  int
	DocsPerSecond  float64
	MemoryPercent  float64
	CPUPercent     float64
	Extra          map[string]float64
	RecordedAt     time.Time
}

// Monitor guards a ring buffer of recent Metrics behind a mutex; it is the
// one piece of state in the pipeline written to from multiple goroutines.
type Monitor struct {
	mu       sync.Mutex
	ring     []Metric
	capacity int
	clock    service.Clock
	log      *logger.Logger
}

// NewMonitor returns a Monitor retaining up to capacity recent metrics.
func NewMonitor(capacity int, clock service.Clock, log *logger.Logger) *Monitor {
	if capacity <= 0 {
		capacity = 500
	}
	if clock == nil {
		clock = service.SystemClock{}
	}
	if log == nil {
		log = logger.NewDefault("perf")
	}
	return &Monitor{capacity: capacity, clock: clock, log: log}
}

// Region is a scoped measurement started by Monitor.Start and closed by
// calling Done, mirroring a context-manager style region without needing
// one.
type Region struct {
	monitor       *Monitor
	operation     string
	documentCount int
	extra         map[string]float64
	startedAt     time.Time
}

// Start begins a measurement region. Any panic or error inside the region
// must not prevent Done from being called; callers should defer it.
func (m *Monitor) Start(operation string, documentCount int, extra map[string]float64) *Region {
	return &Region{monitor: m, operation: operation, documentCount: documentCount, extra: extra, startedAt: m.clock.Now()}
}

// Done records the region's duration and current system stats. Any failure
// reading system stats is swallowed with a warning: monitoring must never
// fail the pipeline.
func (r *Region) Done() {
	elapsed := r.monitor.clock.Now().Sub(r.startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	metric := Metric{
		Operation:       r.operation,
		DurationSeconds: elapsed,
		DocumentCount:   r.documentCount,
		Extra:           r.extra,
		RecordedAt:      r.monitor.clock.Now(),
	}
	if elapsed > 0 {
		metric.DocsPerSecond = float64(r.documentCount) / elapsed
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		metric.MemoryPercent = vm.UsedPercent
	} else {
		r.monitor.log.Warnf("read memory stats: %v", err)
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		metric.CPUPercent = pct[0]
	} else if err != nil {
		r.monitor.log.Warnf("read cpu stats: %v", err)
	}

	r.monitor.record(metric)
}

func (m *Monitor) record(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring = append(m.ring, metric)
	if len(m.ring) > m.capacity {
		m.ring = m.ring[len(m.ring)-m.capacity:]
	}
}

// Snapshot returns a copy of the metrics currently in the ring, optionally
// filtered to a single operation name.
func (m *Monitor) Snapshot(operation string) []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Metric, 0, len(m.ring))
	for _, metric := range m.ring {
		if operation != "" && metric.Operation != operation {
			continue
		}
		out = append(out, metric)
	}
	return out
}
