package perf

import (
	"fmt"
	"math"
	"sort"

	"github.com/shirou/gopsutil/v3/mem"
)

// Optimizer derives runtime tuning recommendations from observed history.
type Optimizer struct {
	MinBatchSize int
	MaxBatchSize int
	MinChunkSize int
	MaxChunkSize int
	// SlowFloor is the docs_per_second below which an operation is flagged
	// in EfficiencyReport.
	SlowFloor float64
}

// NewOptimizer returns an Optimizer with sensible bounds.
func NewOptimizer() *Optimizer {
	return &Optimizer{
		MinBatchSize: 5,
		MaxBatchSize: 500,
		MinChunkSize: 200,
		MaxChunkSize: 4000,
		SlowFloor:    1.0,
	}
}

// RecommendBatchSize scales roughly linearly with available memory,
// clamped to [MinBatchSize, MaxBatchSize].
func (o *Optimizer) RecommendBatchSize(availableMemoryGB float64, currentBatchSize int) int {
	if currentBatchSize <= 0 {
		currentBatchSize = 50
	}
	scaled := int(math.Round(availableMemoryGB * 25))
	if availableMemoryGB <= 0 {
		scaled = currentBatchSize
	}
	return clamp(scaled, o.MinBatchSize, o.MaxBatchSize)
}

// RecommendChunkParameters widens chunk_size for long-tailed corpora and
// narrows it for short-document corpora, using the mean and p95 of the
// supplied document lengths. chunk_overlap tracks at a fixed 20% ratio.
func (o *Optimizer) RecommendChunkParameters(documentLengths []int) (chunkSize, chunkOverlap int) {
	if len(documentLengths) == 0 {
		return 1000, 200
	}

	sorted := append([]int(nil), documentLengths...)
	sort.Ints(sorted)

	var sum int
	for _, l := range sorted {
		sum += l
	}
	mean := float64(sum) / float64(len(sorted))
	p95Idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if p95Idx < 0 {
		p95Idx = 0
	}
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}
	p95 := float64(sorted[p95Idx])

	size := mean
	if p95 > mean*2 {
		size = mean * 1.5
	} else if mean < 500 {
		size = mean * 0.75
	}

	chunkSize = clamp(int(size), o.MinChunkSize, o.MaxChunkSize)
	chunkOverlap = int(float64(chunkSize) * 0.2)
	return chunkSize, chunkOverlap
}

// EfficiencyReport flags operations whose average docs_per_second falls
// below SlowFloor.
type EfficiencyReport struct {
	SlowOperations []string
	Averages       map[string]float64
}

// AnalyzeEfficiency aggregates history by operation and flags slow ones.
func (o *Optimizer) AnalyzeEfficiency(history []Metric) EfficiencyReport {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, m := range history {
		sums[m.Operation] += m.DocsPerSecond
		counts[m.Operation]++
	}

	report := EfficiencyReport{Averages: map[string]float64{}}
	var ops []string
	for op := range sums {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		avg := sums[op] / float64(counts[op])
		report.Averages[op] = avg
		if avg < o.SlowFloor {
			report.SlowOperations = append(report.SlowOperations, fmt.Sprintf("%s (%.2f docs/s)", op, avg))
		}
	}
	return report
}

// AvailableMemoryGB reports currently available system memory, used to seed
// RecommendBatchSize. ok is false when system stats can't be read, so
// callers can fall back to the configured batch size.
func AvailableMemoryGB() (gb float64, ok bool) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, false
	}
	return float64(vm.Available) / (1024 * 1024 * 1024), true
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
