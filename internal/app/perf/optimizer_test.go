package perf

import "testing"

func TestRecommendBatchSizeClamps(t *testing.T) {
	o := NewOptimizer()
	if got := o.RecommendBatchSize(100, 50); got != o.MaxBatchSize {
		t.Fatalf("expected clamp to max batch size, got %d", got)
	}
	if got := o.RecommendBatchSize(0.01, 50); got != o.MinBatchSize {
		t.Fatalf("expected clamp to min batch size, got %d", got)
	}
}

func TestRecommendChunkParametersWidensForLongTail(t *testing.T) {
	o := NewOptimizer()
	lengths := make([]int, 100)
	for i := range lengths {
		lengths[i] = 500
	}
	lengths[99] = 20000 // long tail outlier raises the mean above the typical length

	size, overlap := o.RecommendChunkParameters(lengths)
	if size <= 500 {
		t.Fatalf("expected widened chunk size for long-tailed corpus, got %d", size)
	}
	if overlap != int(float64(size)*0.2) {
		t.Fatalf("expected overlap to track 20%% of chunk size, got %d", overlap)
	}
}

func TestRecommendChunkParametersEmptyUsesDefaults(t *testing.T) {
	o := NewOptimizer()
	size, overlap := o.RecommendChunkParameters(nil)
	if size != 1000 || overlap != 200 {
		t.Fatalf("expected default 1000/200, got %d/%d", size, overlap)
	}
}

func TestAnalyzeEfficiencyFlagsSlowOperations(t *testing.T) {
	o := NewOptimizer()
	history := []Metric{
		{Operation: "load", DocsPerSecond: 0.1},
		{Operation: "load", DocsPerSecond: 0.2},
		{Operation: "chunk", DocsPerSecond: 50},
	}
	report := o.AnalyzeEfficiency(history)
	if len(report.SlowOperations) != 1 {
		t.Fatalf("expected exactly one slow operation flagged, got %v", report.SlowOperations)
	}
}
