package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	if m.RunsTotal == nil {
		t.Fatalf("expected RunsTotal to be initialised")
	}
	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(metricFamilies) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}
}

func TestInstrumentHandlerRecordsRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	handler := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pipeline/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected http_requests_total to be recorded")
	}
}
