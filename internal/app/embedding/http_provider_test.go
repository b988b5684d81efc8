package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/core/service"
)

func TestHTTPProviderEmbedRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-model", "", 2)
	p.RetryPolicy = service.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, Multiplier: 1}

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors: %+v", vectors)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestHTTPProviderEmbedReturnsErrorAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-model", "", 2)
	p.RetryPolicy = service.RetryPolicy{Attempts: 2, InitialBackoff: time.Millisecond, Multiplier: 1}

	if _, err := p.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
