package service

import (
	"context"
	"errors"
	"testing"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, Multiplier: 1}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	wantErr := errors.New("permanent")
	err := Retry(context.Background(), RetryPolicy{Attempts: 2}, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
