package service

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	if clock.Now() != start {
		t.Fatalf("expected initial time to equal start")
	}

	advanced := clock.Advance(time.Hour)
	if advanced != start.Add(time.Hour) {
		t.Fatalf("expected advance to move forward by duration")
	}
	if clock.Now() != start.Add(time.Hour) {
		t.Fatalf("expected Now to reflect the advance")
	}
}

func TestFakeClockSet(t *testing.T) {
	clock := NewFakeClock(time.Now())
	pinned := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(pinned)
	if clock.Now() != pinned {
		t.Fatalf("expected Now to equal pinned time")
	}
}
