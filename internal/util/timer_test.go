package util

import (
	"testing"
	"time"
)

func TestZeroTimer(t *testing.T) {
	var timer Timer
	if timer.ElapsedMs() != 0 {
		t.Fatalf("expected zero elapsed for unstarted timer, got %d", timer.ElapsedMs())
	}
}

func TestStartedTimerAdvances(t *testing.T) {
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	if timer.Elapsed() < 5*time.Millisecond {
		t.Fatalf("expected at least 5ms elapsed, got %s", timer.Elapsed())
	}
	if timer.ElapsedMs() < 5 {
		t.Fatalf("expected at least 5ms, got %d", timer.ElapsedMs())
	}
}
