package tasklib

import (
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	c := DefaultRetryConfig()
	if !c.ShouldRetry(1) || !c.ShouldRetry(4) {
		t.Error("attempts below the cap should retry")
	}
	if c.ShouldRetry(5) || c.ShouldRetry(10) {
		t.Error("attempts at or past the cap should not retry")
	}

	unlimited := RetryConfig{MaxAttempts: 0}
	if !unlimited.ShouldRetry(1000) {
		t.Error("MaxAttempts=0 means unlimited retries")
	}
}

func TestBackoffGrowthAndCeiling(t *testing.T) {
	// No jitter so delays are deterministic.
	c := RetryConfig{
		BaseDelay:     30 * time.Second,
		MaxDelay:      15 * time.Minute,
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 240 * time.Second},
		{5, 480 * time.Second},
		{6, 15 * time.Minute}, // 960s capped
		{10, 15 * time.Minute},
		{0, 30 * time.Second}, // clamped to 1
	}
	for _, tc := range tests {
		if got := c.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	c := DefaultRetryConfig()
	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 50; i++ {
			d := c.Backoff(attempt)
			if d <= 0 {
				t.Fatalf("Backoff(%d) = %s, must be positive", attempt, d)
			}
			if d > c.MaxDelay {
				t.Fatalf("Backoff(%d) = %s exceeds MaxDelay %s", attempt, d, c.MaxDelay)
			}
		}
	}
}
