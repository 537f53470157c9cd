package queue

import (
	"testing"
	"time"
)

func TestDefaultPolicySchedule(t *testing.T) {
	policy := DefaultPolicy()

	want := []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}
	if len(policy.Delays) != len(want) {
		t.Fatalf("expected %d delays, got %d", len(want), len(policy.Delays))
	}
	for i, d := range want {
		if policy.Delays[i] != d {
			t.Errorf("delay %d: expected %s, got %s", i, d, policy.Delays[i])
		}
	}

	if policy.MaxAttempts() != 4 {
		t.Errorf("expected 4 max attempts (initial + 3 retries), got %d", policy.MaxAttempts())
	}
}

// A job failing retryably on every attempt walks the schedule in order
// and becomes terminal once the delays are exhausted.
func TestNextDelayWalksSchedule(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		attemptCount int
		wantDelay    time.Duration
		wantOK       bool
	}{
		{1, 60 * time.Second, true},
		{2, 300 * time.Second, true},
		{3, 900 * time.Second, true},
		{4, 0, false}, // retries exhausted
	}

	for _, tc := range cases {
		delay, ok := policy.NextDelay(tc.attemptCount)
		if ok != tc.wantOK {
			t.Errorf("attempt %d: expected ok=%v, got %v", tc.attemptCount, tc.wantOK, ok)
		}
		if delay != tc.wantDelay {
			t.Errorf("attempt %d: expected delay %s, got %s", tc.attemptCount, tc.wantDelay, delay)
		}
	}
}

func TestNextDelayRejectsInvalidAttemptCount(t *testing.T) {
	policy := DefaultPolicy()

	for _, attempt := range []int{0, -1, 100} {
		if _, ok := policy.NextDelay(attempt); ok {
			t.Errorf("attempt count %d should not yield a delay", attempt)
		}
	}
}

func TestPolicyFromSeconds(t *testing.T) {
	policy, err := PolicyFromSeconds([]int{10, 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.MaxAttempts() != 3 {
		t.Errorf("expected 3 max attempts, got %d", policy.MaxAttempts())
	}
	if delay, ok := policy.NextDelay(2); !ok || delay != 20*time.Second {
		t.Errorf("expected 20s delay on second attempt, got %s (ok=%v)", delay, ok)
	}
}

func TestPolicyFromSecondsRejectsBadInput(t *testing.T) {
	if _, err := PolicyFromSeconds(nil); err == nil {
		t.Error("empty delays should be rejected")
	}
	if _, err := PolicyFromSeconds([]int{60, 0}); err == nil {
		t.Error("zero delay should be rejected")
	}
	if _, err := PolicyFromSeconds([]int{-5}); err == nil {
		t.Error("negative delay should be rejected")
	}
}
