package queue

import (
	"time"

	"github.com/vidsaver/vidsaver/errors"
)

// Policy is the retry schedule for failed download attempts: an ordered
// list of delays, one per retry. A job that has made attempt_count
// attempts and fails retryably waits Delays[attempt_count-1] before
// becoming eligible again; once attempt_count exceeds len(Delays) the
// failure is terminal.
//
// Pure decision logic, no side effects. Keeping this isolated from the
// store and the worker is what makes the retry behavior independently
// testable.
type Policy struct {
	Delays []time.Duration
}

// DefaultPolicy returns the standard schedule: 1m, 5m, 15m.
func DefaultPolicy() Policy {
	return Policy{Delays: []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}}
}

// PolicyFromSeconds builds a Policy from delays expressed in seconds,
// as they appear in configuration.
func PolicyFromSeconds(seconds []int) (Policy, error) {
	if len(seconds) == 0 {
		return Policy{}, errors.New("retry delays cannot be empty")
	}
	delays := make([]time.Duration, 0, len(seconds))
	for _, s := range seconds {
		if s <= 0 {
			return Policy{}, errors.Newf("retry delay must be positive, got %d", s)
		}
		delays = append(delays, time.Duration(s)*time.Second)
	}
	return Policy{Delays: delays}, nil
}

// MaxAttempts returns the total number of attempts a job may make before
// it is terminally failed: the initial attempt plus one per delay.
func (p Policy) MaxAttempts() int {
	return len(p.Delays) + 1
}

// NextDelay decides what happens after a retryable failure on the given
// attempt (1-based count of attempts made so far). It returns the delay
// before the job becomes eligible again, or ok=false when retries are
// exhausted and the failure is terminal.
func (p Policy) NextDelay(attemptCount int) (delay time.Duration, ok bool) {
	if attemptCount < 1 || attemptCount > len(p.Delays) {
		return 0, false
	}
	return p.Delays[attemptCount-1], true
}
