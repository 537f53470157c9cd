package fetch

import (
	"context"
	"testing"

	"github.com/vidsaver/vidsaver/errors"
)

func TestDefaultClassifier(t *testing.T) {
	c := NewClassifier(nil)

	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"network failure", errors.New("connection reset by peer"), true},
		{"transient http", errors.New("HTTP Error 503: Service Unavailable"), true},
		{"unsupported url", errors.New("ERROR: Unsupported URL: https://example.com"), false},
		{"invalid url", errors.New("'xyz' is not a valid URL"), false},
		{"removed video", errors.New("ERROR: Video unavailable"), false},
		{"private video", errors.New("Private video. Sign in if you've been granted access"), false},
		{"gone", errors.New("HTTP Error 410: Gone"), false},
		{"not found", errors.New("HTTP Error 404: Not Found"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Retryable(tc.err); got != tc.retryable {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

// Timeouts say nothing about the URL, so they must stay retryable even
// when the wrapped message happens to contain a non-retryable pattern.
func TestTimeoutsAlwaysRetryable(t *testing.T) {
	c := NewClassifier(nil)

	if !c.Retryable(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be retryable")
	}
	if !c.Retryable(context.Canceled) {
		t.Error("cancellation should be retryable")
	}

	wrapped := errors.Wrap(context.DeadlineExceeded, "video unavailable during fetch")
	if !c.Retryable(wrapped) {
		t.Error("wrapped timeout should stay retryable")
	}
}

func TestCustomPatternsReplaceDefaults(t *testing.T) {
	c := NewClassifier([]string{"Copyright Claim"})

	if c.Retryable(errors.New("blocked: copyright claim by rights holder")) {
		t.Error("custom pattern should match case-insensitively")
	}
	// Defaults are replaced, not merged.
	if !c.Retryable(errors.New("Video unavailable")) {
		t.Error("default patterns should not apply once overridden")
	}
}
