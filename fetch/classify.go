package fetch

import (
	"context"
	"strings"

	"github.com/vidsaver/vidsaver/errors"
)

// Classifier decides whether a fetch error is retryable. Non-retryable
// errors short-circuit a job to terminal failure without burning the rest
// of its attempt budget.
//
// The pattern list is configuration, not gospel: fetcher error strings
// drift across tool versions, so deployments can extend or replace the
// defaults rather than relying on hard-coded matching.
type Classifier struct {
	nonRetryable []string
}

// DefaultNonRetryablePatterns are error substrings that indicate the URL
// itself is the problem, so retrying can never succeed.
func DefaultNonRetryablePatterns() []string {
	return []string{
		"unsupported url",
		"is not a valid url",
		"video unavailable",
		"private video",
		"account has been terminated",
		"http error 404",
		"http error 410",
	}
}

// NewClassifier creates a classifier with the given non-retryable
// patterns. Nil or empty patterns fall back to the defaults.
func NewClassifier(nonRetryable []string) *Classifier {
	if len(nonRetryable) == 0 {
		nonRetryable = DefaultNonRetryablePatterns()
	}
	lowered := make([]string, 0, len(nonRetryable))
	for _, p := range nonRetryable {
		lowered = append(lowered, strings.ToLower(p))
	}
	return &Classifier{nonRetryable: lowered}
}

// Retryable reports whether the error is worth another attempt.
// Timeouts and cancellations are always retryable: they say nothing about
// the URL, only about this attempt.
func (c *Classifier) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range c.nonRetryable {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	return true
}
