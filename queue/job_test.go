package queue

import (
	"testing"
)

func TestNewJobDefaults(t *testing.T) {
	job := NewJob("https://example.com/watch?v=abc", "10.0.0.5")

	if job.ID == "" {
		t.Error("expected generated job ID")
	}
	if job.Status != JobStatusQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
	if job.AttemptCount != 0 {
		t.Errorf("expected attempt count 0, got %d", job.AttemptCount)
	}
	if job.NotBefore.After(job.CreatedAt) {
		t.Error("new job should be immediately eligible")
	}
	if job.Owner != "10.0.0.5" {
		t.Errorf("expected owner 10.0.0.5, got %s", job.Owner)
	}
}

func TestNewJobIDsAreUnique(t *testing.T) {
	a := NewJob("https://example.com/1", "owner")
	b := NewJob("https://example.com/1", "owner")
	if a.ID == b.ID {
		t.Error("two jobs for the same URL must get distinct IDs")
	}
}

func TestStatusTerminality(t *testing.T) {
	if JobStatusQueued.IsTerminal() || JobStatusInProgress.IsTerminal() {
		t.Error("queued and in_progress are not terminal")
	}
	if !JobStatusCompleted.IsTerminal() || !JobStatusFailed.IsTerminal() {
		t.Error("completed and failed are terminal")
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []string{"queued", "in_progress", "completed", "failed"} {
		if !IsValidStatus(s) {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []string{"", "downloading", "paused", "QUEUED"} {
		if IsValidStatus(s) {
			t.Errorf("%s should be invalid", s)
		}
	}
}
