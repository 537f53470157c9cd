package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidsaver/vidsaver/queue"
)

func TestPublicStatusVocabulary(t *testing.T) {
	cases := map[queue.JobStatus]string{
		queue.JobStatusQueued:     "queued",
		queue.JobStatusInProgress: "downloading",
		queue.JobStatusCompleted:  "completed",
		queue.JobStatusFailed:     "failed",
	}
	for internal, public := range cases {
		assert.Equal(t, public, publicStatus(internal))
	}
}

func TestInternalStatusRoundTrip(t *testing.T) {
	for _, public := range []string{"queued", "downloading", "completed", "failed"} {
		assert.Equal(t, public, publicStatus(internalStatus(public)),
			"status %s should round-trip", public)
	}
}

func TestJobViewNotBeforeOnlyWhileQueued(t *testing.T) {
	job := queue.NewJob("https://example.com/v", "alice")
	job.NotBefore = time.Now().Add(time.Minute)

	view := newJobView(job)
	require.NotNil(t, view.NotBefore, "queued job should expose not_before")

	job.Status = queue.JobStatusInProgress
	view = newJobView(job)
	assert.Nil(t, view.NotBefore, "not_before is meaningless once downloading")
}

func TestJobViewCarriesResult(t *testing.T) {
	job := queue.NewJob("https://example.com/v", "alice")
	job.Status = queue.JobStatusCompleted
	job.ResultPath = "/videos/clip.mp4"
	job.ResultSize = 4096

	view := newJobView(job)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, "/videos/clip.mp4", view.ResultPath)
	assert.Equal(t, int64(4096), view.ResultSize)
}
