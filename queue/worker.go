package queue

import (
	"context"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/vidsaver/vidsaver/errors"
)

// Fetcher is the external content fetcher: given a URL and an output
// directory it either produces a file or fails with a descriptive error.
// Implementations must honor context cancellation; the worker wraps every
// call in a per-job timeout.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, destDir string) (Result, error)
}

// RetryClassifier decides whether a fetch error is worth retrying.
// Returning false short-circuits the job to terminal failure regardless of
// remaining attempts.
type RetryClassifier func(err error) bool

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`        // Concurrency ceiling for in-flight fetches
	PollInterval time.Duration `json:"poll_interval"`  // How often to check for eligible jobs
	JobTimeout   time.Duration `json:"job_timeout"`    // Hard timeout per fetch attempt
	DownloadDir  string        `json:"download_dir"`   // Root directory handed to the fetcher
	MinFreeBytes uint64        `json:"min_free_bytes"` // Free-space floor below which dispatch is deferred
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		PollInterval: 5 * time.Second,
		JobTimeout:   300 * time.Second,
		MinFreeBytes: 512 * 1024 * 1024, // 512 MB
	}
}

const (
	stopTimeout     = 30 * time.Second
	maxStoreBackoff = 30 * time.Second
)

// WorkerPool owns the download queue's processing side: it polls the store
// for eligible jobs, enforces the concurrency ceiling, invokes the fetcher
// with a timeout, and writes every outcome back through the store. It is
// constructed once at process start and holds all of its state explicitly;
// there are no package-level workers or counters.
type WorkerPool struct {
	store      *Store
	fetcher    Fetcher
	retryable  RetryClassifier
	policy     Policy
	poolConfig WorkerPoolConfig

	freeBytes func(path string) (uint64, error) // Injectable for testing

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	wake      chan struct{}
	logger    *zap.SugaredLogger

	mu     sync.Mutex
	active int // Fetches currently in flight
}

// NewWorkerPool creates a worker pool bound to the given store and fetcher.
// The parent context governs shutdown: cancelling it stops the pool.
func NewWorkerPool(ctx context.Context, store *Store, fetcher Fetcher, retryable RetryClassifier, policy Policy, cfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultWorkerPoolConfig().JobTimeout
	}

	return &WorkerPool{
		store:      store,
		fetcher:    fetcher,
		retryable:  retryable,
		policy:     policy,
		poolConfig: cfg,
		freeBytes:  diskFreeBytes,
		parentCtx:  ctx,
		ctx:        workerCtx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		logger:     logger.Named("worker"),
	}
}

// Start runs crash recovery and then begins the polling loop.
// Recovery must complete before any job is claimed: rows stranded in
// in_progress by an unclean shutdown are returned to circulation first.
func (wp *WorkerPool) Start() error {
	// Check if context was cancelled (after Stop()) - if so, create new one
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
	default:
	}

	recovered, err := wp.store.ResetStuckJobs()
	if err != nil {
		return err
	}
	if recovered > 0 {
		wp.logger.Warnw("Recovered jobs stranded in progress by previous shutdown",
			"count", recovered)
	}

	wp.wg.Add(1)
	go wp.run()

	wp.logger.Infow("Worker pool started",
		"workers", wp.poolConfig.Workers,
		"poll_interval", wp.poolConfig.PollInterval,
		"job_timeout", wp.poolConfig.JobTimeout)
	return nil
}

// Stop gracefully stops the worker pool, waiting up to 30 seconds for
// in-flight fetches to finish recording their outcome.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped cleanly")
	case <-time.After(stopTimeout):
		wp.logger.Warnw("Worker pool stop timed out, fetches may still be in flight",
			"timeout", stopTimeout)
	}
}

// Wake nudges the poll loop to check for work immediately. Called on
// submission so fresh jobs don't wait out a full poll interval. Purely an
// optimization: correctness rests on the polling loop alone.
func (wp *WorkerPool) Wake() {
	select {
	case wp.wake <- struct{}{}:
	default:
	}
}

// run is the poll loop. Per-job errors are always handled locally; only
// store-level failures surface here, and they back off exponentially while
// the loop keeps retrying the store, never the process.
func (wp *WorkerPool) run() {
	defer wp.wg.Done()

	ticker := jitterbug.New(wp.poolConfig.PollInterval,
		&jitterbug.Norm{Stdev: 100 * time.Millisecond})
	defer ticker.Stop()

	storeErrors := 0
	backoff := time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-wp.wake:
		case <-ticker.C:
		}

		if err := wp.dispatch(); err != nil {
			select {
			case <-wp.ctx.Done():
				return // Shutdown in progress, store errors are expected
			default:
			}

			storeErrors++
			wp.logger.Errorw("Failed to claim work from store",
				"error", err,
				"consecutive_errors", storeErrors,
				"backoff", backoff)
			select {
			case <-wp.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxStoreBackoff {
				backoff = maxStoreBackoff
			}
			continue
		}

		if storeErrors > 0 {
			wp.logger.Infow("Store reachable again", "previous_error_count", storeErrors)
		}
		storeErrors = 0
		backoff = time.Second
	}
}

// dispatch claims as many eligible jobs as the concurrency ceiling allows
// and launches a goroutine per claim.
func (wp *WorkerPool) dispatch() error {
	wp.mu.Lock()
	capacity := wp.poolConfig.Workers - wp.active
	wp.mu.Unlock()
	if capacity <= 0 {
		return nil
	}

	jobs, err := wp.store.ClaimNext(capacity)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		wp.mu.Lock()
		wp.active++
		wp.mu.Unlock()

		wp.wg.Add(1)
		go func(job *Job) {
			defer wp.wg.Done()
			defer func() {
				wp.mu.Lock()
				wp.active--
				wp.mu.Unlock()
			}()
			wp.process(job)
		}(job)
	}
	return nil
}

// process runs a single claimed job through fetch and outcome recording.
// Every path out of here writes exactly one outcome to the store.
func (wp *WorkerPool) process(job *Job) {
	log := wp.logger.With("job_id", job.ID, "url", job.SourceURL, "attempt", job.AttemptCount)

	// Resource precondition: skip the fetch entirely when storage is low,
	// and let the retry schedule pace the re-check instead of busy-looping.
	if free, err := wp.freeBytes(wp.poolConfig.DownloadDir); err == nil && free < wp.poolConfig.MinFreeBytes {
		log.Warnw("Insufficient free storage, deferring job",
			"free_bytes", free,
			"min_free_bytes", wp.poolConfig.MinFreeBytes)
		wp.recordFailure(job, ErrInsufficientStorage, false, log)
		return
	}

	ctx, cancel := context.WithTimeout(wp.ctx, wp.poolConfig.JobTimeout)
	defer cancel()

	log.Infow("Starting download")
	result, err := wp.fetcher.Fetch(ctx, job.SourceURL, wp.poolConfig.DownloadDir)
	if err != nil {
		// Shutdown cancellation is not a job failure: leave the row
		// in_progress and let the next startup's recovery re-queue it
		// without burning an attempt.
		select {
		case <-wp.ctx.Done():
			log.Infow("Fetch cancelled by shutdown, leaving job for recovery")
			return
		default:
		}

		terminal := !wp.retryable(err)
		wp.recordFailure(job, err, terminal, log)
		return
	}

	if err := wp.store.RecordSuccess(job.ID, result); err != nil {
		log.Errorw("Failed to record success", "error", err)
		return
	}
	log.Infow("Download completed", "path", result.Path, "size", result.Size)
}

// recordFailure hands a failed attempt to the store, which consults the
// retry policy, and logs the decision.
func (wp *WorkerPool) recordFailure(job *Job, failure error, terminal bool, log *zap.SugaredLogger) {
	next, err := wp.store.RecordFailure(job.ID, failure, wp.policy, terminal)
	if err != nil {
		log.Errorw("Failed to record failure", "error", err, "job_error", failure)
		return
	}

	switch next {
	case JobStatusQueued:
		log.Warnw("Attempt failed, retry scheduled",
			"error", failure,
			"max_attempts", wp.policy.MaxAttempts())
	case JobStatusFailed:
		log.Errorw("Job failed permanently",
			"error", failure,
			"terminal", terminal)
	}
}

// Workers returns the configured concurrency ceiling.
func (wp *WorkerPool) Workers() int {
	return wp.poolConfig.Workers
}

// Active returns the number of fetches currently in flight.
func (wp *WorkerPool) Active() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.active
}

// ErrInsufficientStorage is recorded as a retryable failure when the
// free-space precondition fails, so low disk participates in backoff.
var ErrInsufficientStorage = errors.New("insufficient free storage for download")
