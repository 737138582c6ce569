package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/bill-intelligence/internal/jobs"
	"github.com/dvloznov/bill-intelligence/internal/logger"
)

// Default queue sizing.
const (
	DefaultWorkerCount  = 5
	DefaultBufferSize   = 100
	DefaultRetryBackoff = time.Second
)

// Queue is a channel-backed job publisher and consumer for a single
// instance. It is safe for concurrent use.
type Queue struct {
	jobChan     chan *jobs.ParseBillJob
	closeChan   chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	store       jobs.JobStore
	workerCount int
	closed      bool

	// RetryBackoff is multiplied by the retry number before a failed job is
	// queued again.
	RetryBackoff time.Duration
}

var errQueueClosed = errors.New("queue is closed")

// NewQueue creates a new in-memory job queue. bufferSize bounds how many jobs
// wait before PublishParseBill blocks; workerCount is the number of
// concurrent workers started by Start. Non-positive values use the defaults.
func NewQueue(bufferSize, workerCount int, store jobs.JobStore) *Queue {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Queue{
		jobChan:      make(chan *jobs.ParseBillJob, bufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workerCount:  workerCount,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// PublishParseBill implements the Publisher interface. The caller's job gets
// its ID and queued status; workers operate on a separate copy.
func (q *Queue) PublishParseBill(ctx context.Context, job *jobs.ParseBillJob) error {
	if q.isClosed() {
		return errQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	return q.enqueue(ctx, copyJob(job))
}

// enqueue sends job to the workers. It never holds q.mu while blocked so
// that Stop can always close the queue.
func (q *Queue) enqueue(ctx context.Context, job *jobs.ParseBillJob) error {
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return errQueueClosed
	}
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isClosed() {
		return errQueueClosed
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt of a job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.ParseBillJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("user_id", job.UserID).
		Int("attempt", job.RetryCount+1).
		Logger()

	job.Status = jobs.JobStatusProcessing
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	if err == nil {
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Str("bill_id", job.BillID).Msg("Job completed")
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Msg("Job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusQueued
	job.StartedAt = nil
	q.save(ctx, job)
	log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job attempt failed, retrying")

	backoff := time.Duration(job.RetryCount) * q.RetryBackoff
	time.AfterFunc(backoff, func() {
		if err := q.requeue(job); err != nil {
			log.Warn().Err(err).Msg("Could not requeue job")
		}
	})
}

// requeue puts a retried job back on the channel without resetting its
// retry bookkeeping.
func (q *Queue) requeue(job *jobs.ParseBillJob) error {
	if q.isClosed() {
		return errQueueClosed
	}
	return q.enqueue(context.Background(), job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ParseBillJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface. It waits for in-flight jobs or
// until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
