package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeParseBill extracts a bill from an uploaded document.
	JobTypeParseBill JobType = "parse_bill"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting for a worker, either for
	// the first time or after a failed attempt.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a worker is running the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed after its last retry.
	JobStatusFailed JobStatus = "failed"
)

// DefaultMaxRetries is used when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// ParseBillJob asks a worker to extract and store the bill behind an
// uploaded document.
type ParseBillJob struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	GCSURI   string `json:"gcs_uri"`
	Filename string `json:"filename"`

	// BillID is set once the bill has been stored.
	BillID string `json:"bill_id,omitempty"`
	// Duplicate reports that the user already had a bill for this document.
	Duplicate bool `json:"duplicate,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last failure, kept while retrying.
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ParseBillJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ParseBillJob) GetType() JobType {
	return JobTypeParseBill
}

// GetStatus implements the Job interface.
func (j *ParseBillJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishParseBill enqueues a bill parsing job.
	PublishParseBill(ctx context.Context, job *ParseBillJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error schedules a retry until the
// job runs out of retries.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status queries.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ParseBillJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ParseBillJob, error)

	// ListJobs retrieves jobs newest first with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseBillJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
