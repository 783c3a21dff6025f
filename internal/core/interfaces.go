package core

import (
	"context"
	"time"

	"github.com/gagyekum/residency/internal/domain/model"
)

// Repository interfaces are the seams between the service layer and the data
// layer. Services depend on these, never on the concrete repos.

// CreateMessageJobParams carries the job content together with its resolved
// recipient rows so both are written in one transaction.
type CreateMessageJobParams struct {
	Request    *model.CreateMessageJobRequest
	Recipients []model.Recipient
}

// MessageJobRepository defines the interface for message job data operations.
type MessageJobRepository interface {
	// Create persists the job and all of its recipient rows atomically. A job
	// with zero recipients is written directly as completed.
	Create(ctx context.Context, params CreateMessageJobParams) (*model.MessageJob, error)
	GetByID(ctx context.Context, id string) (*model.MessageJob, error)

	// MarkProcessing transitions the job into processing, setting started_at on
	// the first transition only. Returns ErrJobProcessing when a dispatcher
	// already owns the job.
	MarkProcessing(ctx context.Context, id string) (*model.MessageJob, error)

	// Complete transitions a processing job to completed once no recipient
	// remains pending. Returns ErrJobNotFinished when pending rows still exist.
	Complete(ctx context.Context, id string) (*model.MessageJob, error)

	// Fail records a job-level fault. Recipients not yet attempted stay pending.
	Fail(ctx context.Context, id, errMsg string) (*model.MessageJob, error)

	// Retry re-arms a non-processing job in one transaction: failed recipients
	// across all channels are reset to pending (clearing error_message and
	// sent_at), the per-channel failed counters are decremented by the number
	// reset, and the job re-enters processing. Returns ErrJobProcessing while a
	// dispatcher owns the job and ErrNothingToRetry when there is no failed and
	// no pending recipient.
	Retry(ctx context.Context, id string) (*model.MessageJob, error)

	List(ctx context.Context, opts model.MessageJobsListOptions) ([]*model.MessageJob, int, error)
	Stats(ctx context.Context) (*model.MessageJobStats, error)
}

// ListPendingRecipientsParams bounds one ListPending read.
type ListPendingRecipientsParams struct {
	JobID   string
	Channel model.Channel
	Limit   int
}

// RecipientKey identifies one recipient row within its job and channel.
type RecipientKey struct {
	ID      int64
	JobID   string
	Channel model.Channel
}

// RecipientPageParams groups parameters for Page. Page numbering starts at 1.
type RecipientPageParams struct {
	JobID   string
	Channel model.Channel
	Page    int
}

// RecipientRepository defines the interface for recipient data operations.
type RecipientRepository interface {
	// ListPending returns up to Limit pending recipients for one channel of one
	// job in ascending id order, which keeps dispatch order stable.
	ListPending(ctx context.Context, params ListPendingRecipientsParams) ([]*model.Recipient, error)

	// MarkSent flips a pending recipient to sent and increments the job's sent
	// counter for the channel in the same transaction. Returns false when the
	// row was not pending anymore.
	MarkSent(ctx context.Context, key RecipientKey) (bool, error)

	// MarkFailed flips a pending recipient to failed with the delivery error and
	// increments the job's failed counter for the channel in the same
	// transaction. Returns false when the row was not pending anymore.
	MarkFailed(ctx context.Context, key RecipientKey, errMsg string) (bool, error)

	// Page returns one fixed-size page of a job's recipients for one channel.
	Page(ctx context.Context, params RecipientPageParams) (*model.RecipientPage, error)
}

// ResidenceRepository defines the interface for residence directory operations.
type ResidenceRepository interface {
	Create(ctx context.Context, req *model.CreateResidenceRequest) (*model.Residence, error)
	GetByID(ctx context.Context, id int64) (*model.Residence, error)
	List(ctx context.Context, opts model.ResidencesListOptions) ([]*model.Residence, int, error)
	Update(ctx context.Context, id int64, req model.UpdateResidenceRequest) (*model.Residence, error)
	Delete(ctx context.Context, id int64) (bool, error)

	// ListChannelTargets returns one delivery target per (residence, address)
	// pair for every residence with at least one address on the channel,
	// ordered by residence id then address id.
	ListChannelTargets(ctx context.Context, channel model.Channel) ([]model.DeliveryTarget, error)
}

// DeleteOldJobsParams bounds one retention delete pass.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// JanitorRepository defines the interface for job cleanup operations.
type JanitorRepository interface {
	// FailStaleProcessingJobs marks processing jobs with no write activity for
	// maxAge as failed. A restarted process has no dispatcher for them, so they
	// would otherwise sit in processing forever. Staleness is judged on the last
	// write rather than started_at because an actively dispatching job keeps
	// touching its row. Processes up to batchSize jobs per call and returns the
	// number of jobs marked as failed.
	FailStaleProcessingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given terminal status older than
	// maxAge, cascading to their recipient rows. Processes up to batchSize jobs
	// per call and returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// DispatchLauncher starts background dispatch work for a job. The originating
// request returns as soon as the launch bookkeeping is done; delivery happens
// on the dispatcher's own goroutines.
type DispatchLauncher interface {
	// Launch transitions the job into processing and starts a dispatcher for it.
	Launch(ctx context.Context, jobID string) (*model.MessageJob, error)

	// Resume starts a dispatcher for a job that is already marked processing,
	// which is the retry path: the retry transaction re-armed the rows and the
	// dispatcher only has to drain them.
	Resume(ctx context.Context, job *model.MessageJob) error
}
