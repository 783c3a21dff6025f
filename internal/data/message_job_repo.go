// Package data provides database access layer and repository implementations for the residency messaging system.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data/pgxutil"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrJobNotFound is returned when a message job is not found.
	ErrJobNotFound = errors.New("message job not found")
	// ErrJobProcessing is returned when an operation requires a job that no dispatcher currently owns.
	ErrJobProcessing = errors.New("message job is already processing")
	// ErrJobNotFinished is returned when completing a job that still has pending recipients.
	ErrJobNotFinished = errors.New("message job still has pending recipients")
	// ErrNothingToRetry is returned when a retry finds neither failed nor pending recipients.
	ErrNothingToRetry = errors.New("message job has no failed or pending recipients")
)

// RepoConfig holds configuration options for the data-layer repositories.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

// MessageJobRepo provides database operations for message job management.
type MessageJobRepo struct {
	DB     *sql.DB
	cfg    RepoConfig
	clock  Clock
	logger *slog.Logger
}

// NewMessageJobRepo creates a new MessageJobRepo instance with the given database connection and configuration.
func NewMessageJobRepo(db *sql.DB, cfg RepoConfig) *MessageJobRepo {
	clk := cfg.Clock
	if clk == nil {
		clk = systemClock{}
	}

	return &MessageJobRepo{
		DB:     db,
		cfg:    cfg,
		clock:  clk,
		logger: cfg.Logger,
	}
}

const messageJobColumns = `
  id,
  subject,
  body,
  sms_body,
  channels,
  sender,
  status,
  email_total_recipients,
  email_sent_count,
  email_failed_count,
  sms_total_recipients,
  sms_sent_count,
  sms_failed_count,
  error_message,
  created_at,
  updated_at,
  started_at,
  completed_at
`

// Create persists a job together with all of its recipient rows in one
// transaction. Per-channel totals are derived from the recipient set, so the
// stored counters can never disagree with the rows. A job that resolved zero
// recipients is written directly as completed.
func (r *MessageJobRepo) Create(
	ctx context.Context,
	params core.CreateMessageJobParams,
) (*model.MessageJob, error) {
	req := params.Request
	if req == nil {
		return nil, errors.New("create message job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	emailTotal, smsTotal := countRecipientsByChannel(params.Recipients)

	now := r.clock.Now().UTC()
	status := model.JobStatusPending
	var completedAt *time.Time
	if len(params.Recipients) == 0 {
		status = model.JobStatusCompleted
		completedAt = &now
	}

	id := uuid.New().String()
	var out model.MessageJob
	if err := pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				INSERT INTO message_jobs (
					id, subject, body, sms_body, channels, sender, status,
					email_total_recipients, sms_total_recipients,
					created_at, updated_at, completed_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11
				) RETURNING `+messageJobColumns,
				id,
				strings.TrimSpace(req.Subject),
				req.Body,
				req.SMSBody,
				req.Channels,
				strings.TrimSpace(req.Sender),
				status,
				emailTotal,
				smsTotal,
				now,
				completedAt,
			)
			if err != nil {
				return fmt.Errorf("insert message job: %w", err)
			}
			job, collectErr := collectMessageJobFromRows(rows)
			if collectErr != nil {
				return fmt.Errorf("collect message job: %w", collectErr)
			}
			out = *job

			return copyRecipients(ctx, tx, id, params.Recipients)
		},
	); err != nil {
		return nil, fmt.Errorf("create message job: %w", err)
	}
	return &out, nil
}

// copyRecipients bulk-loads recipient rows via COPY, which keeps enqueueing
// cheap even when the directory resolves to thousands of rows.
func copyRecipients(
	ctx context.Context,
	tx pgx.Tx,
	jobID string,
	recipients []model.Recipient,
) error {
	if len(recipients) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(recipients))
	for _, rec := range recipients {
		rows = append(rows, []any{
			jobID,
			rec.Channel,
			rec.ResidenceID,
			rec.ResidenceName,
			rec.HouseNumber,
			rec.Address,
			model.RecipientStatusPending,
		})
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"message_recipients"},
		[]string{
			"job_id",
			"channel",
			"residence_id",
			"residence_name",
			"house_number",
			"address",
			"status",
		},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to bulk copy recipients: %w", err)
	}
	return nil
}

func countRecipientsByChannel(recipients []model.Recipient) (emailTotal, smsTotal int) {
	for _, rec := range recipients {
		switch rec.Channel {
		case model.ChannelEmail:
			emailTotal++
		case model.ChannelSMS:
			smsTotal++
		}
	}
	return emailTotal, smsTotal
}

// GetByID retrieves a message job by ID.
func (r *MessageJobRepo) GetByID(ctx context.Context, id string) (*model.MessageJob, error) {
	var job model.MessageJob
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+messageJobColumns+`
			FROM message_jobs
			WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MessageJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get message job by ID: %w", err)
	}
	return &job, nil
}

// MarkProcessing transitions a job into processing. started_at is written only
// on the first transition, so a retried job keeps its original start time.
// Returns ErrJobProcessing when a dispatcher already owns the job.
func (r *MessageJobRepo) MarkProcessing(ctx context.Context, id string) (*model.MessageJob, error) {
	now := r.clock.Now().UTC()

	var job model.MessageJob
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE message_jobs
			SET status = 'processing',
			    started_at = COALESCE(started_at, $2),
			    updated_at = $2
			WHERE id = $1 AND status <> 'processing'
			RETURNING `+messageJobColumns,
			id, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MessageJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.explainMissedTransition(ctx, id, nil)
		}
		return nil, fmt.Errorf("failed to mark message job processing: %w", err)
	}
	return &job, nil
}

// Complete transitions a processing job to completed. The update is guarded by
// a subquery proving no pending recipient remains, so a racing writer can never
// complete a half-drained job. Returns ErrJobNotFinished when pending rows
// still exist.
func (r *MessageJobRepo) Complete(ctx context.Context, id string) (*model.MessageJob, error) {
	now := r.clock.Now().UTC()

	var job model.MessageJob
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE message_jobs
			SET status = 'completed',
			    completed_at = COALESCE(completed_at, $2),
			    updated_at = $2
			WHERE id = $1
			  AND status = 'processing'
			  AND NOT EXISTS (
			    SELECT 1 FROM message_recipients
			    WHERE job_id = $1 AND status = 'pending'
			  )
			RETURNING `+messageJobColumns,
			id, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MessageJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.explainMissedTransition(ctx, id, func(j *model.MessageJob) error {
				if j.Status == model.JobStatusProcessing {
					return ErrJobNotFinished
				}
				return nil
			})
		}
		return nil, fmt.Errorf("failed to complete message job: %w", err)
	}
	return &job, nil
}

// Fail records a job-level fault. Recipient rows are left untouched so a retry
// can pick up exactly where dispatch stopped. Completed jobs are never demoted.
func (r *MessageJobRepo) Fail(ctx context.Context, id, errMsg string) (*model.MessageJob, error) {
	now := r.clock.Now().UTC()

	var job model.MessageJob
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE message_jobs
			SET status = 'failed',
			    error_message = $2,
			    completed_at = COALESCE(completed_at, $3),
			    updated_at = $3
			WHERE id = $1 AND status <> 'completed'
			RETURNING `+messageJobColumns,
			id, errMsg, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MessageJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.explainMissedTransition(ctx, id, nil)
		}
		return nil, fmt.Errorf("failed to fail message job: %w", err)
	}
	return &job, nil
}

// Retry re-arms a job that no dispatcher owns, in a single transaction: failed
// recipients across both channels are reset to pending (clearing error_message
// and sent_at), the per-channel failed counters drop by the number reset, and
// the job re-enters processing. A failed job's leftover pending rows count as
// retryable work, so a job-level fault can resume where it stopped.
func (r *MessageJobRepo) Retry(ctx context.Context, id string) (*model.MessageJob, error) {
	now := r.clock.Now().UTC()

	var job model.MessageJob
	err := pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			// Locking the job row first serializes concurrent retries and keeps
			// the lock order consistent with the per-recipient counter updates.
			var status model.JobStatus
			if err := tx.QueryRow(ctx, `
				SELECT status FROM message_jobs WHERE id = $1 FOR UPDATE`, id,
			).Scan(&status); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrJobNotFound
				}
				return fmt.Errorf("lock message job: %w", err)
			}
			if status == model.JobStatusProcessing {
				return ErrJobProcessing
			}

			var emailReset, smsReset int
			if err := tx.QueryRow(ctx, `
				WITH reset AS (
					UPDATE message_recipients
					SET status = 'pending', error_message = '', sent_at = NULL
					WHERE job_id = $1 AND status = 'failed'
					RETURNING channel
				)
				SELECT
					count(*) FILTER (WHERE channel = 'email'),
					count(*) FILTER (WHERE channel = 'sms')
				FROM reset`, id,
			).Scan(&emailReset, &smsReset); err != nil {
				return fmt.Errorf("reset failed recipients: %w", err)
			}

			var pending int
			if err := tx.QueryRow(ctx, `
				SELECT count(*) FROM message_recipients
				WHERE job_id = $1 AND status = 'pending'`, id,
			).Scan(&pending); err != nil {
				return fmt.Errorf("count pending recipients: %w", err)
			}
			if pending == 0 {
				return ErrNothingToRetry
			}

			rows, err := tx.Query(ctx, `
				UPDATE message_jobs
				SET status = 'processing',
				    email_failed_count = email_failed_count - $2,
				    sms_failed_count = sms_failed_count - $3,
				    error_message = '',
				    started_at = COALESCE(started_at, $4),
				    updated_at = $4
				WHERE id = $1
				RETURNING `+messageJobColumns,
				id, emailReset, smsReset, now)
			if err != nil {
				return fmt.Errorf("re-arm message job: %w", err)
			}
			j, collectErr := collectMessageJobFromRows(rows)
			if collectErr != nil {
				return fmt.Errorf("collect message job: %w", collectErr)
			}
			job = *j
			return nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobProcessing) ||
			errors.Is(err, ErrNothingToRetry) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to retry message job: %w", err)
	}
	return &job, nil
}

// List retrieves message jobs newest first together with the total count.
func (r *MessageJobRepo) List(
	ctx context.Context,
	opts model.MessageJobsListOptions,
) ([]*model.MessageJob, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	var (
		rowsOut []model.MessageJob
		total   int
	)
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if err := conn.QueryRow(ctx, `SELECT count(*) FROM message_jobs`).Scan(&total); err != nil {
			return err
		}
		rows, err := conn.Query(ctx, `
			SELECT `+messageJobColumns+`
			FROM message_jobs
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.MessageJob])
		return err
	}); err != nil {
		return nil, 0, fmt.Errorf("failed to list message jobs: %w", err)
	}

	res := make([]*model.MessageJob, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, total, nil
}

// Stats returns job counts per lifecycle status in a single scan.
func (r *MessageJobRepo) Stats(ctx context.Context) (*model.MessageJobStats, error) {
	var stats model.MessageJobStats
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT
				count(*) FILTER (WHERE status = 'pending'),
				count(*) FILTER (WHERE status = 'processing'),
				count(*) FILTER (WHERE status = 'completed'),
				count(*) FILTER (WHERE status = 'failed')
			FROM message_jobs`,
		).Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed)
	}); err != nil {
		return nil, fmt.Errorf("failed to get message job stats: %w", err)
	}
	return &stats, nil
}

// explainMissedTransition resolves why a guarded status update matched no row:
// the job is gone, a dispatcher owns it, or (via check) a caller-specific
// condition holds. Falls back to reporting the status that blocked the update.
func (r *MessageJobRepo) explainMissedTransition(
	ctx context.Context,
	id string,
	check func(*model.MessageJob) error,
) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if check != nil {
		if checkErr := check(job); checkErr != nil {
			return checkErr
		}
	}
	if job.Status == model.JobStatusProcessing {
		return ErrJobProcessing
	}
	return fmt.Errorf("message job %s is %s", id, job.Status)
}

// collectMessageJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectMessageJobFromRows(rows pgx.Rows) (*model.MessageJob, error) {
	defer rows.Close()
	job, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MessageJob])
	if err != nil {
		return nil, err
	}
	return &job, nil
}
