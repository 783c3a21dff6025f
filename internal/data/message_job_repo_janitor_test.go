package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/testutil"
)

func TestMessageJobRepo_FailStaleProcessingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails stale processing jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// A processing job whose dispatcher died two hours ago
			stale := createBroadcastJob(t, repo)
			_, err := repo.MarkProcessing(ctx, stale.ID)
			require.NoError(t, err)
			_, err = db.ExecContext(ctx, `
				UPDATE message_jobs
				SET updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-2*time.Hour), stale.ID)
			require.NoError(t, err)

			// A processing job with recent write activity
			active := createBroadcastJob(t, repo)
			_, err = repo.MarkProcessing(ctx, active.ID)
			require.NoError(t, err)

			count, err := repo.FailStaleProcessingJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			staleAfter, err := repo.GetByID(ctx, stale.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, staleAfter.Status)
			assert.Contains(t, staleAfter.ErrorMessage, "timed out in processing status")
			assert.NotNil(t, staleAfter.CompletedAt)

			activeAfter, err := repo.GetByID(ctx, active.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusProcessing, activeAfter.Status)
		})
	})

	t.Run("leaves non-processing jobs alone", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// An old pending job is launch backlog, not dispatcher loss.
			pending := createBroadcastJob(t, repo)
			_, err := db.ExecContext(ctx, `
				UPDATE message_jobs
				SET updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-2*time.Hour), pending.ID)
			require.NoError(t, err)

			count, err := repo.FailStaleProcessingJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			after, err := repo.GetByID(ctx, pending.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, after.Status)
		})
	})

	t.Run("respects the batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			for range 3 {
				job := createBroadcastJob(t, repo)
				_, err := repo.MarkProcessing(ctx, job.ID)
				require.NoError(t, err)
				_, err = db.ExecContext(ctx, `
					UPDATE message_jobs
					SET updated_at = $1
					WHERE id = $2
				`, time.Now().Add(-2*time.Hour), job.ID)
				require.NoError(t, err)
			}

			count, err := repo.FailStaleProcessingJobs(ctx, 1*time.Hour, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			stats, err := repo.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Processing)
			assert.Equal(t, 2, stats.Failed)
		})
	})
}

func TestMessageJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old completed jobs with their recipients", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, repo)
			_, err := repo.MarkProcessing(ctx, job.ID)
			require.NoError(t, err)
			markAllPending(t, recipients, job.ID, model.ChannelEmail, false)
			markAllPending(t, recipients, job.ID, model.ChannelSMS, false)
			_, err = repo.Complete(ctx, job.ID)
			require.NoError(t, err)

			// Age the job past the retention window (8 days)
			oldTime := time.Now().Add(-8 * 24 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE message_jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, oldTime, job.ID)
			require.NoError(t, err)

			count := deleteOldJobs(t, repo, model.JobStatusCompleted, 7*24*time.Hour)
			assert.Equal(t, int64(1), count)

			_, err = repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)

			// Recipient rows went with the job via cascade.
			var orphaned int
			err = db.QueryRowContext(ctx, `
				SELECT count(*) FROM message_recipients WHERE job_id = $1
			`, job.ID).Scan(&orphaned)
			require.NoError(t, err)
			assert.Equal(t, 0, orphaned)
		})
	})

	t.Run("deletes old failed jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job := createBroadcastJob(t, repo)
			_, err := repo.MarkProcessing(ctx, job.ID)
			require.NoError(t, err)
			_, err = repo.Fail(ctx, job.ID, "email transport is not configured")
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `
				UPDATE message_jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-8*24*time.Hour), job.ID)
			require.NoError(t, err)

			count := deleteOldJobs(t, repo, model.JobStatusFailed, 7*24*time.Hour)
			assert.Equal(t, int64(1), count)

			_, err = repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("does not delete recent jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Zero-recipient jobs complete on create.
			job, err := repo.Create(ctx, core.CreateMessageJobParams{
				Request: testutil.EmailJobRequest(),
			})
			require.NoError(t, err)

			count := deleteOldJobs(t, repo, model.JobStatusCompleted, 7*24*time.Hour)
			assert.Equal(t, int64(0), count)

			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("does not delete jobs with a different status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateMessageJobParams{
				Request: testutil.EmailJobRequest(),
			})
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `
				UPDATE message_jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-8*24*time.Hour), job.ID)
			require.NoError(t, err)

			// Job is completed, not failed.
			count := deleteOldJobs(t, repo, model.JobStatusFailed, 7*24*time.Hour)
			assert.Equal(t, int64(0), count)

			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("rejects a non-terminal status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewMessageJobRepo(db, RepoConfig{})

			_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
				Status:    model.JobStatusProcessing,
				MaxAge:    time.Hour,
				BatchSize: 50,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "cannot delete jobs in processing status")
		})
	})
}

// deleteOldJobs runs a retention sweep and fails the test on repository errors.
func deleteOldJobs(t *testing.T, repo *MessageJobRepo, status model.JobStatus, maxAge time.Duration) int64 {
	t.Helper()

	count, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
		Status:    status,
		MaxAge:    maxAge,
		BatchSize: 1000,
	})
	require.NoError(t, err)
	return count
}
