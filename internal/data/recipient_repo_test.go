package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/testutil"
)

func TestRecipientRepo_ListPending(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("returns pending rows for one channel in id order", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)

			pending, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Limit:   10,
			})
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "mensah@example.com", pending[0].Address)
			assert.Equal(t, "owusu@example.com", pending[1].Address)
			assert.Less(t, pending[0].ID, pending[1].ID)
			for _, rec := range pending {
				assert.Equal(t, model.ChannelEmail, rec.Channel)
				assert.Equal(t, model.RecipientStatusPending, rec.Status)
			}
		})
	})

	t.Run("excludes rows with an outcome", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)
			all, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Limit:   10,
			})
			require.NoError(t, err)
			require.Len(t, all, 3)

			ok, err := recipients.MarkSent(ctx, core.RecipientKey{
				ID: all[0].ID, JobID: job.ID, Channel: model.ChannelSMS,
			})
			require.NoError(t, err)
			require.True(t, ok)

			remaining, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Limit:   10,
			})
			require.NoError(t, err)
			assert.Len(t, remaining, 2)
		})
	})

	t.Run("applies the batch limit", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)

			job := createBroadcastJob(t, jobs)
			batch, err := recipients.ListPending(context.Background(), core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Limit:   2,
			})
			require.NoError(t, err)
			assert.Len(t, batch, 2)
		})
	})
}

func TestRecipientRepo_MarkSent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("marks the row and bumps the channel counter", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)
			pending, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Limit:   10,
			})
			require.NoError(t, err)

			ok, err := recipients.MarkSent(ctx, core.RecipientKey{
				ID: pending[0].ID, JobID: job.ID, Channel: model.ChannelEmail,
			})
			require.NoError(t, err)
			assert.True(t, ok)

			after, err := jobs.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, after.EmailSentCount)
			assert.Equal(t, 0, after.SMSSentCount)

			page, err := recipients.Page(ctx, core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Page:    1,
			})
			require.NoError(t, err)
			assert.Equal(t, model.RecipientStatusSent, page.Results[0].Status)
			assert.NotNil(t, page.Results[0].SentAt)
		})
	})

	t.Run("returns false for a row already marked", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)
			pending, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Limit:   10,
			})
			require.NoError(t, err)

			key := core.RecipientKey{ID: pending[0].ID, JobID: job.ID, Channel: model.ChannelEmail}
			ok, err := recipients.MarkSent(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)

			// Second marking is a no-op and must not double-count.
			ok, err = recipients.MarkSent(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			after, err := jobs.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, after.EmailSentCount)
		})
	})

	t.Run("rejects an invalid channel", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			recipients := NewRecipientRepo(db)

			_, err := recipients.MarkSent(context.Background(), core.RecipientKey{
				ID: 1, JobID: "whatever", Channel: model.Channel("fax"),
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid channel")
		})
	})
}

func TestRecipientRepo_MarkFailed(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("records the delivery error and bumps the failed counter", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)
			pending, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Limit:   10,
			})
			require.NoError(t, err)

			ok, err := recipients.MarkFailed(ctx, core.RecipientKey{
				ID: pending[0].ID, JobID: job.ID, Channel: model.ChannelSMS,
			}, "number unreachable")
			require.NoError(t, err)
			assert.True(t, ok)

			after, err := jobs.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, after.SMSFailedCount)
			assert.Equal(t, 0, after.EmailFailedCount)

			page, err := recipients.Page(ctx, core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Page:    1,
			})
			require.NoError(t, err)
			assert.Equal(t, model.RecipientStatusFailed, page.Results[0].Status)
			assert.Equal(t, "number unreachable", page.Results[0].ErrorMessage)
			assert.Nil(t, page.Results[0].SentAt)
		})
	})

	t.Run("returns false for a row already marked", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job := createBroadcastJob(t, jobs)
			pending, err := recipients.ListPending(ctx, core.ListPendingRecipientsParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Limit:   10,
			})
			require.NoError(t, err)

			key := core.RecipientKey{ID: pending[0].ID, JobID: job.ID, Channel: model.ChannelSMS}
			ok, err := recipients.MarkFailed(ctx, key, "number unreachable")
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = recipients.MarkFailed(ctx, key, "second error")
			require.NoError(t, err)
			assert.False(t, ok)

			after, err := jobs.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, after.SMSFailedCount)
		})
	})
}

func TestRecipientRepo_Page(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("pages in dispatch order", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			// 12 SMS recipients spill onto a second page of 10.
			recs := make([]model.Recipient, 0, 12)
			for i := range 12 {
				recs = append(recs, model.Recipient{
					Channel:       model.ChannelSMS,
					ResidenceID:   int64(i + 1),
					ResidenceName: fmt.Sprintf("Household %d", i+1),
					HouseNumber:   fmt.Sprintf("H%d", i+1),
					Address:       fmt.Sprintf("+23320%07d", i+1),
				})
			}
			job, err := jobs.Create(ctx, core.CreateMessageJobParams{
				Request:    testutil.SMSJobRequest(),
				Recipients: recs,
			})
			require.NoError(t, err)

			first, err := recipients.Page(ctx, core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Page:    1,
			})
			require.NoError(t, err)
			assert.Equal(t, 12, first.Count)
			assert.True(t, first.Next)
			assert.Equal(t, 1, first.Page)
			require.Len(t, first.Results, 10)
			assert.Equal(t, "+233200000001", first.Results[0].Address)

			second, err := recipients.Page(ctx, core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelSMS,
				Page:    2,
			})
			require.NoError(t, err)
			assert.False(t, second.Next)
			require.Len(t, second.Results, 2)
			assert.Equal(t, "+233200000011", second.Results[0].Address)
		})
	})

	t.Run("clamps page to one", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)

			job := createBroadcastJob(t, jobs)
			page, err := recipients.Page(context.Background(), core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Page:    0,
			})
			require.NoError(t, err)
			assert.Equal(t, 1, page.Page)
			assert.Len(t, page.Results, 2)
		})
	})

	t.Run("returns an empty page for a channel without rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobs := NewMessageJobRepo(db, RepoConfig{})
			recipients := NewRecipientRepo(db)
			ctx := context.Background()

			job, err := jobs.Create(ctx, core.CreateMessageJobParams{
				Request: testutil.SMSJobRequest(),
				Recipients: []model.Recipient{{
					Channel:     model.ChannelSMS,
					ResidenceID: 1,
					Address:     "+233201111111",
				}},
			})
			require.NoError(t, err)

			page, err := recipients.Page(ctx, core.RecipientPageParams{
				JobID:   job.ID,
				Channel: model.ChannelEmail,
				Page:    1,
			})
			require.NoError(t, err)
			assert.Equal(t, 0, page.Count)
			assert.False(t, page.Next)
			assert.Empty(t, page.Results)
		})
	})
}
