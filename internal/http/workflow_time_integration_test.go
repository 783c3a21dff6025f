package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/service"
	"github.com/gagyekum/residency/internal/service/dispatch"
	"github.com/gagyekum/residency/internal/testutil"
	"github.com/gagyekum/residency/internal/testutil/workflowtest"
)

// newStackWithManualClock wires production services/handlers with
// repositories on a manual clock, so every timestamp the stack writes comes
// from the injected clock.
func newStackWithManualClock(t *testing.T, db *sql.DB, clk *data.ManualClock) *messagingStack {
	t.Helper()

	email := workflowtest.NewScriptedTransport("email")
	sms := workflowtest.NewScriptedTransport("sms")

	jobRepo := data.NewMessageJobRepo(db, data.RepoConfig{Clock: clk})
	recipientRepo := data.NewRecipientRepoWithClock(db, clk)
	residenceRepo := data.NewResidenceRepoWithClock(db, clk)

	coordinator := dispatch.MustNewCoordinator(dispatch.CoordinatorOptions{
		Jobs:        jobRepo,
		Recipients:  recipientRepo,
		Email:       email,
		SMS:         sms,
		EmailConfig: dispatch.ChannelConfig{BatchSize: 10},
		SMSConfig:   dispatch.ChannelConfig{BatchSize: 10},
	})

	messagingSvc := service.MustNewMessagingService(service.MessagingServiceOptions{
		Jobs:       jobRepo,
		Recipients: recipientRepo,
		Residences: residenceRepo,
		Launcher:   coordinator,
	})
	residenceSvc := service.NewResidenceService(service.ResidenceServiceOptions{
		Repo: residenceRepo,
	})

	ts := httptest.NewServer(NewRouter(RouterOptions{
		Messaging:  messagingSvc,
		Residences: residenceSvc,
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := coordinator.Shutdown(ctx); err != nil {
			t.Logf("dispatcher shutdown: %v", err)
		}
		ts.Close()
	})

	return &messagingStack{
		BaseURL: ts.URL,
		Email:   email,
		SMS:     sms,
		JobRepo: jobRepo,
	}
}

func Test_Workflow_DeliveryTimestamps_viaREST_WithManualClock(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		start := testutil.TestTime()
		clk := data.NewManualClock(start)
		stack := newStackWithManualClock(t, db, clk)
		stack.seedDirectory(t, workflowtest.StandardDirectory()...)

		created := stack.createJob(t, &model.CreateMessageJobRequest{
			Subject:  "Generator test run",
			Body:     "The standby generator runs at noon today.",
			Channels: []model.Channel{model.ChannelEmail, model.ChannelSMS},
		})
		if !created.CreatedAt.Equal(start) {
			t.Fatalf("created_at %v, want pinned %v", created.CreatedAt, start)
		}

		job := stack.waitForTerminal(t, created.ID)
		if job.Status != model.JobStatusCompleted {
			t.Fatalf("job status %s, want completed (error: %q)", job.Status, job.ErrorMessage)
		}
		if job.StartedAt == nil || !job.StartedAt.Equal(start) {
			t.Fatalf("started_at %v, want pinned %v", job.StartedAt, start)
		}
		if job.CompletedAt == nil || !job.CompletedAt.Equal(start) {
			t.Fatalf("completed_at %v, want pinned %v", job.CompletedAt, start)
		}

		// Every delivery stamp flows from the same clock.
		for _, channel := range []model.Channel{model.ChannelEmail, model.ChannelSMS} {
			page := stack.recipientPage(t, created.ID, channel, 1)
			if len(page.Results) == 0 {
				t.Fatalf("no %s recipients", channel)
			}
			for _, row := range page.Results {
				if row.SentAt == nil || !row.SentAt.Equal(start) {
					t.Fatalf("%s recipient %d sent_at %v, want pinned %v", channel, row.ID, row.SentAt, start)
				}
			}
		}
	})
}

func Test_Workflow_StaleProcessingTimeout_WithManualClock(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		start := testutil.TestTime()
		clk := data.NewManualClock(start)
		stack := newStackWithManualClock(t, db, clk)
		ctx := context.Background()

		// A processing job with no dispatcher, as a crash leaves behind.
		job, err := stack.JobRepo.Create(ctx, core.CreateMessageJobParams{
			Request: testutil.DualChannelJobRequest(),
			Recipients: []model.Recipient{
				{
					Channel:       model.ChannelSMS,
					ResidenceID:   1,
					ResidenceName: "Mensah Residence",
					HouseNumber:   "A-01",
					Address:       "+233201111111",
				},
			},
		})
		if err != nil {
			t.Fatalf("create job: %v", err)
		}
		if _, err := stack.JobRepo.MarkProcessing(ctx, job.ID); err != nil {
			t.Fatalf("mark processing: %v", err)
		}

		// Inside the window the job is not stale yet.
		clk.Advance(30 * time.Minute)
		n, err := stack.JobRepo.FailStaleProcessingJobs(ctx, time.Hour, 10)
		if err != nil {
			t.Fatalf("fail stale: %v", err)
		}
		if n != 0 {
			t.Fatalf("failed %d jobs inside the window, want 0", n)
		}

		// Past the window the janitor times it out.
		clk.Advance(31 * time.Minute)
		n, err = stack.JobRepo.FailStaleProcessingJobs(ctx, time.Hour, 10)
		if err != nil {
			t.Fatalf("fail stale: %v", err)
		}
		if n != 1 {
			t.Fatalf("failed %d jobs past the window, want 1", n)
		}

		// The timeout is visible on the polling endpoint.
		status := stack.jobStatus(t, job.ID)
		if status.Status != model.JobStatusFailed {
			t.Fatalf("status %s, want failed", status.Status)
		}
		if status.ErrorMessage != "Job timed out in processing status" {
			t.Fatalf("unexpected error message %q", status.ErrorMessage)
		}
		if status.CompletedAt == nil || !status.CompletedAt.Equal(start.Add(61*time.Minute)) {
			t.Fatalf("completed_at %v, want clock at timeout", status.CompletedAt)
		}
	})
}

func Test_Workflow_RetentionSweep_WithManualClock(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		start := testutil.TestTime()
		clk := data.NewManualClock(start)
		stack := newStackWithManualClock(t, db, clk)
		stack.seedDirectory(t, workflowtest.StandardDirectory()...)

		const retention = 30 * 24 * time.Hour

		created := stack.createJob(t, &model.CreateMessageJobRequest{
			Subject:  "Old levy notice",
			Body:     "The levy schedule for last quarter.",
			Channels: []model.Channel{model.ChannelEmail},
		})
		if job := stack.waitForTerminal(t, created.ID); job.Status != model.JobStatusCompleted {
			t.Fatalf("job status %s, want completed", job.Status)
		}

		// Inside the retention window the sweep keeps it.
		clk.Advance(29 * 24 * time.Hour)
		n, err := stack.JobRepo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    retention,
			BatchSize: 10,
		})
		if err != nil {
			t.Fatalf("delete old jobs: %v", err)
		}
		if n != 0 {
			t.Fatalf("deleted %d jobs inside the window, want 0", n)
		}

		// Two days later it ages out, recipients cascading with it.
		clk.Advance(2 * 24 * time.Hour)
		n, err = stack.JobRepo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    retention,
			BatchSize: 10,
		})
		if err != nil {
			t.Fatalf("delete old jobs: %v", err)
		}
		if n != 1 {
			t.Fatalf("deleted %d jobs past the window, want 1", n)
		}

		resp := doJSON(t, http.MethodGet, stack.BaseURL+"/api/v1/messaging/"+created.ID+"/status", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status after sweep %d, want 404", resp.StatusCode)
		}
	})
}
