package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
)

// MessagingServiceOptions groups dependencies for MessagingService.
type MessagingServiceOptions struct {
	Jobs        core.MessageJobRepository // Required: message job repository
	Recipients  core.RecipientRepository  // Required: recipient repository
	Residences  core.ResidenceRepository  // Required: directory used to resolve recipients
	Launcher    core.DispatchLauncher     // Required: starts background dispatch
	StatusCache *core.StatusCacheService  // Optional: short-TTL cache for status polling
	Logger      *slog.Logger              // Optional: structured logger
}

// MessagingService provides business logic for message job operations.
//
// This service manages:
// - Job creation with the recipient list frozen at create time
// - Status polling backed by a short-TTL cache
// - Per-channel recipient pagination
// - Retry of failed deliveries and dispatch resumption.
type MessagingService struct {
	jobs        core.MessageJobRepository
	recipients  core.RecipientRepository
	residences  core.ResidenceRepository
	launcher    core.DispatchLauncher
	statusCache *core.StatusCacheService
	logger      *slog.Logger
}

// NewMessagingService constructs a new MessagingService.
func NewMessagingService(opts MessagingServiceOptions) (*MessagingService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("MessageJobRepository is required")
	}
	if opts.Recipients == nil {
		return nil, errors.New("RecipientRepository is required")
	}
	if opts.Residences == nil {
		return nil, errors.New("ResidenceRepository is required")
	}
	if opts.Launcher == nil {
		return nil, errors.New("DispatchLauncher is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "messaging_service")
	}

	return &MessagingService{
		jobs:        opts.Jobs,
		recipients:  opts.Recipients,
		residences:  opts.Residences,
		launcher:    opts.Launcher,
		statusCache: opts.StatusCache,
		logger:      logger,
	}, nil
}

// MustNewMessagingService constructs a new MessagingService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewMessagingService(opts MessagingServiceOptions) *MessagingService {
	svc, err := NewMessagingService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create MessagingService: %v", err))
	}
	return svc
}

// Create validates the request, freezes one recipient row per (residence,
// address) pair on every selected channel, persists the job atomically and
// hands it to the dispatcher. Delivery happens in the background; the returned
// job reflects the state the caller should first observe (processing, or
// completed when no recipient resolved).
func (s *MessagingService) Create(
	ctx context.Context,
	req *model.CreateMessageJobRequest,
) (*model.MessageJob, error) {
	if req == nil {
		return nil, errors.New("create message job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	recipients, err := s.resolveRecipients(ctx, req.Channels)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	job, err := s.jobs.Create(ctx, core.CreateMessageJobParams{
		Request:    req,
		Recipients: recipients,
	})
	if err != nil {
		return nil, fmt.Errorf("create message job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "message job created",
			"id", job.ID,
			"channels", job.Channels,
			"email_recipients", job.EmailTotalRecipients,
			"sms_recipients", job.SMSTotalRecipients,
		)
	}

	if job.Status == model.JobStatusCompleted {
		// Zero recipients resolved; there is nothing to dispatch.
		return job, nil
	}

	launched, err := s.launcher.Launch(ctx, job.ID)
	if err != nil {
		// The job row exists and stays pending; a later retry re-arms it.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "dispatch launch failed",
				"id", job.ID,
				"error", err,
			)
		}
		return job, nil
	}

	return launched, nil
}

// resolveRecipients expands the channel list into frozen recipient rows. Every
// address a residence has on a channel becomes its own row, so directory edits
// after this point never change the job.
func (s *MessagingService) resolveRecipients(
	ctx context.Context,
	channels []model.Channel,
) ([]model.Recipient, error) {
	var out []model.Recipient
	for _, channel := range channels {
		targets, err := s.residences.ListChannelTargets(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("list %s targets: %w", channel, err)
		}
		for _, t := range targets {
			out = append(out, model.Recipient{
				Channel:       channel,
				ResidenceID:   t.ResidenceID,
				ResidenceName: t.ResidenceName,
				HouseNumber:   t.HouseNumber,
				Address:       t.Address,
				Status:        model.RecipientStatusPending,
			})
		}
	}
	return out, nil
}

// GetByID returns a message job by its ID.
func (s *MessagingService) GetByID(ctx context.Context, id string) (*model.MessageJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get message job %s: %w", id, err)
	}
	return job, nil
}

// List returns a page of message jobs ordered newest first plus the total count.
func (s *MessagingService) List(
	ctx context.Context,
	opts model.MessageJobsListOptions,
) ([]*model.MessageJob, int, error) {
	opts = normalizeJobListOptions(opts)
	jobs, total, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list message jobs: %w", err)
	}
	return jobs, total, nil
}

// Stats returns counts of message jobs in each lifecycle state.
func (s *MessagingService) Stats(ctx context.Context) (*model.MessageJobStats, error) {
	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get message job stats: %w", err)
	}
	return stats, nil
}

// GetStatus returns the lightweight polling payload for a job. A short-TTL
// cache absorbs the polling read load; cache trouble degrades to a direct
// read, never to a failed request.
func (s *MessagingService) GetStatus(
	ctx context.Context,
	id string,
) (*model.JobStatusResponse, error) {
	cached, err := s.statusCache.GetStatus(ctx, id)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "status cache read failed", "id", id, "error", err)
		}
	} else if cached != nil {
		return cached, nil
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get message job %s: %w", id, err)
	}

	status := job.StatusResponse()
	if err := s.statusCache.SetStatus(ctx, &status); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "status cache write failed", "id", id, "error", err)
	}

	return &status, nil
}

// ListRecipients returns one page of a job's recipients for one channel.
// Page numbering starts at 1; a missing job is an error, an out-of-range page
// is an empty one.
func (s *MessagingService) ListRecipients(
	ctx context.Context,
	params core.RecipientPageParams,
) (*model.RecipientPage, error) {
	if !params.Channel.Valid() {
		return nil, fmt.Errorf("invalid channel: %q", params.Channel)
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	if _, err := s.jobs.GetByID(ctx, params.JobID); err != nil {
		return nil, fmt.Errorf("get message job %s: %w", params.JobID, err)
	}

	page, err := s.recipients.Page(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("page %s recipients for job %s: %w", params.Channel, params.JobID, err)
	}
	return page, nil
}

// Retry re-arms a job's failed recipients and resumes dispatch. The repository
// guards the transition: a job a dispatcher still owns or one with nothing
// left to deliver is rejected there and the error passes through unchanged.
func (s *MessagingService) Retry(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.Retry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retry message job %s: %w", id, err)
	}

	if err := s.statusCache.InvalidateStatus(ctx, id); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "status cache invalidation failed", "id", id, "error", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "message job retry started",
			"id", id,
			"email_failed", job.EmailFailedCount,
			"sms_failed", job.SMSFailedCount,
		)
	}

	if err := s.launcher.Resume(ctx, job); err != nil {
		// The rows are re-armed but no dispatcher runs; the janitor will fail
		// the job once it goes stale, after which retry is available again.
		return nil, fmt.Errorf("resume dispatch for job %s: %w", id, err)
	}

	status := job.StatusResponse()
	return &status, nil
}

// normalizeJobListOptions clamps paging to safe defaults.
// Default limit: 50, max limit: 1000, min offset: 0.
func normalizeJobListOptions(opts model.MessageJobsListOptions) model.MessageJobsListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
