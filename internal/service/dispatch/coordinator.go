// Package dispatch runs the background delivery loops for message jobs. One
// coordinator owns every in-flight job in the process; each job gets one
// goroutine per selected channel, paced in batches against its transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
	obserrors "github.com/gagyekum/residency/internal/observability/errors"
	"github.com/gagyekum/residency/internal/observability/metrics"
	"github.com/gagyekum/residency/internal/observability/notify"
	"github.com/gagyekum/residency/internal/observability/statsd"
	"github.com/gagyekum/residency/internal/service/failurenotifier"
	"github.com/gagyekum/residency/internal/transport"
)

// Default pacing applied when a channel config carries zero values.
const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = time.Second
)

// ErrDispatchRunning is returned when a dispatcher for the job is already
// active in this process. The database status guard normally prevents this;
// hitting it means memory and database disagree about the job.
var ErrDispatchRunning = errors.New("dispatch already running for job")

// ErrShuttingDown is returned when a launch arrives after shutdown began.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// ChannelConfig holds the pacing knobs for one delivery channel.
type ChannelConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

func sanitizeChannelConfig(cfg ChannelConfig) ChannelConfig {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	return cfg
}

// CoordinatorOptions groups dependencies for the Coordinator.
type CoordinatorOptions struct {
	Jobs       core.MessageJobRepository // Required: job repository
	Recipients core.RecipientRepository  // Required: recipient repository
	Email      transport.Transport       // Email transport; jobs selecting the channel fail without one
	SMS        transport.Transport       // SMS transport; jobs selecting the channel fail without one

	EmailConfig ChannelConfig // Optional: email pacing; zero size takes the default, zero delay disables pacing
	SMSConfig   ChannelConfig // Optional: sms pacing; zero size takes the default, zero delay disables pacing

	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: dispatch metrics
	FailureNotifier *failurenotifier.Service // Optional: job-level fault fan-out
}

// Coordinator implements core.DispatchLauncher. Dispatch runs on a base
// context detached from the originating request, so a client disconnect never
// cancels delivery mid-flight; only Shutdown releases in-flight work.
type Coordinator struct {
	jobs       core.MessageJobRepository
	recipients core.RecipientRepository
	transports map[model.Channel]transport.Transport
	configs    map[model.Channel]ChannelConfig
	logger     *slog.Logger
	metrics    statsd.Sink
	notifier   *failurenotifier.Service

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	running map[string]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewCoordinator constructs a new Coordinator.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Jobs == nil {
		return nil, errors.New("MessageJobRepository is required")
	}
	if opts.Recipients == nil {
		return nil, errors.New("RecipientRepository is required")
	}

	transports := make(map[model.Channel]transport.Transport, 2)
	if opts.Email != nil {
		transports[model.ChannelEmail] = opts.Email
	}
	if opts.SMS != nil {
		transports[model.ChannelSMS] = opts.SMS
	}
	if len(transports) == 0 {
		return nil, errors.New("at least one channel transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		jobs:       opts.Jobs,
		recipients: opts.Recipients,
		transports: transports,
		configs: map[model.Channel]ChannelConfig{
			model.ChannelEmail: sanitizeChannelConfig(opts.EmailConfig),
			model.ChannelSMS:   sanitizeChannelConfig(opts.SMSConfig),
		},
		logger:   logger.With("component", "dispatch"),
		metrics:  opts.Metrics,
		notifier: opts.FailureNotifier,
		baseCtx:  baseCtx,
		cancel:   cancel,
		running:  make(map[string]struct{}),
	}, nil
}

// MustNewCoordinator constructs a new Coordinator and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewCoordinator(opts CoordinatorOptions) *Coordinator {
	co, err := NewCoordinator(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create dispatch coordinator: %v", err))
	}
	return co
}

// Launch transitions the job into processing and starts its dispatcher.
// Repository errors (unknown job, already processing) pass through unchanged.
func (c *Coordinator) Launch(ctx context.Context, jobID string) (*model.MessageJob, error) {
	job, err := c.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := c.start(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Resume starts a dispatcher for a job already marked processing. This is the
// retry path: the retry transaction re-armed the rows, the dispatcher only
// drains them. Dispatch runs on the coordinator's own context, not ctx.
func (c *Coordinator) Resume(_ context.Context, job *model.MessageJob) error {
	if job == nil {
		return errors.New("job is required")
	}
	if job.Status != model.JobStatusProcessing {
		return fmt.Errorf("job %s is %s, expected processing", job.ID, job.Status)
	}
	return c.start(job)
}

// start registers the job and spawns its dispatcher goroutine.
func (c *Coordinator) start(job *model.MessageJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrShuttingDown
	}
	if _, ok := c.running[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDispatchRunning, job.ID)
	}

	c.running[job.ID] = struct{}{}
	c.emitActiveJobs(len(c.running))

	c.wg.Add(1)
	go c.run(job)
	return nil
}

func (c *Coordinator) finish(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, jobID)
	c.emitActiveJobs(len(c.running))
}

func (c *Coordinator) emitActiveJobs(n int) {
	if c.metrics != nil {
		c.metrics.Gauge("dispatch.active_jobs", float64(n), nil)
	}
}

// Shutdown waits for in-flight dispatchers to drain. When the context expires
// first, the base context is canceled to release them; interrupted jobs stay
// processing and the janitor fails them once they go stale.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.logger.Warn("shutdown deadline reached, releasing in-flight dispatchers")
		c.cancel()
		return ctx.Err()
	}
}

// channelFault marks an abort of one channel's dispatch loop so the finalizer
// knows which channel raised the job-level fault.
type channelFault struct {
	channel model.Channel
	err     error
}

func (f *channelFault) Error() string { return f.err.Error() }
func (f *channelFault) Unwrap() error { return f.err }

func faultChannel(err error) model.Channel {
	var fault *channelFault
	if errors.As(err, &fault) {
		return fault.channel
	}
	return ""
}

// run drains every selected channel concurrently and finalizes the job. A
// fault on one channel cancels the group, so sibling channels stop at their
// next recipient and leave the rest pending for a later retry.
func (c *Coordinator) run(job *model.MessageJob) {
	defer c.wg.Done()
	defer c.finish(job.ID)

	start := time.Now()
	c.logger.Info("dispatch started",
		"job_id", job.ID,
		"channels", job.Channels,
		"email_recipients", job.EmailTotalRecipients,
		"sms_recipients", job.SMSTotalRecipients,
	)

	group, gctx := errgroup.WithContext(c.baseCtx)
	for _, channel := range job.Channels {
		group.Go(func() error {
			if err := c.dispatchChannel(gctx, job, channel); err != nil {
				return &channelFault{channel: channel, err: err}
			}
			return nil
		})
	}

	c.finalize(job, group.Wait(), time.Since(start))
}

// dispatchChannel works through a channel's pending recipients in batches,
// sleeping between batches but not before the first. It returns nil once no
// pending recipient remains, or the fault that aborted the loop.
func (c *Coordinator) dispatchChannel(
	ctx context.Context,
	job *model.MessageJob,
	channel model.Channel,
) error {
	tr := c.transports[channel]
	if tr == nil {
		return &transport.ConfigError{
			Backend: string(channel),
			Reason:  "no transport configured for channel",
		}
	}
	cfg := c.configs[channel]

	for batch := 0; ; batch++ {
		if batch > 0 {
			if err := sleepContext(ctx, cfg.BatchDelay); err != nil {
				return err
			}
		}

		pending, err := c.recipients.ListPending(ctx, core.ListPendingRecipientsParams{
			JobID:   job.ID,
			Channel: channel,
			Limit:   cfg.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("list pending %s recipients: %w", channel, err)
		}
		if len(pending) == 0 {
			return nil
		}

		batchStart := time.Now()
		for _, recipient := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.deliver(ctx, delivery{transport: tr, job: job, recipient: recipient}); err != nil {
				return err
			}
		}

		c.logger.Debug("dispatch batch done",
			"job_id", job.ID,
			"channel", channel,
			"batch", batch,
			"size", len(pending),
			"duration", time.Since(batchStart),
		)
		metrics.EmitBatch(c.metrics, metrics.BatchMetric{
			Channel:  string(channel),
			Size:     len(pending),
			Duration: time.Since(batchStart),
		})

		if len(pending) < cfg.BatchSize {
			// Short batch: the table has no more pending rows for the channel.
			return nil
		}
	}
}

// delivery groups the inputs for one recipient attempt.
type delivery struct {
	transport transport.Transport
	job       *model.MessageJob
	recipient *model.Recipient
}

// deliver attempts one recipient and records the outcome in its own
// transaction. Ordinary delivery failures mark the row and never abort the
// batch; a configuration-level fault or a bookkeeping error is returned to
// abort the channel.
func (c *Coordinator) deliver(ctx context.Context, d delivery) error {
	r := d.recipient
	key := core.RecipientKey{ID: r.ID, JobID: d.job.ID, Channel: r.Channel}

	sendErr := d.transport.Send(ctx, buildMessage(d.job, r))
	if sendErr == nil {
		updated, err := c.recipients.MarkSent(ctx, key)
		if err != nil {
			return fmt.Errorf("mark recipient %d sent: %w", r.ID, err)
		}
		c.emitDelivery(r, resultFor(updated), nil)
		return nil
	}

	if transport.IsConfigError(sendErr) {
		// The row stays pending; nothing was attempted against the provider.
		return sendErr
	}

	c.logger.Warn("delivery failed",
		"job_id", d.job.ID,
		"channel", r.Channel,
		"recipient_id", r.ID,
		"error", sendErr,
	)
	updated, err := c.recipients.MarkFailed(ctx, key, sendErr.Error())
	if err != nil {
		return fmt.Errorf("mark recipient %d failed: %w", r.ID, err)
	}
	if updated {
		c.emitDelivery(r, metrics.ResultError, sendErr)
	} else {
		c.emitDelivery(r, metrics.ResultNoop, nil)
	}
	return nil
}

func resultFor(updated bool) string {
	if updated {
		return metrics.ResultSuccess
	}
	return metrics.ResultNoop
}

func (c *Coordinator) emitDelivery(r *model.Recipient, result string, err error) {
	metrics.EmitDelivery(c.metrics, metrics.DeliveryMetric{
		Channel: string(r.Channel),
		Result:  result,
		Err:     err,
	})
}

// buildMessage renders the job content for one recipient. SMS uses the
// dedicated short body when present and carries no subject.
func buildMessage(job *model.MessageJob, r *model.Recipient) transport.Message {
	if r.Channel == model.ChannelSMS {
		return transport.Message{To: r.Address, Body: job.SMSContent()}
	}
	return transport.Message{To: r.Address, Subject: job.Subject, Body: job.Body}
}

// finalize settles the job row after every channel goroutine returned.
// Bookkeeping runs on the base context: when shutdown already canceled it the
// job stays processing and the janitor takes over.
func (c *Coordinator) finalize(job *model.MessageJob, faultErr error, elapsed time.Duration) {
	ctx := c.baseCtx

	if faultErr != nil {
		if isContextCancellation(faultErr) {
			c.logger.Warn("dispatch interrupted by shutdown",
				"job_id", job.ID,
				"elapsed", elapsed,
			)
			c.emitJobMetric(jobMetricInput{Transition: "interrupted", Result: metrics.ResultNoop, Elapsed: elapsed})
			return
		}

		failed, err := c.jobs.Fail(ctx, job.ID, faultErr.Error())
		if err != nil {
			c.logger.Error("failed to mark job failed",
				"job_id", job.ID,
				"fault", faultErr,
				"error", err,
			)
			c.emitJobMetric(jobMetricInput{Transition: "failed", Result: metrics.ResultError, Elapsed: elapsed, Err: err})
			return
		}

		c.logger.Error("dispatch failed",
			"job_id", job.ID,
			"channel", faultChannel(faultErr),
			"error", faultErr,
			"elapsed", elapsed,
		)
		c.notifyFailure(ctx, failed, faultErr)
		c.emitJobMetric(jobMetricInput{Transition: "failed", Result: metrics.ResultSuccess, Elapsed: elapsed})
		return
	}

	completed, err := c.jobs.Complete(ctx, job.ID)
	if err != nil {
		c.logger.Error("failed to mark job completed", "job_id", job.ID, "error", err)
		c.emitJobMetric(jobMetricInput{Transition: "completed", Result: metrics.ResultError, Elapsed: elapsed, Err: err})
		return
	}

	c.logger.Info("dispatch completed",
		"job_id", job.ID,
		"email_sent", completed.EmailSentCount,
		"email_failed", completed.EmailFailedCount,
		"sms_sent", completed.SMSSentCount,
		"sms_failed", completed.SMSFailedCount,
		"elapsed", elapsed,
	)
	c.emitJobMetric(jobMetricInput{Transition: "completed", Result: metrics.ResultSuccess, Elapsed: elapsed})
}

func (c *Coordinator) notifyFailure(ctx context.Context, job *model.MessageJob, faultErr error) {
	if !c.notifier.Enabled() {
		return
	}
	c.notifier.NotifyMessageFailure(ctx, notify.MessageFailurePayload{
		JobID:      job.ID,
		Subject:    job.Subject,
		Channel:    string(faultChannel(faultErr)),
		Error:      faultErr.Error(),
		ErrorClass: obserrors.Classify(faultErr),
		OccurredAt: time.Now(),
	})
}

type jobMetricInput struct {
	Transition string
	Result     string
	Elapsed    time.Duration
	Err        error
}

func (c *Coordinator) emitJobMetric(in jobMetricInput) {
	metrics.EmitJobLifecycle(c.metrics, metrics.JobMetric{
		Transition: in.Transition,
		Result:     in.Result,
		Duration:   in.Elapsed,
		Err:        in.Err,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
