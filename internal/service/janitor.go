package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
	obserrors "github.com/gagyekum/residency/internal/observability/errors"
	"github.com/gagyekum/residency/internal/observability/metrics"
	"github.com/gagyekum/residency/internal/observability/statsd"
)

// JanitorServiceOptions groups dependencies for JanitorService.
type JanitorServiceOptions struct {
	Repo    core.JanitorRepository
	Config  config.JanitorConfig
	Logger  *slog.Logger // optional
	Metrics statsd.Sink  // optional
}

// JanitorService sweeps the message_jobs table in the background: processing
// jobs whose dispatcher died get failed, and completed or failed jobs past
// their retention age get deleted.
type JanitorService struct {
	repo    core.JanitorRepository
	config  config.JanitorConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewJanitorService validates opts and returns a service ready to Run.
func NewJanitorService(opts JanitorServiceOptions) (*JanitorService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JanitorRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &JanitorService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger.With("component", "janitor"),
		metrics: opts.Metrics,
	}, nil
}

// MustNewJanitorService panics when opts are invalid. For wiring paths where
// a bad configuration should stop the process.
func MustNewJanitorService(opts JanitorServiceOptions) *JanitorService {
	svc, err := NewJanitorService(opts)
	if err != nil {
		panic(fmt.Sprintf("janitor service: %v", err)) //nolint:forbidigo // Must constructor fails fast on bad wiring
	}
	return svc
}

// Run sweeps at the configured interval until ctx ends. Cancellation is a
// graceful stop and returns nil; any other context error is returned.
func (s *JanitorService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting janitor",
		"interval", s.config.Interval,
		"processing_max_age", s.config.ProcessingMaxAge,
		"completed_max_age", s.config.CompletedMaxAge,
		"failed_max_age", s.config.FailedMaxAge,
	)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "janitor stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// waitWithJitter delays the first sweep by up to a tenth of the interval so
// instances deployed together do not hit the table in lockstep.
func (s *JanitorService) waitWithJitter(ctx context.Context) {
	span := int64(s.config.Interval / 10)
	if span <= 0 {
		return
	}

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		s.logger.WarnContext(ctx, "jitter seed unavailable, starting immediately", "error", err)
		return
	}
	delay := time.Duration(binary.BigEndian.Uint64(seed[:]) % uint64(span)) // #nosec G115 - remainder is bounded by span

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// sweep runs one cleanup pass; errors never stop the loop.
func (s *JanitorService) sweep(ctx context.Context) {
	err := s.runCleanup(ctx)
	switch {
	case err == nil:
	case isContextCancellation(err):
		s.logger.Debug("cleanup cancelled", "error", err)
	default:
		s.logger.Error("cleanup failed", "error", err)
	}
}

// sweepOp is one cleanup operation. batch runs a single bounded batch and
// reports the rows it touched.
type sweepOp struct {
	name   string // metric operation tag
	label  string // log and error prefix
	maxAge time.Duration
	batch  func(context.Context) (int64, error)
}

func (s *JanitorService) sweepOps() []sweepOp {
	cfg := s.config
	deleteBatch := func(status model.JobStatus, maxAge time.Duration) func(context.Context) (int64, error) {
		return func(ctx context.Context) (int64, error) {
			return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    status,
				MaxAge:    maxAge,
				BatchSize: cfg.BatchSize,
			})
		}
	}

	return []sweepOp{
		{
			name:   "fail_processing",
			label:  "fail stale processing jobs",
			maxAge: cfg.ProcessingMaxAge,
			batch: func(ctx context.Context) (int64, error) {
				return s.repo.FailStaleProcessingJobs(ctx, cfg.ProcessingMaxAge, cfg.BatchSize)
			},
		},
		{
			name:   "delete_completed",
			label:  "delete old completed jobs",
			maxAge: cfg.CompletedMaxAge,
			batch:  deleteBatch(model.JobStatusCompleted, cfg.CompletedMaxAge),
		},
		{
			name:   "delete_failed",
			label:  "delete old failed jobs",
			maxAge: cfg.FailedMaxAge,
			batch:  deleteBatch(model.JobStatusFailed, cfg.FailedMaxAge),
		},
	}
}

type sweepResult struct {
	name  string
	count int64
	err   error
}

// runCleanup executes every sweep even when earlier ones fail; one broken
// operation must not starve the others. When every failure was a context
// cancellation the pass reports context.Canceled so callers treat it as
// shutdown rather than a fault.
func (s *JanitorService) runCleanup(ctx context.Context) error {
	start := time.Now()
	var (
		results      []sweepResult
		errs         []error
		canceledOnly = true
	)

	for _, op := range s.sweepOps() {
		count, err := drainBatches(ctx, op.batch)
		results = append(results, sweepResult{name: op.name, count: count, err: err})

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.label, err))
			canceledOnly = canceledOnly && isContextCancellation(err)
			continue
		}
		if count > 0 {
			s.logger.InfoContext(ctx, "cleanup removed jobs",
				"step", op.label, "count", count, "max_age", op.maxAge)
		}
	}

	s.emitCleanupMetrics(results, time.Since(start))

	if len(errs) == 0 {
		return nil
	}
	if canceledOnly {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}

// drainBatches runs batch until it reports no more rows, checking ctx between
// batches so shutdown never waits on a full table sweep.
func drainBatches(ctx context.Context, batch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := batch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// emitCleanupMetrics reports the pass and each operation. Context
// cancellations count as noops, not errors; an interrupted sweep is routine
// during shutdown.
func (s *JanitorService) emitCleanupMetrics(results []sweepResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var total int64
	var firstErr error
	for _, r := range results {
		total += r.count
		if firstErr == nil && !isContextCancellation(r.err) {
			firstErr = r.err
		}
	}

	tags := map[string]string{"result": sweepOutcome(total, firstErr)}
	if class := obserrors.Classify(firstErr); class != "" {
		tags["error_class"] = class
	}
	s.metrics.Count("janitor.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("janitor.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, r := range results {
		err := r.err
		if isContextCancellation(err) {
			err = nil
		}
		opTags := map[string]string{"operation": r.name, "result": sweepOutcome(r.count, err)}
		if class := obserrors.Classify(err); class != "" {
			opTags["error_class"] = class
		}
		s.metrics.Count("janitor.cleanup_operation", 1, opTags)
		if err == nil && r.count > 0 {
			s.metrics.Count("janitor.jobs_processed", r.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("janitor.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

// sweepOutcome buckets a sweep for the result metric tag.
func sweepOutcome(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
