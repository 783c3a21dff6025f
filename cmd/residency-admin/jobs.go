package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const adminQueryTimeout = 2 * time.Minute

func runJobStats(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	recent := fs.Int("recent", 10, "number of recent jobs to list (0 disables the table)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recent < 0 {
		return errors.New("--recent cannot be negative")
	}

	return withDatabase(cc, adminQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewMessageJobRepo(db, data.RepoConfig{Logger: cc.Logger})

		stats, err := repo.Stats(ctx)
		if err != nil {
			return fmt.Errorf("load job stats: %w", err)
		}

		var jobs []*model.MessageJob
		if *recent > 0 {
			jobs, _, err = repo.List(ctx, model.MessageJobsListOptions{Limit: *recent})
			if err != nil {
				return fmt.Errorf("list recent jobs: %w", err)
			}
		}

		return printJobStats(os.Stdout, stats, jobs)
	})
}

func printJobStats(w io.Writer, stats *model.MessageJobStats, recent []*model.MessageJob) error {
	fmt.Fprintln(w, "\nMessage jobs by state")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tCOUNT")
	total := 0
	for _, row := range []struct {
		state string
		count int
	}{
		{"pending", stats.Pending},
		{"processing", stats.Processing},
		{"completed", stats.Completed},
		{"failed", stats.Failed},
	} {
		total += row.count
		fmt.Fprintf(tw, "%s\t%d\n", row.state, row.count)
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush stats table: %w", err)
	}

	if len(recent) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nMost recent jobs")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCHANNELS\tSENT\tFAILED\tTOTAL\tPROGRESS\tCREATED")
	for _, job := range recent {
		detail := job.Detail()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d%%\t%s\n",
			job.ID, job.Status, renderChannels(job.Channels),
			detail.SentCount, detail.FailedCount, detail.TotalRecipients,
			detail.OverallProgressPercent, job.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush recent table: %w", err)
	}
	return nil
}

func renderChannels(channels []model.Channel) string {
	parts := make([]string, 0, len(channels))
	for _, c := range channels {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func runJobStatus(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("id", "", "message job ID to inspect (required)")
	raw := fs.Bool("raw", false, "print the raw status payload as JSON")
	dbOnly := fs.Bool("db-only", false, "skip the Redis cache and read straight from Postgres")
	if err := fs.Parse(args); err != nil {
		return err
	}
	jobID := strings.TrimSpace(*id)
	if jobID == "" {
		return errors.New("--id is required")
	}

	ctx, cancel := context.WithTimeout(cc.Ctx, adminQueryTimeout)
	defer cancel()

	db, rdb, err := connectInfra(ctx, cc.Logger, &cc.Config)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeInfra(db, rdb); err != nil {
			cc.Logger.Warn("close connections", "error", err)
		}
	}()

	lookup := statusLookup{DB: db, Redis: rdb, Logger: cc.Logger}
	status, src, err := lookup.fetch(ctx, jobID, *dbOnly)
	if err != nil {
		return err
	}

	if *raw {
		return printRawJobStatus(os.Stdout, status, src)
	}
	return printJobStatus(os.Stdout, jobID, status, src)
}

type statusLookup struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// statusSource records where the payload came from and, for cached copies,
// how long the entry remains valid.
type statusSource struct {
	Source string
	TTL    *time.Duration
}

// fetch prefers the cache so the command reports what API clients would see,
// falling back to Postgres when the entry is gone.
func (l statusLookup) fetch(ctx context.Context, jobID string, dbOnly bool) (*model.JobStatusResponse, statusSource, error) {
	if !dbOnly && l.Redis != nil {
		if status, src, ok := l.fromCache(ctx, jobID); ok {
			return status, src, nil
		}
	}
	return l.fromDB(ctx, jobID)
}

func (l statusLookup) fromCache(ctx context.Context, jobID string) (*model.JobStatusResponse, statusSource, bool) {
	cache := core.NewStatusCacheService(data.NewRedisCacheRepo(l.Redis), 0)
	status, err := cache.GetStatus(ctx, jobID)
	if err != nil {
		l.Logger.WarnContext(ctx, "status cache read failed", "error", err)
		return nil, statusSource{}, false
	}
	if status == nil {
		return nil, statusSource{}, false
	}

	src := statusSource{Source: "redis cache"}
	if ttl, err := l.Redis.TTL(ctx, statusCacheKey(jobID)).Result(); err == nil && ttl > 0 {
		src.TTL = &ttl
	}
	return status, src, true
}

func (l statusLookup) fromDB(ctx context.Context, jobID string) (*model.JobStatusResponse, statusSource, error) {
	repo := data.NewMessageJobRepo(l.DB, data.RepoConfig{Logger: l.Logger})
	job, err := repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, statusSource{}, fmt.Errorf("job %q not found", jobID)
		}
		return nil, statusSource{}, fmt.Errorf("load job: %w", err)
	}
	status := job.StatusResponse()
	return &status, statusSource{Source: "postgres"}, nil
}

// statusCacheKey mirrors the key format the status cache uses.
func statusCacheKey(jobID string) string {
	return "job:status:" + jobID
}

func printRawJobStatus(w io.Writer, st *model.JobStatusResponse, src statusSource) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status payload: %w", err)
	}
	fmt.Fprintf(w, "%s\n", raw)
	printStatusSource(w, src)
	return nil
}

func printJobStatus(w io.Writer, jobID string, st *model.JobStatusResponse, src statusSource) error {
	fmt.Fprintf(w, "\nJob %s\n", jobID)
	fmt.Fprintf(w, "Status: %s\n", statusLine(st))
	if st.Status == model.JobStatusFailed {
		fmt.Fprintln(w, "Delivery stopped early; counters may be incomplete. Retry resets failed recipients.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSENT\tFAILED\tTOTAL\tPROGRESS")
	if slices.Contains(st.Channels, model.ChannelEmail) {
		fmt.Fprintf(tw, "email\t%d\t%d\t%d\t%d%%\n",
			st.EmailSentCount, st.EmailFailedCount, st.EmailTotalRecipients, st.EmailProgressPercent)
	}
	if slices.Contains(st.Channels, model.ChannelSMS) {
		fmt.Fprintf(tw, "sms\t%d\t%d\t%d\t%d%%\n",
			st.SMSSentCount, st.SMSFailedCount, st.SMSTotalRecipients, st.SMSProgressPercent)
	}
	fmt.Fprintf(tw, "overall\t%d\t%d\t%d\t%d%%\n",
		st.SentCount, st.FailedCount, st.TotalRecipients, st.OverallProgressPercent)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush channel table: %w", err)
	}

	if st.CompletedAt != nil {
		fmt.Fprintf(w, "Completed at: %s\n", st.CompletedAt.Format(time.RFC3339))
	}
	printStatusSource(w, src)
	return nil
}

func statusLine(st *model.JobStatusResponse) string {
	if st.Status == model.JobStatusFailed && st.ErrorMessage != "" {
		return fmt.Sprintf("%s (%s)", st.Status, st.ErrorMessage)
	}
	return string(st.Status)
}

func printStatusSource(w io.Writer, src statusSource) {
	if src.TTL != nil {
		fmt.Fprintf(w, "\nTTL remaining: %s\n", renderTTL(*src.TTL))
	}
	if src.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", src.Source)
	}
}

func renderTTL(d time.Duration) string {
	switch {
	case d <= 0:
		return "expired"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
