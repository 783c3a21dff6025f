// Package core holds the service layer and the ports it expects the data
// layer to implement.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagyekum/residency/internal/domain/model"
)

// defaultStatusTTL keeps cached status just shy of the UI polling interval.
const defaultStatusTTL = 2 * time.Second

// CacheRepository is the cache port, backed by Redis in production.
type CacheRepository interface {
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or nil when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Health verifies the backend connection.
	Health(ctx context.Context) error
}

// StatusCacheService caches the lightweight job status payload between polls.
// Clients hit the status endpoint every couple of seconds; a short TTL absorbs
// that read load while keeping staleness within the polling interval.
type StatusCacheService struct {
	cache CacheRepository
	ttl   time.Duration
}

// NewStatusCacheService wraps cache with the status key schema. A nil cache
// disables caching entirely, and a non-positive ttl falls back to the
// two-second default.
func NewStatusCacheService(cache CacheRepository, ttl time.Duration) *StatusCacheService {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusCacheService{cache: cache, ttl: ttl}
}

// Enabled reports whether a cache backend is wired in.
func (s *StatusCacheService) Enabled() bool {
	return s != nil && s.cache != nil
}

// GetStatus returns the cached status payload for a job, or nil on a miss.
func (s *StatusCacheService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	if !s.Enabled() || jobID == "" {
		return nil, nil
	}

	raw, err := s.cache.Get(ctx, s.statusKey(jobID))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var status model.JobStatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &status, nil
}

// SetStatus caches the status payload for the configured TTL.
func (s *StatusCacheService) SetStatus(ctx context.Context, status *model.JobStatusResponse) error {
	if !s.Enabled() || status == nil || status.ID == "" {
		return nil
	}

	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return s.cache.Set(ctx, s.statusKey(status.ID), raw, s.ttl)
}

// InvalidateStatus removes the cached payload for a job. Called when the job
// changes state outside the normal counter march, such as on retry.
func (s *StatusCacheService) InvalidateStatus(ctx context.Context, jobID string) error {
	if !s.Enabled() || jobID == "" {
		return nil
	}

	_, err := s.cache.Delete(ctx, s.statusKey(jobID))
	return err
}

// statusKey generates the cache key for a job's status payload.
func (s *StatusCacheService) statusKey(jobID string) string {
	return "job:status:" + jobID
}
