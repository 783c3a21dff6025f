package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gagyekum/residency/internal/domain/model"
)

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=cache_mock.go -package=core

func newStatusCache(t *testing.T, ttl time.Duration) (*StatusCacheService, *MockCacheRepository) {
	t.Helper()

	cache := NewMockCacheRepository(gomock.NewController(t))
	return NewStatusCacheService(cache, ttl), cache
}

func processingStatus() model.JobStatusResponse {
	return model.JobStatusResponse{
		ID:                   "job-123",
		Status:               model.JobStatusProcessing,
		Channels:             []model.Channel{model.ChannelEmail},
		EmailTotalRecipients: 10,
		EmailSentCount:       4,
		EmailProgressPercent: 40,
		TotalRecipients:      10,
		SentCount:            4,
		ProgressPercent:      40,
	}
}

func TestStatusCacheGetStatusHit(t *testing.T) {
	t.Parallel()

	want := processingStatus()
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	service, cache := newStatusCache(t, 0)
	cache.EXPECT().Get(gomock.Any(), "job:status:job-123").Return(raw, nil)

	got, err := service.GetStatus(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, &want, got)
}

func TestStatusCacheGetStatusMiss(t *testing.T) {
	t.Parallel()

	// An absent key and a present-but-empty value both read as a miss.
	for name, payload := range map[string][]byte{
		"absent key":  nil,
		"empty value": {},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			service, cache := newStatusCache(t, 0)
			cache.EXPECT().Get(gomock.Any(), "job:status:job-123").Return(payload, nil)

			got, err := service.GetStatus(context.Background(), "job-123")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStatusCacheGetStatusBackendError(t *testing.T) {
	t.Parallel()

	service, cache := newStatusCache(t, 0)
	cache.EXPECT().Get(gomock.Any(), "job:status:job-123").Return(nil, errors.New("connection refused"))

	_, err := service.GetStatus(context.Background(), "job-123")
	assert.Error(t, err)
}

func TestStatusCacheGetStatusCorruptPayload(t *testing.T) {
	t.Parallel()

	service, cache := newStatusCache(t, 0)
	cache.EXPECT().Get(gomock.Any(), "job:status:job-123").Return([]byte("{not json"), nil)

	_, err := service.GetStatus(context.Background(), "job-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode cached status")
}

func TestStatusCacheGetStatusEmptyID(t *testing.T) {
	t.Parallel()

	// No ID means no lookup; the mock would fail on an unexpected Get.
	service, _ := newStatusCache(t, 0)

	got, err := service.GetStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCacheSetStatus(t *testing.T) {
	t.Parallel()

	status := processingStatus()
	raw, err := json.Marshal(status)
	require.NoError(t, err)

	service, cache := newStatusCache(t, 10*time.Second)
	cache.EXPECT().Set(gomock.Any(), "job:status:job-123", raw, 10*time.Second).Return(nil)

	require.NoError(t, service.SetStatus(context.Background(), &status))
}

func TestStatusCacheSetStatusDefaultTTL(t *testing.T) {
	t.Parallel()

	status := processingStatus()
	service, cache := newStatusCache(t, -1)
	cache.EXPECT().
		Set(gomock.Any(), "job:status:job-123", gomock.Any(), defaultStatusTTL).
		Return(nil)

	require.NoError(t, service.SetStatus(context.Background(), &status))
}

func TestStatusCacheSetStatusSkipsUnidentified(t *testing.T) {
	t.Parallel()

	service, _ := newStatusCache(t, 0)
	ctx := context.Background()

	assert.NoError(t, service.SetStatus(ctx, nil))
	assert.NoError(t, service.SetStatus(ctx, &model.JobStatusResponse{}))
}

func TestStatusCacheSetStatusBackendError(t *testing.T) {
	t.Parallel()

	status := processingStatus()
	service, cache := newStatusCache(t, 0)
	cache.EXPECT().
		Set(gomock.Any(), "job:status:job-123", gomock.Any(), gomock.Any()).
		Return(errors.New("connection refused"))

	assert.Error(t, service.SetStatus(context.Background(), &status))
}

func TestStatusCacheInvalidateStatus(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		existed bool
		err     error
		wantErr bool
	}{
		"removes entry":       {existed: true},
		"missing key is fine": {},
		"backend error":       {err: errors.New("connection refused"), wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			service, cache := newStatusCache(t, 0)
			cache.EXPECT().Delete(gomock.Any(), "job:status:job-123").Return(tc.existed, tc.err)

			err := service.InvalidateStatus(context.Background(), "job-123")
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusCacheInvalidateStatusEmptyID(t *testing.T) {
	t.Parallel()

	service, _ := newStatusCache(t, 0)
	assert.NoError(t, service.InvalidateStatus(context.Background(), ""))
}

// Callers never guard their cache calls, so a nil service and a service
// without a backend must both behave as a disabled cache.
func TestStatusCacheDisabled(t *testing.T) {
	t.Parallel()

	sample := processingStatus()

	var missing *StatusCacheService
	for name, service := range map[string]*StatusCacheService{
		"nil service": missing,
		"nil backend": NewStatusCacheService(nil, 0),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			assert.False(t, service.Enabled())

			got, err := service.GetStatus(ctx, "job-123")
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.NoError(t, service.SetStatus(ctx, &sample))
			assert.NoError(t, service.InvalidateStatus(ctx, "job-123"))
		})
	}
}

func TestStatusCacheKeySchema(t *testing.T) {
	t.Parallel()

	service := NewStatusCacheService(nil, 0)
	assert.Equal(t, "job:status:test-id", service.statusKey("test-id"))
}
