package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJobStatusIncludesFailureBanner(t *testing.T) {
	status := &model.JobStatusResponse{
		ID:                 "job-123",
		Status:             model.JobStatusFailed,
		Channels:           []model.Channel{model.ChannelSMS},
		SMSSentCount:       2,
		SMSFailedCount:     1,
		SMSTotalRecipients: 4,
		ErrorMessage:       "sms channel: gateway unreachable",
	}

	var out bytes.Buffer
	require.NoError(t, printJobStatus(&out, "job-123", status, statusSource{Source: "postgres"}))

	got := out.String()
	assert.Contains(t, got, "Status: failed (sms channel: gateway unreachable)")
	assert.Contains(t, got, "Retry resets failed recipients")
	assert.Contains(t, got, "Source: postgres")
	assert.NotContains(t, got, "email")
}

func TestPrintJobStatusShowsCacheTTL(t *testing.T) {
	ttl := 90 * time.Second
	status := &model.JobStatusResponse{
		ID:       "job-9",
		Status:   model.JobStatusProcessing,
		Channels: []model.Channel{model.ChannelEmail},
	}

	var out bytes.Buffer
	require.NoError(t, printJobStatus(&out, "job-9", status, statusSource{Source: "redis cache", TTL: &ttl}))

	got := out.String()
	assert.Contains(t, got, "TTL remaining: 1m30s")
	assert.Contains(t, got, "Source: redis cache")
	assert.NotContains(t, got, "Retry resets failed recipients")
}

func TestPrintJobStatsRendersTotals(t *testing.T) {
	stats := &model.MessageJobStats{Pending: 1, Processing: 2, Completed: 3, Failed: 4}

	var out bytes.Buffer
	require.NoError(t, printJobStats(&out, stats, nil))

	got := out.String()
	assert.Contains(t, got, "Message jobs by state")
	assert.Contains(t, got, "total")
	assert.Contains(t, got, "10")
	assert.NotContains(t, got, "Most recent jobs")
}

func TestPrintJobStatsListsRecentJobs(t *testing.T) {
	stats := &model.MessageJobStats{Completed: 1}
	job := &model.MessageJob{
		ID:                   "4f1c0f7e",
		Status:               model.JobStatusCompleted,
		Channels:             []model.Channel{model.ChannelEmail, model.ChannelSMS},
		EmailSentCount:       3,
		EmailTotalRecipients: 3,
		SMSSentCount:         2,
		SMSTotalRecipients:   2,
		CreatedAt:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	var out bytes.Buffer
	require.NoError(t, printJobStats(&out, stats, []*model.MessageJob{job}))

	got := out.String()
	assert.Contains(t, got, "Most recent jobs")
	assert.Contains(t, got, "4f1c0f7e")
	assert.Contains(t, got, "email,sms")
	assert.Contains(t, got, "2025-06-01T12:00:00Z")
}

func TestIsLikelyRemoteHost(t *testing.T) {
	for _, host := range []string{"", "localhost", "LOCALHOST", "127.0.0.1", "127.0.0.2", "::1", "db.local"} {
		assert.False(t, isLikelyRemoteHost(host), "host %q should be local", host)
	}
	for _, host := range []string{"db.example.com", "10.0.0.5", "residency-db"} {
		assert.True(t, isLikelyRemoteHost(host), "host %q should be remote", host)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"app_user"`, quoteIdentifier("app_user"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestRenderTTL(t *testing.T) {
	assert.Equal(t, "expired", renderTTL(0))
	assert.Equal(t, "250ms", renderTTL(250*time.Millisecond))
	assert.Equal(t, "2m0s", renderTTL(119*time.Second+600*time.Millisecond))
}
