package config

import "time"

// JanitorConfig drives the background maintenance loop over message jobs.
type JanitorConfig struct {
	// Interval between maintenance sweeps.
	Interval time.Duration `env:"JANITOR_INTERVAL" envDefault:"5m"`

	// ProcessingMaxAge bounds how long a job may sit in processing before
	// the janitor fails it. A dispatcher that died mid-flight leaves its
	// job processing forever otherwise.
	ProcessingMaxAge time.Duration `env:"JANITOR_PROCESSING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge and FailedMaxAge bound how long finished jobs are
	// kept before pruning.
	CompletedMaxAge time.Duration `env:"JANITOR_COMPLETED_MAX_AGE" envDefault:"720h"` // 30 days
	FailedMaxAge    time.Duration `env:"JANITOR_FAILED_MAX_AGE"    envDefault:"720h"` // 30 days

	// BatchSize caps rows touched per statement so a sweep over a large
	// backlog never holds long locks.
	BatchSize int `env:"JANITOR_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize enforces floors that keep the janitor from hammering the database.
func (j *JanitorConfig) Sanitize() {
	j.Interval = floorDuration(j.Interval, time.Minute)
	j.ProcessingMaxAge = floorDuration(j.ProcessingMaxAge, 5*time.Minute)
	j.CompletedMaxAge = floorDuration(j.CompletedMaxAge, time.Hour)
	j.FailedMaxAge = floorDuration(j.FailedMaxAge, time.Hour)
	j.BatchSize = clampInt(j.BatchSize, 1, 10000)
}
