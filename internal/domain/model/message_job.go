// Package model defines the core data types and structures used throughout the residency messaging system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxSubjectLen = 255
)

// Channel represents a delivery medium for a message job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Channel string

// JobStatus represents the current status of a message job.
type JobStatus string

const (
	// ChannelEmail delivers to residence email addresses.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers to residence phone numbers.
	ChannelSMS Channel = "sms"

	// JobStatusPending indicates a job has been created but dispatch has not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a dispatcher is actively working the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates dispatch finished; individual recipients may still have failed.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job-level fault stopped dispatch.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for Channel so JSON and env
// values are normalized and rejected early.
func (c *Channel) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	ch := Channel(v)
	if ch.Valid() {
		*c = ch
		return nil
	}
	return fmt.Errorf("invalid Channel: %q", v)
}

// Valid returns true if the Channel is valid.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once the status admits no further automatic transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// MessageJob represents one composed message and its delivery state across the
// selected channels. Per-channel counters are the source of truth; the combined
// counters exposed by the API are derived from them.
type MessageJob struct {
	ID                   string     `json:"id"                     db:"id"`
	Subject              string     `json:"subject"                db:"subject"`
	Body                 string     `json:"body"                   db:"body"`
	SMSBody              string     `json:"sms_body"               db:"sms_body"`
	Channels             []Channel  `json:"channels"               db:"channels"`
	Sender               string     `json:"sender"                 db:"sender"`
	Status               JobStatus  `json:"status"                 db:"status"`
	EmailTotalRecipients int        `json:"email_total_recipients" db:"email_total_recipients"`
	EmailSentCount       int        `json:"email_sent_count"       db:"email_sent_count"`
	EmailFailedCount     int        `json:"email_failed_count"     db:"email_failed_count"`
	SMSTotalRecipients   int        `json:"sms_total_recipients"   db:"sms_total_recipients"`
	SMSSentCount         int        `json:"sms_sent_count"         db:"sms_sent_count"`
	SMSFailedCount       int        `json:"sms_failed_count"       db:"sms_failed_count"`
	ErrorMessage         string     `json:"error_message"          db:"error_message"`
	CreatedAt            time.Time  `json:"created_at"             db:"created_at"`
	UpdatedAt            time.Time  `json:"-"                      db:"updated_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// HasChannel reports whether the job targets the given channel.
func (j *MessageJob) HasChannel(c Channel) bool {
	for _, ch := range j.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// SMSContent returns the text dispatched over SMS, falling back to the body
// when no separate SMS body was provided.
func (j *MessageJob) SMSContent() string {
	if j.SMSBody != "" {
		return j.SMSBody
	}
	return j.Body
}

// ProgressPercent computes (sent+failed)/total*100 truncated toward zero,
// defined as 0 when total is 0.
func ProgressPercent(sent, failed, total int) int {
	if total <= 0 {
		return 0
	}
	return (sent + failed) * 100 / total
}

func (j *MessageJob) combinedCounts() (sent, failed, total int) {
	sent = j.EmailSentCount + j.SMSSentCount
	failed = j.EmailFailedCount + j.SMSFailedCount
	total = j.EmailTotalRecipients + j.SMSTotalRecipients
	return sent, failed, total
}

// MessageJobDetail is the full API representation of a job: the stored fields
// plus combined counters and progress percentages derived from the per-channel
// values. Overall progress weights each channel by its recipient count, so 100%
// is reached only when every channel has processed all of its recipients.
type MessageJobDetail struct {
	MessageJob

	TotalRecipients        int `json:"total_recipients"`
	SentCount              int `json:"sent_count"`
	FailedCount            int `json:"failed_count"`
	EmailProgressPercent   int `json:"email_progress_percent"`
	SMSProgressPercent     int `json:"sms_progress_percent"`
	OverallProgressPercent int `json:"overall_progress_percent"`
	ProgressPercent        int `json:"progress_percent"`
}

// Detail returns the API representation with all derived counters filled in.
func (j *MessageJob) Detail() MessageJobDetail {
	sent, failed, total := j.combinedCounts()
	overall := ProgressPercent(sent, failed, total)
	return MessageJobDetail{
		MessageJob:             *j,
		TotalRecipients:        total,
		SentCount:              sent,
		FailedCount:            failed,
		EmailProgressPercent:   ProgressPercent(j.EmailSentCount, j.EmailFailedCount, j.EmailTotalRecipients),
		SMSProgressPercent:     ProgressPercent(j.SMSSentCount, j.SMSFailedCount, j.SMSTotalRecipients),
		OverallProgressPercent: overall,
		ProgressPercent:        overall,
	}
}

// JobStatusResponse is the lightweight polling payload for a job. It is cheap
// to produce (one job row, no recipient enumeration) and safe to cache briefly.
type JobStatusResponse struct {
	ID                     string     `json:"id"`
	Status                 JobStatus  `json:"status"`
	Channels               []Channel  `json:"channels"`
	EmailTotalRecipients   int        `json:"email_total_recipients"`
	EmailSentCount         int        `json:"email_sent_count"`
	EmailFailedCount       int        `json:"email_failed_count"`
	EmailProgressPercent   int        `json:"email_progress_percent"`
	SMSTotalRecipients     int        `json:"sms_total_recipients"`
	SMSSentCount           int        `json:"sms_sent_count"`
	SMSFailedCount         int        `json:"sms_failed_count"`
	SMSProgressPercent     int        `json:"sms_progress_percent"`
	OverallProgressPercent int        `json:"overall_progress_percent"`
	TotalRecipients        int        `json:"total_recipients"`
	SentCount              int        `json:"sent_count"`
	FailedCount            int        `json:"failed_count"`
	ProgressPercent        int        `json:"progress_percent"`
	ErrorMessage           string     `json:"error_message,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// StatusResponse builds the polling payload from the job's current counters.
func (j *MessageJob) StatusResponse() JobStatusResponse {
	sent, failed, total := j.combinedCounts()
	overall := ProgressPercent(sent, failed, total)
	return JobStatusResponse{
		ID:                     j.ID,
		Status:                 j.Status,
		Channels:               j.Channels,
		EmailTotalRecipients:   j.EmailTotalRecipients,
		EmailSentCount:         j.EmailSentCount,
		EmailFailedCount:       j.EmailFailedCount,
		EmailProgressPercent:   ProgressPercent(j.EmailSentCount, j.EmailFailedCount, j.EmailTotalRecipients),
		SMSTotalRecipients:     j.SMSTotalRecipients,
		SMSSentCount:           j.SMSSentCount,
		SMSFailedCount:         j.SMSFailedCount,
		SMSProgressPercent:     ProgressPercent(j.SMSSentCount, j.SMSFailedCount, j.SMSTotalRecipients),
		OverallProgressPercent: overall,
		TotalRecipients:        total,
		SentCount:              sent,
		FailedCount:            failed,
		ProgressPercent:        overall,
		ErrorMessage:           j.ErrorMessage,
		CompletedAt:            j.CompletedAt,
	}
}

// CreateMessageJobRequest represents a request to create a new message job.
// Channels defaults to both when omitted; an explicitly empty list is rejected.
type CreateMessageJobRequest struct {
	Subject  string    `json:"subject,omitempty"`
	Body     string    `json:"body"`
	SMSBody  string    `json:"sms_body,omitempty"`
	Channels []Channel `json:"channels"`
	Sender   string    `json:"sender,omitempty"`
}

// Validate validates the CreateMessageJobRequest fields, normalizing the
// channel list (lowercased, deduplicated, order preserved) in place.
func (r *CreateMessageJobRequest) Validate() error {
	if r.Channels == nil {
		r.Channels = []Channel{ChannelEmail, ChannelSMS}
	}
	r.Channels = normalizeChannels(r.Channels)
	if len(r.Channels) == 0 {
		return errors.New("at least one channel must be selected")
	}
	for _, c := range r.Channels {
		if !c.Valid() {
			return fmt.Errorf("invalid channel: %q", c)
		}
	}
	if strings.TrimSpace(r.Body) == "" {
		return errors.New("body is required and cannot be empty")
	}
	if utf8.RuneCountInString(r.Subject) > maxSubjectLen {
		return errors.New("subject cannot exceed 255 characters")
	}
	if hasChannel(r.Channels, ChannelEmail) && strings.TrimSpace(r.Subject) == "" {
		return errors.New("subject is required when sending email")
	}
	return nil
}

func hasChannel(channels []Channel, c Channel) bool {
	for _, ch := range channels {
		if ch == c {
			return true
		}
	}
	return false
}

func normalizeChannels(channels []Channel) []Channel {
	out := make([]Channel, 0, len(channels))
	seen := make(map[Channel]struct{}, len(channels))
	for _, c := range channels {
		normalized := Channel(strings.ToLower(strings.TrimSpace(string(c))))
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// MessageJobsListOptions controls paging for listing message jobs.
// Results are ordered newest first.
type MessageJobsListOptions struct {
	Limit  int
	Offset int
}

// MessageJobStats represents counts of message jobs in each lifecycle state.
type MessageJobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
