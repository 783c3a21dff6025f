package model

import "time"

// RecipientStatus represents the delivery state of a single recipient row.
type RecipientStatus string

const (
	// RecipientStatusPending indicates the recipient has not been attempted yet.
	RecipientStatusPending RecipientStatus = "pending"
	// RecipientStatusSent indicates the transport accepted the message.
	RecipientStatusSent RecipientStatus = "sent"
	// RecipientStatusFailed indicates the transport reported a delivery failure.
	RecipientStatusFailed RecipientStatus = "failed"
)

// Valid returns true if the RecipientStatus is valid.
func (s RecipientStatus) Valid() bool {
	return s == RecipientStatusPending || s == RecipientStatusSent || s == RecipientStatusFailed
}

// Recipient is one (job, channel, address) delivery target. The residence name,
// house number and address are frozen at resolution time; later directory edits
// never change historical rows.
type Recipient struct {
	ID            int64           `json:"id"             db:"id"`
	JobID         string          `json:"-"              db:"job_id"`
	Channel       Channel         `json:"-"              db:"channel"`
	ResidenceID   int64           `json:"residence"      db:"residence_id"`
	ResidenceName string          `json:"residence_name" db:"residence_name"`
	HouseNumber   string          `json:"house_number"   db:"house_number"`
	Address       string          `json:"address"        db:"address"`
	Status        RecipientStatus `json:"status"         db:"status"`
	ErrorMessage  string          `json:"error_message"  db:"error_message"`
	SentAt        *time.Time      `json:"sent_at"        db:"sent_at"`
}

// RecipientPage is one fixed-size page of a job's recipients for one channel.
// Next reports whether another page exists after this one.
type RecipientPage struct {
	Count   int         `json:"count"`
	Next    bool        `json:"next"`
	Page    int         `json:"page"`
	Results []Recipient `json:"results"`
}

// DeliveryTarget is one (residence, address) pair produced by recipient
// resolution. Every address a residence has on the channel yields a target.
type DeliveryTarget struct {
	ResidenceID   int64
	ResidenceName string
	HouseNumber   string
	Address       string
}
