// Package httpx provides HTTP handlers and utilities for the residency messaging API.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/service"
	"github.com/google/uuid"
)

// MessagingHandlers provides HTTP handlers for message job operations.
type MessagingHandlers struct {
	Svc    *service.MessagingService
	Logger *slog.Logger
}

const (
	maxJobListLimit = 100 // Maximum number of message jobs that can be requested in one call
)

// Create handles HTTP requests to compose a new message job. The recipient
// list is frozen and dispatch starts before the response is written.
func (h *MessagingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateMessageJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			WriteError(w, http.StatusBadRequest, "validation_failed", err)
			return
		}
		h.logError(r, "create message job failed", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", err)
		return
	}

	WriteJSON(w, http.StatusCreated, job.Detail())
}

// List handles HTTP requests to list message jobs with pagination.
func (h *MessagingHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, maxJobListLimit)

	jobs, total, err := h.Svc.List(r.Context(), model.MessageJobsListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.logError(r, "list message jobs failed", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", err)
		return
	}

	results := make([]model.MessageJobDetail, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, job.Detail())
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   results,
		"count":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Stats handles HTTP requests to retrieve message job counts per status.
func (h *MessagingHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		h.logError(r, "message job stats failed", err)
		WriteError(w, http.StatusInternalServerError, "stats_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetByID handles HTTP requests to get a message job with derived progress.
func (h *MessagingHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job_not_found", err)
			return
		}
		h.logError(r, "get message job failed", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, job.Detail())
}

// GetStatus handles HTTP requests for the lightweight polling payload.
func (h *MessagingHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.Svc.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job_not_found", errors.New("message job not found"))
		} else {
			h.logError(r, "get job status failed", err)
			WriteError(w, http.StatusInternalServerError, "get_status_failed", errors.New("failed to get job status"))
		}
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// EmailRecipients handles HTTP requests for one page of a job's email recipients.
func (h *MessagingHandlers) EmailRecipients(w http.ResponseWriter, r *http.Request) {
	h.listRecipients(w, r, model.ChannelEmail)
}

// SMSRecipients handles HTTP requests for one page of a job's SMS recipients.
func (h *MessagingHandlers) SMSRecipients(w http.ResponseWriter, r *http.Request) {
	h.listRecipients(w, r, model.ChannelSMS)
}

func (h *MessagingHandlers) listRecipients(w http.ResponseWriter, r *http.Request, channel model.Channel) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}
	page := parseIntQuery(r, "page", 1)

	result, err := h.Svc.ListRecipients(r.Context(), core.RecipientPageParams{
		JobID:   id,
		Channel: channel,
		Page:    page,
	})
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job_not_found", err)
			return
		}
		h.logError(r, "list recipients failed", err)
		WriteError(w, http.StatusInternalServerError, "list_recipients_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, recipientPagePayload(channel, result))
}

// Retry handles HTTP requests to re-arm a job's failed recipients and resume
// dispatch. A job a dispatcher still owns is rejected with 409.
func (h *MessagingHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.Svc.Retry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrJobNotFound):
			WriteError(w, http.StatusNotFound, "job_not_found", err)
		case errors.Is(err, data.ErrJobProcessing):
			WriteError(w, http.StatusConflict, "job_processing", err)
		case errors.Is(err, data.ErrNothingToRetry):
			WriteError(w, http.StatusBadRequest, "nothing_to_retry", err)
		default:
			h.logError(r, "retry message job failed", err)
			WriteError(w, http.StatusInternalServerError, "retry_failed", err)
		}
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

func (h *MessagingHandlers) logError(r *http.Request, msg string, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.ErrorContext(r.Context(), msg, "path", r.URL.Path, "error", err)
}

// jobIDFromPath pulls the job id from the request path, writing a 400 when it
// is missing or not a UUID.
func jobIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "invalid_path", errors.New("job id is required"))
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_path", errors.New("job id must be a valid UUID"))
		return "", false
	}
	return id, true
}

// recipientRow is the API shape of one recipient. The frozen address renders
// as email_address or phone_number depending on the channel.
type recipientRow struct {
	ID            int64                 `json:"id"`
	ResidenceID   int64                 `json:"residence"`
	ResidenceName string                `json:"residence_name"`
	HouseNumber   string                `json:"house_number"`
	EmailAddress  string                `json:"email_address,omitempty"`
	PhoneNumber   string                `json:"phone_number,omitempty"`
	Status        model.RecipientStatus `json:"status"`
	ErrorMessage  string                `json:"error_message"`
	SentAt        *time.Time            `json:"sent_at"`
}

type recipientPageBody struct {
	Count   int            `json:"count"`
	Next    bool           `json:"next"`
	Page    int            `json:"page"`
	Results []recipientRow `json:"results"`
}

func recipientPagePayload(channel model.Channel, page *model.RecipientPage) recipientPageBody {
	results := make([]recipientRow, 0, len(page.Results))
	for _, rec := range page.Results {
		row := recipientRow{
			ID:            rec.ID,
			ResidenceID:   rec.ResidenceID,
			ResidenceName: rec.ResidenceName,
			HouseNumber:   rec.HouseNumber,
			Status:        rec.Status,
			ErrorMessage:  rec.ErrorMessage,
			SentAt:        rec.SentAt,
		}
		if channel == model.ChannelEmail {
			row.EmailAddress = rec.Address
		} else {
			row.PhoneNumber = rec.Address
		}
		results = append(results, row)
	}
	return recipientPageBody{
		Count:   page.Count,
		Next:    page.Next,
		Page:    page.Page,
		Results: results,
	}
}
