package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/domain/model"
	apperrors "github.com/gagyekum/residency/internal/errors"
	"github.com/gagyekum/residency/internal/service"
)

// ResidenceHandlers provides HTTP handlers for residence directory operations.
type ResidenceHandlers struct {
	Svc    *service.ResidenceService
	Logger *slog.Logger
}

const (
	maxResidenceListLimit = 100 // Maximum number of residences that can be requested in one call
)

// Create handles HTTP requests to create a residence with its contact rows.
func (h *ResidenceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateResidenceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	residence, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err, "create_failed")
		return
	}

	WriteJSON(w, http.StatusCreated, residence)
}

// List handles HTTP requests to list residences with pagination. The optional
// q param matches house number, name, or any phone number.
func (h *ResidenceHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, maxResidenceListLimit)

	opts := model.ResidencesListOptions{Limit: limit, Offset: offset}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		opts.Q = &q
	}

	residences, total, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err, "list_failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"residences": residences,
		"count":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetByID handles HTTP requests to get a residence by ID.
func (h *ResidenceHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.residenceID(w, r)
	if !ok {
		return
	}

	residence, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "get_failed")
		return
	}

	WriteJSON(w, http.StatusOK, residence)
}

// Update handles HTTP requests to update a residence. A contact list in the
// body replaces the stored rows wholesale.
func (h *ResidenceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.residenceID(w, r)
	if !ok {
		return
	}

	var req model.UpdateResidenceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	residence, err := h.Svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err, "update_failed")
		return
	}

	WriteJSON(w, http.StatusOK, residence)
}

// Delete handles HTTP requests to delete a residence and its contact rows.
func (h *ResidenceHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.residenceID(w, r)
	if !ok {
		return
	}

	deleted, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "delete_failed")
		return
	}

	if !deleted {
		WriteError(w, http.StatusNotFound, "residence_not_found", errors.New("residence not found"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Search handles HTTP requests for the directory search used by interactive
// pickers: a POST body with the term and page, a fixed-size result envelope.
func (h *ResidenceHandlers) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Search string `json:"search"`
		Page   int    `json:"page"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	page, err := h.Svc.Search(r.Context(), service.SearchParams{Search: req.Search, Page: req.Page})
	if err != nil {
		h.writeError(w, r, err, "search_failed")
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// residenceID parses the id path value, writing the 400 itself so handlers
// can bail with a bare return.
func (h *ResidenceHandlers) residenceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "invalid_path", errors.New("residence id is required"))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_path", fmt.Errorf("invalid residence id: %q", raw))
		return 0, false
	}
	return id, true
}

// writeError maps repository errors onto HTTP responses. Raw database errors
// go through MapDBError so constraint violations and timeouts surface as
// stable client errors instead of opaque 500s.
func (h *ResidenceHandlers) writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	if errors.Is(err, data.ErrResidenceNotFound) {
		WriteError(w, http.StatusNotFound, "residence_not_found", err)
		return
	}
	if isValidationError(err) {
		WriteError(w, http.StatusBadRequest, "validation_failed", err)
		return
	}

	var appErr *apperrors.AppError
	if mapped := apperrors.MapDBError(err); errors.As(mapped, &appErr) {
		status := appErrorStatus(appErr.Code)
		if status >= http.StatusInternalServerError && h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "residence request failed", "path", r.URL.Path, "error", err)
		}
		// Only the user-facing message leaves the process; the cause stays in logs.
		WriteError(w, status, string(appErr.Code), errors.New(appErr.Message))
		return
	}

	if h.Logger != nil {
		h.Logger.ErrorContext(r.Context(), "residence request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(w, http.StatusInternalServerError, fallbackCode, err)
}
