package httpx

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/gagyekum/residency/internal/errors"
)

// validationHints are substrings of the hand-written validation messages the
// model layer returns. A match maps the error to a 400 instead of a 5xx.
var validationHints = []string{
	"is required and cannot be empty",
	"cannot be empty",
	"cannot exceed",
	"at least one field must be updated",
	"at least one channel must be selected",
	"is required when sending email",
	"invalid channel",
	"invalid phone number",
	"invalid email address",
	"does not have a registrable domain",
	"at most one",
}

// parseIntQuery reads an integer query parameter, falling back to def when
// the parameter is absent or malformed.
func parseIntQuery(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

// ParseLimitOffset reads the limit and offset pagination parameters, clamping
// limit to [1, maxLimit] and offset to zero or above.
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (limit, offset int) {
	maxLimit = max(maxLimit, 1)
	limit = min(max(parseIntQuery(r, "limit", defLimit), 1), maxLimit)
	offset = max(parseIntQuery(r, "offset", 0), 0)
	return limit, offset
}

// isValidationError reports whether err reads like a request validation
// failure. The model layer returns plain errors, so this matches on message
// fragments rather than types.
func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return slices.ContainsFunc(validationHints, func(hint string) bool {
		return strings.Contains(msg, hint)
	})
}

// appErrorStatus maps an AppError code onto an HTTP status.
func appErrorStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeConflict, apperrors.ErrCodeForeignKey:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
