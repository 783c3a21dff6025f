package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON marshals v before touching the response, so an encoding failure
// still produces a clean 500 instead of a half-written body.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// A short write means the client went away; there is nothing to salvage.
	_, _ = w.Write(append(body, '\n'))
}

// WriteError renders the standard {"error", "message"} body.
func WriteError(w http.ResponseWriter, code int, errCode string, err error) {
	WriteJSON(w, code, map[string]string{"error": errCode, "message": err.Error()})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
// On failure it writes the 400 response itself and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", err)
		return false
	}
	return true
}
