package httpx

import (
	"net/http"
	"strconv"
)

// The health payload is fixed, so its length is advertised up front and a
// HEAD probe gets the same headers with no body.
var healthBody = []byte(`{"service":"residency","status":"ok"}`)

// healthHandler answers liveness and readiness probes.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(healthBody)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(healthBody)
	}
}
