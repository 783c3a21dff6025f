package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

// integrationClient serves every workflow test so connections are reused the
// way a real caller would.
var integrationClient = &http.Client{Timeout: 10 * time.Second}

// doJSON issues method against url, marshalling payload as the JSON body.
// A nil payload sends an empty body. The request context ends with the test.
func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal %s %s payload: %v", method, url, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, body)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := integrationClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}
