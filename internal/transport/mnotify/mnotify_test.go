package mnotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagyekum/residency/internal/transport"
)

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{APIKey: "key", SenderID: "RESIDENCY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %s", client.endpoint)
	}
	if client.resultPath != DefaultResultPath {
		t.Fatalf("expected default result path, got %s", client.resultPath)
	}
	if client.successCode != DefaultSuccessCode {
		t.Fatalf("expected default success code, got %s", client.successCode)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "://not-a-url"}); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewClient(Config{ResultPath: "]["}); err == nil {
		t.Fatal("expected error for invalid result path")
	}
}

func TestSendUnconfigured(t *testing.T) {
	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Send(context.Background(), transport.Message{To: "+233201234567", Body: "hi"})
	if !transport.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestSendSuccess(t *testing.T) {
	var gotReq smsRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","code":"2000","message":"messages sent successfully"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "secret", SenderID: "RESIDENCY", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Send(context.Background(), transport.Message{To: "+233201234567", Body: "Water off Saturday."})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if gotKey != "secret" {
		t.Fatalf("expected api key query param, got %q", gotKey)
	}
	if len(gotReq.Recipient) != 1 || gotReq.Recipient[0] != "+233201234567" {
		t.Fatalf("unexpected recipient list: %v", gotReq.Recipient)
	}
	if gotReq.Sender != "RESIDENCY" {
		t.Fatalf("unexpected sender: %s", gotReq.Sender)
	}
	if gotReq.Message != "Water off Saturday." {
		t.Fatalf("unexpected message: %s", gotReq.Message)
	}
	if gotReq.IsSchedule {
		t.Fatal("expected is_schedule false")
	}
}

func TestSendProviderRejection(t *testing.T) {
	// MNotify reports failures with HTTP 200 and a numeric code.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":1002,"message":"invalid api key"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "bad", SenderID: "RESIDENCY", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Send(context.Background(), transport.Message{To: "+233201234567", Body: "hi"})
	if err == nil {
		t.Fatal("expected provider rejection error")
	}
	if !strings.Contains(err.Error(), "invalid api key") || !strings.Contains(err.Error(), "1002") {
		t.Fatalf("expected message and code in error, got %v", err)
	}
	if transport.IsConfigError(err) {
		t.Fatalf("provider rejection should be an ordinary delivery failure, got %v", err)
	}
}

func TestSendHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", SenderID: "RESIDENCY", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Send(context.Background(), transport.Message{To: "+233201234567", Body: "hi"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestSendCustomResultPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:      "key",
		SenderID:    "RESIDENCY",
		Endpoint:    srv.URL,
		ResultPath:  "data.status",
		SuccessCode: "ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.Send(context.Background(), transport.Message{To: "+233201234567", Body: "hi"}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
}
