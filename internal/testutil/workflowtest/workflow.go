// Package workflowtest wires the full messaging stack (repositories, services,
// dispatch coordinator, HTTP surface) against a real database for end-to-end
// workflow tests.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/service"
	"github.com/gagyekum/residency/internal/service/dispatch"
	"github.com/gagyekum/residency/internal/testutil"
	"github.com/gagyekum/residency/internal/transport"
)

// RepositoryProvider builds the repositories the harness wires into services.
// The harness hands it the per-test database, so callers construct real
// repositories without this package importing the data layer. That keeps the
// harness usable from data package tests.
type RepositoryProvider interface {
	MessageJobRepository(db *sql.DB) core.MessageJobRepository
	RecipientRepository(db *sql.DB) core.RecipientRepository
	ResidenceRepository(db *sql.DB) core.ResidenceRepository
}

// CacheProvider supplies a cache repository for the Redis client the harness
// creates. Only consulted when Redis is enabled.
type CacheProvider interface {
	CacheRepository(client *redis.Client) core.CacheRepository
}

// ScriptedTransport is an in-memory transport that records every send and can
// be scripted to fail specific addresses or the whole backend.
type ScriptedTransport struct {
	backend string

	mu        sync.Mutex
	sent      []transport.Message
	failing   map[string]error
	configErr error
}

// NewScriptedTransport creates a transport that succeeds for every address
// until scripted otherwise. The backend name appears in config faults.
func NewScriptedTransport(backend string) *ScriptedTransport {
	return &ScriptedTransport{
		backend: backend,
		failing: make(map[string]error),
	}
}

// Send implements transport.Transport.
func (s *ScriptedTransport) Send(_ context.Context, msg transport.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.configErr != nil {
		return s.configErr
	}
	if err, ok := s.failing[msg.To]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// FailAddress scripts a delivery failure for one address. Other addresses keep
// succeeding, so the job completes with that recipient marked failed.
func (s *ScriptedTransport) FailAddress(addr string) {
	s.FailAddressWith(addr, errors.New("scripted delivery failure"))
}

// FailAddressWith scripts a delivery failure for one address with a specific error.
func (s *ScriptedTransport) FailAddressWith(addr string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[addr] = err
}

// HealAddress removes the scripted failure for an address, so a retry succeeds.
func (s *ScriptedTransport) HealAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, addr)
}

// BreakBackend scripts a configuration fault: every subsequent send fails the
// whole channel instead of a single recipient.
func (s *ScriptedTransport) BreakBackend(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configErr = &transport.ConfigError{Backend: s.backend, Reason: reason}
}

// FixBackend clears a scripted configuration fault.
func (s *ScriptedTransport) FixBackend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configErr = nil
}

// Sent returns a copy of every message delivered so far.
func (s *ScriptedTransport) Sent() []transport.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentTo returns the addresses delivered so far, in send order.
func (s *ScriptedTransport) SentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, msg := range s.sent {
		out = append(out, msg.To)
	}
	return out
}

// WorkflowTestHarness owns a fully wired messaging stack for one test.
type WorkflowTestHarness struct {
	t  testutil.TestingTB
	ts *httptest.Server

	// DB is the per-test database behind every repository. Data-layer tests
	// assert against it directly where the repositories expose no view.
	DB *sql.DB

	// Repositories (interfaces, supplied by the RepositoryProvider)
	JobRepo       core.MessageJobRepository
	RecipientRepo core.RecipientRepository
	ResidenceRepo core.ResidenceRepository

	// Services and the dispatcher under test
	ResidenceSvc *service.ResidenceService
	MessagingSvc *service.MessagingService
	Coordinator  *dispatch.Coordinator

	// Scripted channel backends
	Email *ScriptedTransport
	SMS   *ScriptedTransport

	// Optional Redis components
	RedisAddr   string
	RedisClient *redis.Client
	CacheRepo   core.CacheRepository
	StatusCache *core.StatusCacheService
}

// WorkflowTestOptions configures the workflow test harness.
type WorkflowTestOptions struct {
	// EnableRedis wires the status cache through a real Redis instance
	EnableRedis bool
	// RedisAddr overrides the default Redis test address
	RedisAddr string
	// EmailConfig sets email dispatch pacing; zero values take dispatch defaults
	EmailConfig dispatch.ChannelConfig
	// SMSConfig sets sms dispatch pacing; zero values take dispatch defaults
	SMSConfig dispatch.ChannelConfig
	// RepositoryProvider provides repositories (required)
	RepositoryProvider RepositoryProvider
	// CacheProvider provides the cache repository (required when EnableRedis is true)
	CacheProvider CacheProvider
}

// DefaultWorkflowOptions returns options with fast pacing suited to tests:
// small batches, no inter-batch delay, no Redis.
// RepositoryProvider must be set by the caller.
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: false,
		EmailConfig: dispatch.ChannelConfig{BatchSize: 10},
		SMSConfig:   dispatch.ChannelConfig{BatchSize: 10},
	}
}

// RedisWorkflowOptions returns DefaultWorkflowOptions with Redis enabled.
// RepositoryProvider and CacheProvider must be set by the caller.
func RedisWorkflowOptions() WorkflowTestOptions {
	opts := DefaultWorkflowOptions()
	opts.EnableRedis = true
	return opts
}

// NewWorkflowTestHarness creates a harness with every component wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	if opts.RepositoryProvider == nil {
		t.Fatalf("RepositoryProvider is required")
	}

	h := &WorkflowTestHarness{
		t:     t,
		DB:    db,
		Email: NewScriptedTransport("email"),
		SMS:   NewScriptedTransport("sms"),
	}

	h.JobRepo = opts.RepositoryProvider.MessageJobRepository(db)
	h.RecipientRepo = opts.RepositoryProvider.RecipientRepository(db)
	h.ResidenceRepo = opts.RepositoryProvider.ResidenceRepository(db)

	if opts.EnableRedis {
		h.setupRedis(opts.RedisAddr, opts.CacheProvider)
	}

	h.Coordinator = dispatch.MustNewCoordinator(dispatch.CoordinatorOptions{
		Jobs:        h.JobRepo,
		Recipients:  h.RecipientRepo,
		Email:       h.Email,
		SMS:         h.SMS,
		EmailConfig: opts.EmailConfig,
		SMSConfig:   opts.SMSConfig,
	})

	h.ResidenceSvc = service.NewResidenceService(service.ResidenceServiceOptions{
		Repo: h.ResidenceRepo,
	})
	h.MessagingSvc = service.MustNewMessagingService(service.MessagingServiceOptions{
		Jobs:        h.JobRepo,
		Recipients:  h.RecipientRepo,
		Residences:  h.ResidenceRepo,
		Launcher:    h.Coordinator,
		StatusCache: h.StatusCache,
	})

	h.ts = httptest.NewServer(h.newTestRouter())
	return h
}

// setupRedis connects the status cache to a Redis instance, skipping the test
// when none is reachable.
func (h *WorkflowTestHarness) setupRedis(addr string, cacheProvider CacheProvider) {
	h.t.Helper()

	if cacheProvider == nil {
		h.t.Fatalf("CacheProvider is required when EnableRedis is true")
	}

	var client *redis.Client
	if addr == "" {
		client = testutil.SetupTestRedis(h.t)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			h.t.Logf("redis at %s unreachable: %v", addr, err)
			h.t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
			return
		}
	}

	h.RedisAddr = addr
	h.RedisClient = client
	h.CacheRepo = cacheProvider.CacheRepository(client)
	h.StatusCache = core.NewStatusCacheService(h.CacheRepo, 0)
}

// newTestRouter builds a minimal message API without importing the http
// package, which would cycle back into packages that use this harness.
func (h *WorkflowTestHarness) newTestRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/messaging", h.handleCreateJob)
	mux.HandleFunc("GET /api/v1/messaging/{id}/status", h.handleJobStatus)
	mux.HandleFunc("GET /api/v1/messaging/{id}/email-recipients", h.recipientsHandler(model.ChannelEmail))
	mux.HandleFunc("GET /api/v1/messaging/{id}/sms-recipients", h.recipientsHandler(model.ChannelSMS))
	mux.HandleFunc("POST /api/v1/messaging/{id}/retry", h.handleRetryJob)

	return mux
}

func (h *WorkflowTestHarness) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req *model.CreateMessageJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	job, err := h.MessagingSvc.Create(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, job.Detail())
}

func (h *WorkflowTestHarness) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.MessagingSvc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *WorkflowTestHarness) recipientsHandler(channel model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsed
		}

		result, err := h.MessagingSvc.ListRecipients(r.Context(), core.RecipientPageParams{
			JobID:   r.PathValue("id"),
			Channel: channel,
			Page:    page,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, result)
	}
}

func (h *WorkflowTestHarness) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.MessagingSvc.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *WorkflowTestHarness) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.t.Fatalf("encode response: %v", err)
	}
}

// Close shuts down the dispatcher and every resource the harness owns. Call it
// before the database teardown so in-flight dispatch finishes first.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Coordinator.Shutdown(ctx); err != nil {
		h.t.Logf("warning: dispatcher shutdown: %v", err)
	}

	if h.ts != nil {
		h.ts.Close()
	}
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: redis client close: %v", err)
		}
	}
}

// BaseURL is the address of the harness HTTP server.
func (h *WorkflowTestHarness) BaseURL() string {
	return h.ts.URL
}

// SeedDirectory creates the given residences and returns them in order.
func (h *WorkflowTestHarness) SeedDirectory(reqs ...*model.CreateResidenceRequest) []*model.Residence {
	h.t.Helper()

	ctx := context.Background()
	out := make([]*model.Residence, 0, len(reqs))
	for _, req := range reqs {
		res, err := h.ResidenceSvc.Create(ctx, req)
		if err != nil {
			h.t.Fatalf("seed residence %s: %v", req.HouseNumber, err)
		}
		out = append(out, res)
	}
	return out
}

// WaitForTerminal polls until the job leaves processing or the timeout
// expires. Dispatch is asynchronous, so every workflow test needs this.
func (h *WorkflowTestHarness) WaitForTerminal(jobID string, timeout time.Duration) *model.MessageJob {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		job, err := h.JobRepo.GetByID(context.Background(), jobID)
		if err != nil {
			h.t.Fatalf("poll job %s: %v", jobID, err)
		}
		if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
			return job
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("job %s still %s after %s", jobID, job.Status, timeout)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// StandardDirectory returns the canonical three-residence directory used by
// workflow tests: two residences reachable on both channels and one reachable
// by SMS only, for two email targets and three SMS targets in total.
func StandardDirectory() []*model.CreateResidenceRequest {
	return []*model.CreateResidenceRequest{
		testutil.ResidenceWithContacts("A-01", "Mensah Residence", "mensah@example.com", "+233201111111"),
		testutil.ResidenceWithContacts("A-02", "Owusu Residence", "owusu@example.com", "+233202222222"),
		testutil.PhoneOnlyResidence("B-07", "Asante Residence", "+233203333333"),
	}
}

// HTTPClient drives the harness API the way an external caller would.
type HTTPClient struct {
	t       testutil.TestingTB
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an HTTP client bound to the harness server.
func (h *WorkflowTestHarness) NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		t:       h.t,
		baseURL: h.BaseURL(),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// DoJSON performs one JSON request against the harness server. The deadline
// comes from the underlying client, so the response body stays readable after
// this returns.
func (c *HTTPClient) DoJSON(method, path string, payload any) *http.Response {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal %s %s payload: %v", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		c.t.Fatalf("build %s %s: %v", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// CreateMessageJob creates a message job via the API and returns its detail payload.
func (c *HTTPClient) CreateMessageJob(req *model.CreateMessageJobRequest) model.MessageJobDetail {
	c.t.Helper()

	resp := c.DoJSON(http.MethodPost, "/api/v1/messaging", req)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create message job status: %d, response: %s", resp.StatusCode, readBody(c.t, resp))
	}

	var detail model.MessageJobDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		c.t.Fatalf("decode created job: %v", err)
	}
	return detail
}

// GetJobStatus fetches the polling payload for a job via the API.
func (c *HTTPClient) GetJobStatus(jobID string) model.JobStatusResponse {
	c.t.Helper()

	resp := c.DoJSON(http.MethodGet, "/api/v1/messaging/"+jobID+"/status", nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("get job status: %d, response: %s", resp.StatusCode, readBody(c.t, resp))
	}

	var status model.JobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		c.t.Fatalf("decode job status: %v", err)
	}
	return status
}

// RetryJob re-arms a job's failed recipients via the API.
func (c *HTTPClient) RetryJob(jobID string) model.JobStatusResponse {
	c.t.Helper()

	resp := c.DoJSON(http.MethodPost, "/api/v1/messaging/"+jobID+"/retry", nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("retry job status: %d, response: %s", resp.StatusCode, readBody(c.t, resp))
	}

	var status model.JobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		c.t.Fatalf("decode retry response: %v", err)
	}
	return status
}

// ListRecipients fetches one page of a job's recipients for a channel via the API.
func (c *HTTPClient) ListRecipients(jobID string, channel model.Channel, page int) model.RecipientPage {
	c.t.Helper()

	path := fmt.Sprintf("/api/v1/messaging/%s/%s-recipients?page=%d", jobID, channel, page)
	resp := c.DoJSON(http.MethodGet, path, nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("list %s recipients status: %d, response: %s", channel, resp.StatusCode, readBody(c.t, resp))
	}

	var result model.RecipientPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.t.Fatalf("decode recipient page: %v", err)
	}
	return result
}

func (c *HTTPClient) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.t.Logf("warning: failed to close response body: %v", err)
	}
}

func readBody(t testutil.TestingTB, resp *http.Response) string {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Logf("warning: failed to read response body: %v", err)
		return ""
	}
	return string(b)
}

// WithWorkflowHarness sets up a database, builds the harness, runs fn, and
// tears everything down in order.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()
	testutil.SkipIfNoTestDB(t)
	skipIfRedisUnavailable(t, opts)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		h := NewWorkflowTestHarness(t, db, opts)
		defer h.Close()
		fn(h)
	})
}

// skipIfRedisUnavailable skips the test early when Redis is requested but down.
func skipIfRedisUnavailable(t testutil.TestingTB, opts WorkflowTestOptions) {
	t.Helper()
	if !opts.EnableRedis {
		return
	}

	addr := opts.RedisAddr
	if addr == "" {
		if _, ok := testutil.GetTestRedisAddr(t); !ok {
			t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		}
		return
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
}
