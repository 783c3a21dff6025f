package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagyekum/residency/internal/migrate"
	// Registers the pgx database/sql driver the helpers open with.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const (
	probeTimeout   = 2 * time.Second
	connectTimeout = 5 * time.Second
	migrateTimeout = 10 * time.Second
	cleanupTimeout = 30 * time.Second

	redisLockTTL = 30 * time.Minute
)

// TestingTB is the subset of testing.TB these helpers need, so benchmarks can
// drive them too.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// TestDBConfig describes how to reach the test database server.
type TestDBConfig struct {
	Host     string // TEST_DB_HOST
	Port     string // TEST_DB_PORT
	User     string // TEST_DB_USER
	Password string // TEST_DB_PASSWORD
	DBName   string // TEST_DB_NAME
}

// DefaultTestDBConfig reads TEST_DB_* overrides and falls back to the local
// docker-compose test profile on port 55432. CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "residency"),
		Password: envOr("TEST_DB_PASSWORD", "residency"),
		DBName:   envOr("TEST_DB_NAME", "residency"),
	}
}

// DSN renders the config as a pgx connection string. DB_SSL_MODE defaults to
// disable since the local test server speaks plaintext.
func (c TestDBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		c.User, c.Password, net.JoinHostPort(c.Host, c.Port), c.DBName,
		envOr("DB_SSL_MODE", "disable"))
}

// schemaDSN pins search_path to the given schema, keeping public as fallback.
func (c TestDBConfig) schemaDSN(t TestingTB, schema string) string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		t.Fatal("Failed to parse DSN:", err)
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips the test when the database is unreachable, or fails it
// when TEST_REQUIRE_DB or TEST_REQUIRE_INFRA demands infrastructure.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()

	if err := pingDB(t, DefaultTestDBConfig().DSN()); err != nil {
		if mustHave("DB") {
			t.Fatal("Test database not reachable:", err)
		}
		t.Skip("Test database not reachable:", err)
	}
}

// pingDB opens a throwaway connection and pings it.
func pingDB(t TestingTB, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer closeQuietly(t, "probe connection", db)

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// SetupTestDB connects to the shared test database, applies migrations, and
// wipes any rows earlier tests left behind.
func SetupTestDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	db := openTestDB(t, DefaultTestDBConfig().DSN())

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatal("Failed to run migrations:", err)
	}

	cleanupTables(t, db)
	return db
}

func openTestDB(t TestingTB, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatal("Failed to open database:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		closeQuietly(t, "database", db)
		t.Fatal("Failed to reach test database. Is the compose test profile up?", pingErr)
	}
	return db
}

// Children first so plain DELETEs satisfy the foreign keys.
var cleanupOrder = []string{
	"message_recipients",
	"message_jobs",
	"residence_phone_numbers",
	"residence_email_addresses",
	"residences",
}

func cleanupTables(t TestingTB, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	for _, table := range cleanupOrder {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clear table %s: %v", table, err)
		}
	}
}

func teardown(t TestingTB, db *sql.DB) {
	t.Helper()
	cleanupTables(t, db)
	closeQuietly(t, "test database", db)
}

// WithTestDB runs fn against the shared test database, even when
// TEST_DB_EPHEMERAL is set.
func WithTestDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()

	db := SetupTestDB(t)
	defer teardown(t, db)
	fn(db)
}

// WithAutoDB hands fn a migrated database. With TEST_DB_EPHEMERAL set each
// call gets its own schema; otherwise the shared database is reused and wiped
// between tests.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()

	if envBool("TEST_DB_EPHEMERAL") {
		fn(setupEphemeralDB(t))
		return
	}
	db := SetupTestDB(t)
	defer teardown(t, db)
	fn(db)
}

// ephemeralDB owns one throwaway schema on the shared server, so packages can
// migrate and run side by side without clobbering each other's rows.
type ephemeralDB struct {
	admin  *sql.DB
	handle *sql.DB
	schema string
}

func setupEphemeralDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	cfg := DefaultTestDBConfig()
	e := &ephemeralDB{schema: randomSchemaName()}
	// Registered before anything opens so a failed setup still releases.
	registerCleanup(t, func() { e.release(t) })

	e.admin = openTestDB(t, cfg.DSN())
	e.create(t)

	e.handle = openTestDB(t, cfg.schemaDSN(t, e.schema))
	e.handle.SetMaxOpenConns(10)
	e.handle.SetMaxIdleConns(5)
	e.migrate(t)

	t.Logf("Using ephemeral schema %s", e.schema)
	return e.handle
}

func (e *ephemeralDB) create(t TestingTB) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := e.admin.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+e.schema); err != nil {
		t.Fatalf("Failed to create schema %s: %v", e.schema, err)
	}
}

func (e *ephemeralDB) migrate(t TestingTB) {
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := migrate.Run(ctx, e.handle); err != nil {
		t.Fatal("Failed to run migrations in ephemeral schema:", err)
	}
}

func (e *ephemeralDB) release(t TestingTB) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if e.handle != nil {
		closeQuietly(t, "schema connection", e.handle)
	}
	if e.admin != nil {
		if _, err := e.admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+e.schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", e.schema, err)
		}
		closeQuietly(t, "admin connection", e.admin)
	}
}

func randomSchemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

// registerCleanup schedules fn for test teardown. No-op for a TestingTB that
// cannot register cleanups.
func registerCleanup(t TestingTB, fn func()) {
	if tc, ok := any(t).(interface{ Cleanup(func()) }); ok {
		tc.Cleanup(fn)
	}
}

func closeQuietly(t TestingTB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool treats 1, true, yes, and y (any case) as set.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// mustHave reports whether a missing backend should fail the test instead of
// skipping it. TEST_REQUIRE_INFRA covers every backend at once for CI.
func mustHave(backend string) bool {
	return envBool("TEST_REQUIRE_"+backend) || envBool("TEST_REQUIRE_INFRA")
}

// TestTime returns the fixed instant used across tests, 2024-01-01 12:00 UTC.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// MessageJobState is a debugging snapshot of one message_jobs row.
type MessageJobState struct {
	ID           string
	Status       string
	EmailSent    int
	EmailFailed  int
	SMSSent      int
	SMSFailed    int
	ErrorMessage string
	CompletedAt  *time.Time
}

// InspectMessageJobStates dumps every message job row, oldest first. Meant for
// debugging stuck workflow tests, not for assertions.
func InspectMessageJobStates(t TestingTB, db *sql.DB) []MessageJobState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	const q = `
		SELECT id, status, email_sent_count, email_failed_count,
		       sms_sent_count, sms_failed_count, error_message, completed_at
		FROM message_jobs
		ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		t.Fatalf("query message job states: %v", err)
	}
	defer closeQuietly(t, "job state rows", rows)

	var states []MessageJobState
	for rows.Next() {
		var s MessageJobState
		if scanErr := rows.Scan(&s.ID, &s.Status, &s.EmailSent, &s.EmailFailed,
			&s.SMSSent, &s.SMSFailed, &s.ErrorMessage, &s.CompletedAt); scanErr != nil {
			t.Fatalf("scan message job state: %v", scanErr)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate message job states: %v", err)
	}
	return states
}

// LogMessageJobStates writes one log line per message job under the given
// label.
func LogMessageJobStates(t TestingTB, db *sql.DB, label string) {
	t.Helper()

	for i, job := range InspectMessageJobStates(t, db) {
		t.Logf("%s: job %d id=%s status=%s email=%d/%d sms=%d/%d err=%q completed=%v",
			label, i+1, job.ID[:8], job.Status,
			job.EmailSent, job.EmailFailed, job.SMSSent, job.SMSFailed,
			job.ErrorMessage, job.CompletedAt)
	}
}

// Redis helpers.

// GetTestRedisAddr returns the Redis address tests should use and whether
// anything answered there. REDIS_ADDR wins when set; otherwise the usual CI
// addresses are probed before the docker-compose test port.
func GetTestRedisAddr(t TestingTB) (string, bool) {
	t.Helper()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr, redisAnswers(t, addr)
	}
	for _, addr := range []string{"redis:6379", "localhost:6379"} {
		if redisAnswers(t, addr) {
			return addr, true
		}
	}
	const local = "localhost:56379"
	return local, redisAnswers(t, local)
}

func redisAnswers(t TestingTB, addr string) bool {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer closeQuietly(t, "redis probe", client)

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("no Redis answering at %s: %v", addr, err)
		return false
	}
	return true
}

// reserveRedisDB picks a logical database for this package's tests. A lock key
// held in DB 0 marks the reservation, so FlushDB on the reserved database
// cannot erase it. TEST_REDIS_DB overrides the scan.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("Ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer closeQuietly(t, "redis meta client", meta)

	for i := 1; i <= 15; i++ {
		if !lockRedisDB(t, meta, addr, i) {
			continue
		}
		t.Logf("Reserved Redis DB=%d at %s", i, addr)
		return i
	}

	t.Logf("All Redis DBs busy at %s, sharing DB=1", addr)
	return 1
}

func lockRedisDB(t TestingTB, meta *redis.Client, addr string, db int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	key := fmt.Sprintf("residency:testutil:db_lock:%d", db)
	val := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	ok, err := meta.SetNX(ctx, key, val, redisLockTTL).Result()
	if err != nil || !ok {
		return false
	}

	registerCleanup(t, func() { unlockRedisDB(t, addr, key) })
	return true
}

func unlockRedisDB(t TestingTB, addr, key string) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer closeQuietly(t, "redis unlock client", c)

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := c.Del(ctx, key).Err(); err != nil {
		t.Logf("release redis db lock %s: %v", key, err)
	}
}

// SetupTestRedis connects to the test Redis, reserves a logical database, and
// flushes it. Tests skip when Redis is unreachable unless TEST_REQUIRE_REDIS
// or TEST_REQUIRE_INFRA is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		if mustHave("REDIS") {
			t.Fatal("Test Redis not reachable")
		}
		t.Skip("Test Redis not reachable")
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   reserveRedisDB(t, addr),
	})

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		closeQuietly(t, "redis client", client)
		if mustHave("REDIS") {
			t.Fatalf("Test Redis at %s stopped answering: %v", addr, err)
		}
		t.Skipf("Test Redis at %s stopped answering: %v", addr, err)
	}

	client.FlushDB(ctx)
	return client
}

// Pointer helpers for optional request fields.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
