package httpx

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Logging returns middleware that emits one structured line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Recover returns middleware that converts handler panics into plain 500s.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				logger.Error("panic",
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CompressionConfig tunes the gzip middleware.
type CompressionConfig struct {
	// Level is the gzip level, 1 through 9. Out-of-range values fall back
	// to gzip.DefaultCompression.
	Level int
	// MinSize is the smallest body, in bytes, worth compressing. Zero
	// compresses everything.
	MinSize int
	Logger  *slog.Logger

	pool          *compressorPool
	compressTypes map[string]bool
}

// Content types this API serves that shrink meaningfully under gzip.
var textLikeTypes = map[string]bool{
	"application/json": true,
	"application/xml":  true,
	"text/html":        true,
	"text/plain":       true,
	"text/xml":         true,
}

// compressorPool recycles gzip writers for one compression level.
type compressorPool struct {
	pool sync.Pool
}

func newCompressorPool(level int) *compressorPool {
	p := &compressorPool{}
	p.pool.New = func() any {
		w, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}
		return w
	}
	return p
}

func (p *compressorPool) get(dst io.Writer) *gzip.Writer {
	w := p.pool.Get().(*gzip.Writer)
	w.Reset(dst)
	return w
}

func (p *compressorPool) put(w *gzip.Writer) {
	w.Reset(io.Discard)
	p.pool.Put(w)
}

// Compression returns middleware that gzips qualifying responses: the client
// must accept gzip, the method must not be HEAD, the status and content type
// must qualify, and with MinSize set the body has to reach that many bytes.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.Level < gzip.BestSpeed || cfg.Level > gzip.BestCompression {
		cfg.Level = gzip.DefaultCompression
	}
	if cfg.compressTypes == nil {
		cfg.compressTypes = textLikeTypes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.pool = newCompressorPool(cfg.Level)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			cw := &compressingWriter{
				ResponseWriter: w,
				req:            r,
				cfg:            &cfg,
			}
			next.ServeHTTP(cw, r)
			cw.finish()
		})
	}
}

// acceptsGzip reports whether the Accept-Encoding header admits gzip. A
// q-value of zero counts as an explicit refusal.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
			continue
		}
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			switch strings.TrimSpace(v) {
			case "0", "0.0", "0.00", "0.000":
				return false
			}
		}
		return true
	}
	return false
}

func compressibleType(contentType string, types map[string]bool) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return types[mt]
}

// compressingWriter defers the compression decision until the handler commits
// a status and, with a minimum size configured, until enough body has
// accumulated to justify it.
type compressingWriter struct {
	http.ResponseWriter
	req *http.Request
	cfg *CompressionConfig

	gz       *gzip.Writer
	status   int
	decided  bool   // handler called WriteHeader
	sent     bool   // status flushed to the underlying writer
	compress bool   // response qualified for gzip
	pending  []byte // body held back while under the minimum size
}

// WriteHeader records the status and decides whether the response qualifies
// for compression. With a minimum size set the status stays unsent until the
// body clears the threshold or the response ends.
func (w *compressingWriter) WriteHeader(status int) {
	if w.decided {
		return
	}
	w.decided = true
	w.status = status

	switch {
	case status < 200, status == http.StatusNoContent, status == http.StatusNotModified:
	case w.Header().Get("Content-Encoding") != "":
	case !w.typeQualifies():
	default:
		w.compress = true
		if w.cfg.MinSize <= 0 {
			w.beginGzip()
		}
		return
	}
	w.sendHeader()
}

// typeQualifies treats a missing Content-Type as compressible since Write
// sniffs the type before deciding on the common path.
func (w *compressingWriter) typeQualifies() bool {
	ct := w.Header().Get("Content-Type")
	return ct == "" || compressibleType(ct, w.cfg.compressTypes)
}

// sendHeader flushes the recorded status downstream exactly once.
func (w *compressingWriter) sendHeader() {
	if w.sent {
		return
	}
	w.sent = true
	w.ResponseWriter.WriteHeader(w.status)
}

// beginGzip commits to compression: swaps the encoding headers in, sends the
// status, and routes subsequent writes through a pooled gzip writer.
func (w *compressingWriter) beginGzip() {
	w.gz = w.cfg.pool.get(w.ResponseWriter)
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length") // stale once the body is compressed
	w.sendHeader()
}

func (w *compressingWriter) Write(b []byte) (int, error) {
	if !w.decided {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}

	switch {
	case !w.compress:
		return w.ResponseWriter.Write(b)
	case w.gz != nil:
		return w.gz.Write(b)
	}

	// Still under the minimum size.
	w.pending = append(w.pending, b...)
	if len(w.pending) >= w.cfg.MinSize {
		held := w.pending
		w.pending = nil
		w.beginGzip()
		if _, err := w.gz.Write(held); err != nil {
			return len(b), err
		}
	}
	return len(b), nil
}

// finish resolves a still-pending size decision and returns the gzip writer
// to the pool. A body that never reached the minimum goes out uncompressed.
func (w *compressingWriter) finish() {
	w.flushPending()
	if w.gz == nil {
		return
	}
	if err := w.gz.Close(); err != nil {
		w.cfg.Logger.ErrorContext(w.req.Context(), "closing gzip writer failed", "error", err)
	}
	w.cfg.pool.put(w.gz)
	w.gz = nil
}

// flushPending sends buffered-but-undersized body uncompressed and drops the
// compression plan.
func (w *compressingWriter) flushPending() {
	if !w.compress || w.gz != nil {
		return
	}
	w.compress = false
	w.sendHeader()
	if len(w.pending) == 0 {
		return
	}
	if _, err := w.ResponseWriter.Write(w.pending); err != nil {
		w.cfg.Logger.ErrorContext(w.req.Context(), "writing buffered response failed", "error", err)
	}
	w.pending = nil
}

// Flush implements http.Flusher. A streaming handler outruns the size
// heuristic, so a pending decision resolves to uncompressed.
func (w *compressingWriter) Flush() {
	w.flushPending()
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			w.cfg.Logger.ErrorContext(w.req.Context(), "flushing gzip writer failed", "error", err)
		}
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through to the underlying writer when it supports takeover.
func (w *compressingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}

// Push passes through HTTP/2 server push when available.
func (w *compressingWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return errors.New("http.Pusher not supported")
}
