package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gzHandler(contentType, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func serveCompressed(t *testing.T, cfg CompressionConfig, h http.Handler, req *http.Request) *http.Response {
	t.Helper()

	rec := httptest.NewRecorder()
	Compression(cfg)(h).ServeHTTP(rec, req)
	return rec.Result()
}

func gunzip(t *testing.T, r io.Reader) string {
	t.Helper()

	gr, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("open gzip reader: %v", err)
	}
	defer gr.Close()

	out, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("decompress body: %v", err)
	}
	return string(out)
}

// readBody transparently decompresses when the response says gzip.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	if resp.Header.Get("Content-Encoding") == "gzip" {
		return gunzip(t, resp.Body)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestAcceptsGzip(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"gzip", true},
		{"GZIP", true},
		{"gzip, deflate", true},
		{"deflate, gzip", true},
		{"br;q=1.0, gzip;q=0.8", true},
		{"gzip;q=0.5", true},
		{"gzip; q=1", true},
		{"gzip;q=0", false},
		{"gzip; q=0.0", false},
		{"deflate", false},
		{"", false},
		{"*", false},
	}
	for _, tc := range cases {
		if got := acceptsGzip(tc.header); got != tc.want {
			t.Errorf("acceptsGzip(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestCompression_Negotiation(t *testing.T) {
	body := strings.Repeat(`{"ok":true} `, 400)

	cases := []struct {
		name           string
		acceptEncoding string
		wantGzip       bool
	}{
		{"client accepts gzip", "gzip, deflate", true},
		{"gzip listed second", "deflate, gzip", true},
		{"q-value below one", "gzip;q=0.5", true},
		{"refused via q=0", "gzip;q=0", false},
		{"only deflate", "deflate", false},
		{"no header", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/messaging", nil)
			if tc.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tc.acceptEncoding)
			}

			resp := serveCompressed(t, CompressionConfig{Level: 6},
				gzHandler("application/json; charset=utf-8", body), req)
			defer resp.Body.Close()

			gotGzip := resp.Header.Get("Content-Encoding") == "gzip"
			if gotGzip != tc.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tc.wantGzip)
			}
			if tc.wantGzip && resp.Header.Get("Vary") != "Accept-Encoding" {
				t.Errorf("Vary = %q, want Accept-Encoding", resp.Header.Get("Vary"))
			}
			if got := readBody(t, resp); got != body {
				t.Error("body round trip mismatch")
			}
		})
	}
}

func TestCompression_LevelFallback(t *testing.T) {
	body := strings.Repeat("level fallback ", 200)
	for _, level := range []int{0, -3, 42} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: level},
			gzHandler("text/plain", body), req)

		if resp.Header.Get("Content-Encoding") != "gzip" {
			t.Fatalf("level %d: response not compressed", level)
		}
		if got := gunzip(t, resp.Body); got != body {
			t.Errorf("level %d: body round trip mismatch", level)
		}
		resp.Body.Close()
	}
}

func TestCompression_MinSize(t *testing.T) {
	t.Run("small body stays uncompressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 256},
			gzHandler("application/json", `{"status":"ok"}`), req)
		defer resp.Body.Close()

		if resp.Header.Get("Content-Encoding") == "gzip" {
			t.Error("15 byte body should not be compressed")
		}
		if got := readBody(t, resp); got != `{"status":"ok"}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("threshold crossed across several writes", func(t *testing.T) {
		chunk := strings.Repeat("a", 100)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			for i := 0; i < 3; i++ {
				if _, err := w.Write([]byte(chunk)); err != nil {
					t.Errorf("write chunk %d: %v", i, err)
				}
			}
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 256}, handler, req)
		defer resp.Body.Close()

		if resp.Header.Get("Content-Encoding") != "gzip" {
			t.Fatal("300 byte body should be compressed")
		}
		if got := gunzip(t, resp.Body); got != strings.Repeat("a", 300) {
			t.Error("buffered writes lost or reordered")
		}
	})
}

func TestCompression_StatusCodes(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantGzip bool
	}{
		{"200 with JSON", http.StatusOK, `{"ok":true}`, true},
		{"404 with JSON", http.StatusNotFound, `{"error":"missing"}`, true},
		{"500 with JSON", http.StatusInternalServerError, `{"error":"boom"}`, true},
		{"204 no content", http.StatusNoContent, "", false},
		{"304 not modified", http.StatusNotModified, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.body != "" {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tc.status)
				if tc.body != "" {
					_, _ = w.Write([]byte(tc.body))
				}
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")

			resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			gotGzip := resp.Header.Get("Content-Encoding") == "gzip"
			if gotGzip != tc.wantGzip {
				t.Errorf("gzip = %v, want %v", gotGzip, tc.wantGzip)
			}
		})
	}
}

func TestCompression_ContentTypes(t *testing.T) {
	cases := []struct {
		contentType string
		wantGzip    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/plain", true},
		{"text/html", true},
		{"image/svg+xml", false},
		{"image/png", false},
		{"application/zip", false},
		{"application/octet-stream", false},
	}
	for _, tc := range cases {
		t.Run(tc.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")

			resp := serveCompressed(t, CompressionConfig{Level: 6},
				gzHandler(tc.contentType, "test content"), req)
			defer resp.Body.Close()

			gotGzip := resp.Header.Get("Content-Encoding") == "gzip"
			if gotGzip != tc.wantGzip {
				t.Errorf("gzip = %v, want %v for %s", gotGzip, tc.wantGzip, tc.contentType)
			}
		})
	}

	t.Run("sniffed text compresses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6},
			gzHandler("", "plain text with no declared type"), req)
		defer resp.Body.Close()

		if resp.Header.Get("Content-Encoding") != "gzip" {
			t.Error("sniffed text/plain should be compressed")
		}
	})
}

func TestCompression_HeadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6},
		gzHandler("application/json", ""), req)
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") == "gzip" {
		t.Error("HEAD response should not be compressed")
	}
}

func TestCompression_ExistingEncoding(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pre-compressed"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Encoding"); got != "br" {
		t.Errorf("Content-Encoding = %q, want br", got)
	}
}

// A handler that flushes before reaching the minimum size commits the
// response as uncompressed, since compressed output can no longer start.
func TestCompression_FlushResolvesPending(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"part":1}`))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(`{"part":2}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 4096}, handler, req)
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") == "gzip" {
		t.Fatal("flushed response should not be compressed")
	}
	if got := readBody(t, resp); got != `{"part":1}{"part":2}` {
		t.Errorf("body = %q", got)
	}
}
