package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipMiddleware(t *testing.T) {
	const body = `{"success":true}`
	h := GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	t.Run("accepts gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("wanted gzip content encoding, got %q", got)
		}

		gz, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatal(err)
		}

		data, err := io.ReadAll(gz)
		if err != nil {
			t.Fatal(err)
		}

		if string(data) != body {
			t.Errorf("wanted %q, got %q", body, string(data))
		}
	})

	t.Run("plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "" {
			t.Errorf("wanted no content encoding, got %q", got)
		}

		if rec.Body.String() != body {
			t.Errorf("wanted %q, got %q", body, rec.Body.String())
		}
	})
}
