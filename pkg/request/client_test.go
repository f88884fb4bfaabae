package request

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exportmap/pkg/cache"
	"exportmap/pkg/db"
	"exportmap/pkg/tracker"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *tracker.Tracker) {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "client_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	tr := tracker.New()
	opts = append([]Option{WithGap(0), WithRetries(3, 10*time.Millisecond)}, opts...)
	return New(cache.NewSQLiteCache(d, time.Hour), tr, opts...), tr
}

func TestGet_Sequential(t *testing.T) {
	// Requests to one provider must never overlap.
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)

		if current > 1 {
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client, _ := newTestClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(context.Background(), svr.URL, ""); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	client, _ := newTestClient(t)

	body, err := client.Get(context.Background(), svr.URL, "")
	if err != nil {
		t.Fatalf("Expected success after retry, got error: %v", err)
	}
	if string(body) != "success" {
		t.Errorf("Expected 'success', got '%s'", string(body))
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestGet_CacheAndStatusError(t *testing.T) {
	var hits int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"country":"Peru"}]`))
	}))
	defer svr.Close()

	client, tr := newTestClient(t)
	ctx := context.Background()
	headers := map[string]string{"apikey": "secret"}

	for i := 0; i < 2; i++ {
		if _, err := client.GetWithHeaders(ctx, svr.URL+"/rows", headers, "rows"); err != nil {
			t.Fatalf("GetWithHeaders failed: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1 (second served from cache)", got)
	}

	_, err := client.Get(ctx, svr.URL+"/missing", "")
	if !IsStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404 StatusError, got %v", err)
	}

	var provider string
	for p := range tr.Snapshot() {
		provider = p
	}
	stats := tr.Snapshot()[provider]
	if stats.CacheHits != 1 || stats.APIFailures != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPost_SendsBody(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("User-Agent") != defaultUserAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write(b)
	}))
	defer svr.Close()

	client, _ := newTestClient(t)
	body, err := client.Post(context.Background(), svr.URL, []byte(`{"a":1}`), "application/json")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"a":1}` {
		t.Errorf("echo = %q", body)
	}
}

func TestGet_InvalidURL(t *testing.T) {
	client, _ := newTestClient(t)
	if _, err := client.Get(context.Background(), "not a url", ""); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"abcd.supabase.co", "supabase"},
		{"xyz.supabase.in", "supabase"},
		{"www.worldbank.org", "worldbank.org"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
	}

	for _, tt := range tests {
		got := normalizeProvider(tt.host)
		if got != tt.expected {
			t.Errorf("normalizeProvider(%q) = %q; want %q", tt.host, got, tt.expected)
		}
	}
}
