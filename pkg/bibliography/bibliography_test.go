package bibliography

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"exportmap/pkg/cache"
	"exportmap/pkg/request"
)

type page struct {
	body  string
	delay time.Duration
	err   error
}

type fakeFetcher map[string]page

func (f fakeFetcher) Get(ctx context.Context, u, _ string) ([]byte, error) {
	p, ok := f[u]
	if !ok {
		return nil, errors.New("not found")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(p.body), p.err
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"Title tag", "<html><head><title>  Export\n Growth  </title></head></html>", "Export Growth"},
		{"OG wins", `<html><head><title>Plain</title><meta property="og:title" content="Rich"></head></html>`, "Rich"},
		{"Empty OG falls back", `<html><head><title>Plain</title><meta property="og:title" content=" "></head></html>`, "Plain"},
		{"No title", "<html><body>hi</body></html>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle([]byte(tt.html)))
		})
	}

	latin1 := []byte("<html><head><meta charset=\"iso-8859-1\"><title>Caf\xe9 exports</title></head></html>")
	assert.Equal(t, "Café exports", ExtractTitle(latin1))

	long := "<title>" + strings.Repeat("a", 500) + "</title>"
	assert.Equal(t, maxTitleRunes, len([]rune(ExtractTitle([]byte(long)))))
}

func TestFallbackLabel(t *testing.T) {
	tests := map[string]string{
		"https://www.worldbank.org/en/topic":    "Worldbank.org",
		"https://data.worldbank.org/indicator":  "Worldbank.org",
		"http://stats.gov.uk/trade":             "Stats.gov.uk",
		"https://www.example.co.uk/report?id=1": "Example.co.uk",
		"":                                      "Source",
	}
	for in, want := range tests {
		assert.Equal(t, want, FallbackLabel(in), in)
	}
}

func TestSplitSources(t *testing.T) {
	text := "World Bank (2023), https://data.worldbank.org/x; see also https://wto.org/stats. " +
		"Duplicate: https://data.worldbank.org/x (accessed 2024)"
	assert.Equal(t, []string{"https://data.worldbank.org/x", "https://wto.org/stats"}, SplitSources(text))
	assert.Empty(t, SplitSources("Interviews with exporters, 2022"))
}

func TestTitle_FallbackCases(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := fakeFetcher{
		"https://ok.example.org/a":   {body: "<title>Annual Report</title>"},
		"https://empty.example.org/": {body: "<html></html>"},
		"https://down.example.org/":  {err: errors.New("connection refused")},
	}
	r := New(f, nil)
	ctx := context.Background()

	assert.Equal(t, Title{URL: "https://ok.example.org/a", Title: "Annual Report"}, r.Title(ctx, "https://ok.example.org/a"))

	got := r.Title(ctx, "https://empty.example.org/")
	assert.True(t, got.Fallback)
	assert.Equal(t, "Example.org", got.Title)

	got = r.Title(ctx, "https://down.example.org/")
	assert.True(t, got.Fallback)

	got = r.Title(ctx, "not a url")
	assert.True(t, got.Fallback)
}

func TestResolveAll_SlowLinkDoesNotBlockOthers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := fakeFetcher{
		"https://slow.example.org/": {body: "<title>Slow</title>", delay: time.Minute},
		"https://a.example.org/":    {body: "<title>A</title>"},
		"https://b.example.org/":    {body: "<title>B</title>"},
	}
	r := New(f, cache.NewMemory(), WithTimeout(50*time.Millisecond))

	start := time.Now()
	got := r.ResolveAll(context.Background(), []string{"https://slow.example.org/", "https://a.example.org/", "https://b.example.org/"})
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, got, 3)
	assert.True(t, got[0].Fallback)
	assert.Equal(t, "Example.org", got[0].Title)
	assert.Equal(t, "A", got[1].Title)
	assert.Equal(t, "B", got[2].Title)
}

func TestTitle_CachesFetchedTitles(t *testing.T) {
	hits := 0
	f := fakeFetcher{"https://ok.example.org/": {body: "<title>Once</title>"}}
	counting := fetcherFunc(func(ctx context.Context, u, key string) ([]byte, error) {
		hits++
		return f.Get(ctx, u, key)
	})
	r := New(counting, cache.NewMemory())

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Once", r.Title(context.Background(), "https://ok.example.org/").Title)
	}
	assert.Equal(t, 1, hits)
}

type fetcherFunc func(ctx context.Context, u, key string) ([]byte, error)

func (f fetcherFunc) Get(ctx context.Context, u, key string) ([]byte, error) { return f(ctx, u, key) }

func TestTitle_WithRequestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Trade Map"></head></html>`))
	}))
	defer srv.Close()

	r := New(request.New(nil, nil, request.WithRetries(1, time.Millisecond)), nil)
	assert.Equal(t, "Trade Map", r.Title(context.Background(), srv.URL+"/page").Title)
	assert.True(t, r.Title(context.Background(), srv.URL+"/missing").Fallback)
}
