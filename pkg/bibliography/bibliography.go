// Package bibliography turns source citations into readable link titles.
package bibliography

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"exportmap/pkg/cache"
	"exportmap/pkg/request"
	"exportmap/pkg/tracker"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 8
	maxTitleRunes      = 200
	cachePrefix        = "title:"
)

// Title is the display label for one source link.
type Title struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Fallback bool   `json:"fallback"`
}

// Fetcher retrieves a page body.
type Fetcher interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// Resolver looks up page titles, bounded by a per-link timeout.
type Resolver struct {
	fetcher     Fetcher
	cache       cache.Cacher
	tracker     *tracker.Tracker
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each title lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithConcurrency caps parallel lookups in ResolveAll.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTracker counts lookup results.
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Resolver) { r.tracker = t }
}

// New creates a Resolver. A nil cache disables title caching.
func New(f Fetcher, c cache.Cacher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		cache:       c,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
		logger:      slog.With("component", "bibliography"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Ensure the request client satisfies Fetcher.
var _ Fetcher = (*request.Client)(nil)

// Title returns the page title for rawURL, or a label derived from its
// domain when the page cannot be fetched in time or has no title.
func (r *Resolver) Title(ctx context.Context, rawURL string) Title {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		r.track("fallback")
		return Title{URL: rawURL, Title: FallbackLabel(rawURL), Fallback: true}
	}

	key := cachePrefix + rawURL
	if r.cache != nil {
		if v, ok := r.cache.GetCache(ctx, key); ok && len(v) > 0 {
			r.track("cached")
			return Title{URL: rawURL, Title: string(v)}
		}
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := r.fetcher.Get(tctx, rawURL, "")
	if err != nil {
		r.logger.Debug("Title lookup failed", "url", rawURL, "error", err)
		r.track("fallback")
		return Title{URL: rawURL, Title: FallbackLabel(rawURL), Fallback: true}
	}

	title := ExtractTitle(body)
	if title == "" {
		r.track("fallback")
		return Title{URL: rawURL, Title: FallbackLabel(rawURL), Fallback: true}
	}
	if r.cache != nil {
		if err := r.cache.SetCache(ctx, key, []byte(title)); err != nil {
			r.logger.Warn("Failed to cache title", "url", rawURL, "error", err)
		}
	}
	r.track("fetched")
	return Title{URL: rawURL, Title: title}
}

// ResolveAll looks up every URL concurrently. Results keep input order.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) []Title {
	out := make([]Title, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = r.Title(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) track(result string) {
	if r.tracker != nil {
		r.tracker.TrackTitle(result)
	}
}

// ExtractTitle prefers og:title over <title>. Whitespace is collapsed and
// long titles are cut. Bodies that are not valid UTF-8 are decoded from the
// charset their meta tag declares.
func ExtractTitle(body []byte) string {
	var rd io.Reader = bytes.NewReader(body)
	if !utf8.Valid(body) {
		if utf, err := charset.NewReader(rd, ""); err == nil {
			rd = utf
		}
	}
	doc, err := goquery.NewDocumentFromReader(rd)
	if err != nil {
		return ""
	}
	title, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if strings.TrimSpace(title) == "" {
		title = doc.Find("head title").First().Text()
	}
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	title = strings.Join(strings.Fields(title), " ")
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes-1]) + "…"
	}
	return title
}

// FallbackLabel derives a label from the registrable domain, e.g.
// "https://data.worldbank.org/x" gives "Worldbank.org".
func FallbackLabel(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return "Source"
	}
	label := host
	if d, err := publicsuffix.Domain(host); err == nil && d != "" {
		label = d
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\])]+`)

// SplitSources pulls the URLs out of a free-text citation, deduplicated in
// order of appearance.
func SplitSources(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
