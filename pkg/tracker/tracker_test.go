package tracker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ProviderStats(t *testing.T) {
	tr := New()
	assert.Empty(t, tr.Snapshot())

	rows, titles := "rows.example.org", "titles.example.org"
	tr.TrackCacheMiss(rows)
	tr.TrackAPISuccess(rows)
	tr.TrackCacheHit(rows)
	tr.TrackCacheHit(rows)
	tr.TrackAPIFailure(titles)
	tr.TrackAPIZero(titles)

	assert.Equal(t, map[string]ProviderStats{
		rows:   {CacheHits: 2, CacheMisses: 1, APISuccess: 1},
		titles: {APIFailures: 1, APIZeroResult: 1},
	}, tr.Snapshot())

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.cacheResults.WithLabelValues(rows, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.apiResults.WithLabelValues(titles, "failure")))
}

func TestTracker_DomainCounters(t *testing.T) {
	tr := New()
	tr.TrackDatasetLoad("fallback")
	tr.TrackRestoration("restored")
	tr.TrackRestoration("restored")
	tr.TrackRestoration("abandoned")
	tr.TrackContact("delivered")
	tr.TrackTitle("fallback")
	tr.SetSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.restorations.WithLabelValues("restored")))
	assert.Equal(t, 3.0, testutil.ToFloat64(tr.sessions))

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{
		"exportmap_dataset_loads_total",
		"exportmap_return_state_total",
		"exportmap_contact_submissions_total",
		"exportmap_source_titles_total",
		"exportmap_active_sessions",
	} {
		assert.Contains(t, rec.Body.String(), name)
	}
}
