package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportmap/pkg/cache"
	"exportmap/pkg/db"
	"exportmap/pkg/model"
	"exportmap/pkg/request"
	"exportmap/pkg/store"
	"exportmap/pkg/tracker"
)

func testClient() *request.Client {
	return request.New(cache.NewMemory(), tracker.New(), request.WithGap(0), request.WithRetries(1, time.Millisecond))
}

func TestRESTSource_Paging(t *testing.T) {
	all := []map[string]any{
		{"country": "Chile", "sector": "Wine", "rank_2022": 6},
		{"country": "Kenya", "sector": "Agriculture"},
		{"Country": "Vietnam", "Sector": "Textiles", "globalRanking2022": "2"},
	}
	var calls int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/rest/v1/export_success_stories", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "country.asc", r.URL.Query().Get("order"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		_ = json.NewEncoder(w).Encode(all[offset:end])
	}))
	defer svr.Close()

	src := NewREST(testClient(), svr.URL+"/", "export_success_stories", "anon-key", 2)
	rows, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Chile", rows[0].Country)
	assert.Equal(t, 6, rows[0].Rank2022)
	assert.Equal(t, "Vietnam", rows[2].Country)
	assert.Equal(t, 2, rows[2].Rank2022)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "rest", src.Name())
}

func TestRESTSource_Errors(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer svr.Close()

	_, err := NewREST(testClient(), svr.URL, "t", "", 0).FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, request.IsStatus(err, http.StatusUnauthorized))

	_, err = NewREST(testClient(), svr.URL, "t", "key", 0).FetchAll(context.Background())
	assert.Error(t, err, "non-JSON body must fail")
}

func TestRESTSource_EmptyTable(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer svr.Close()

	rows, err := NewREST(testClient(), svr.URL, "t", "k", 100).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStaticSource(t *testing.T) {
	rows := []model.RawRecord{{Country: "Peru", Sector: "Minerals"}}
	got, err := NewStatic(rows).FetchAll(context.Background())
	require.NoError(t, err)
	got[0].Country = "changed"
	assert.Equal(t, "Peru", rows[0].Country)

	boom := errors.New("boom")
	_, err = NewFailing(boom).FetchAll(context.Background())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewStatic(rows).FetchAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMirrorAndSQLiteSource(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "rows.db"))
	require.NoError(t, err)
	defer d.Close()
	st := store.NewSQLiteStore(d)
	ctx := context.Background()

	rows := []model.RawRecord{
		{Country: "Vietnam", Sector: "Textiles", Rank1995: 44, Rank2022: 2, Export2022: 4.4e10, KeyFactors: []string{"FDI", "Labor"}},
		{Country: "Chile", Sector: "Wine", Summary: "Chilean wine went global."},
	}
	n, err := Mirror(ctx, NewStatic(rows), st)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := NewSQLite(st).FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Chile", got[0].Country, "mirror is read back in country order")
	assert.Equal(t, "Chilean wine went global.", got[0].Summary)
	assert.Equal(t, rows[0], got[1])

	// Documents missing the indexed columns fall back to them.
	require.NoError(t, st.ReplaceRows(ctx, []store.ExportRow{{Country: "Peru", Sector: "Minerals", Data: `{"rank_2022": 9}`}}))
	got, err = NewSQLite(st).FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Peru", got[0].Country)
	assert.Equal(t, "Minerals", got[0].Sector)
	assert.Equal(t, 9, got[0].Rank2022)
}

func TestPostgresSelectQuery(t *testing.T) {
	assert.Equal(t, `SELECT row_to_json(t)::text FROM "export_success_stories" t ORDER BY t.country`, selectQuery("export_success_stories"))
	assert.Equal(t, `SELECT row_to_json(t)::text FROM "bad""name" t ORDER BY t.country`, selectQuery(`bad"name`))
}

func TestPostgresSource_Integration(t *testing.T) {
	dsn := os.Getenv("EXPORTMAP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("EXPORTMAP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	src, err := NewPostgres(ctx, dsn, "export_success_stories")
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.FetchAll(ctx)
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotEmpty(t, r.Country)
	}
}
