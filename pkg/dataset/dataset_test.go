package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportmap/pkg/model"
	"exportmap/pkg/tracker"
)

// countingSource counts fetches and can hold them until released.
type countingSource struct {
	calls atomic.Int32
	gate  chan struct{}
	rows  []model.RawRecord
	err   error
}

func (s *countingSource) FetchAll(ctx context.Context) ([]model.RawRecord, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.RawRecord(nil), s.rows...), nil
}

func (s *countingSource) Name() string { return "counting" }

var remoteRows = []model.RawRecord{
	{Country: "Peru", Sector: "Minerals", Rank2022: 9},
	{Country: "Vietnam", Sector: "Electronics", Rank1995: 57, Rank2022: 14},
	{Country: "Vietnam", Sector: "Textiles", Rank1995: 44, Rank2022: 2},
}

func TestRepository_LoadsOnceAndCaches(t *testing.T) {
	src := &countingSource{rows: remoteRows}
	repo := New(src)
	ctx := context.Background()

	stories, err := repo.Stories(ctx)
	require.NoError(t, err)
	countries, err := repo.Countries(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	require.Len(t, stories, 1)
	require.Len(t, countries, 1)
	assert.Equal(t, "Textiles", countries[0].PrimarySector.Sector)
	assert.Equal(t, OriginRemote, repo.Origin())
}

func TestRepository_ConcurrentCallersShareOneFetch(t *testing.T) {
	src := &countingSource{rows: remoteRows, gate: make(chan struct{})}
	repo := New(src)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := repo.Snapshot(context.Background())
			assert.NoError(t, err)
			assert.Len(t, d.Multis, 1)
		}()
	}
	// Let every goroutine reach the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRepository_ClearCacheRefetches(t *testing.T) {
	src := &countingSource{rows: remoteRows}
	repo := New(src)
	ctx := context.Background()

	_, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	select {
	case <-repo.Loaded():
	default:
		t.Fatal("Loaded should be closed after a load")
	}

	repo.ClearCache()
	assert.Equal(t, OriginNone, repo.Origin())
	select {
	case <-repo.Loaded():
		t.Fatal("Loaded should reopen after ClearCache")
	default:
	}

	_, err = repo.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "Refresh clears and fetches again")
}

func TestRepository_Fallback(t *testing.T) {
	tests := []struct {
		name string
		src  *countingSource
	}{
		{"source error", &countingSource{err: errors.New("401 unauthorized")}},
		{"empty result", &countingSource{}},
		{"only invalid rows", &countingSource{rows: []model.RawRecord{{Country: "Peru"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tracker.New()
			repo := New(tt.src, WithTracker(tr))
			d, err := repo.Snapshot(context.Background())
			require.NoError(t, err, "fallback is never surfaced as an error")
			assert.Equal(t, OriginFallback, d.Origin)
			assert.NotEmpty(t, d.FallbackReason)
			assert.NotEmpty(t, d.Singles)
			_, ok := d.Country("Vietnam")
			assert.True(t, ok, "bundled dataset carries a multi-sector country")
			assert.Equal(t, OriginFallback, repo.Status().Origin)
		})
	}
}

func TestRepository_ReturnsCopies(t *testing.T) {
	repo := New(&countingSource{rows: remoteRows})
	ctx := context.Background()

	d, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	d.Singles[0].Country = "mutated"
	d.Multis[0].Sectors[0].Sector = "mutated"
	d.Multis = nil

	again, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Peru", again.Singles[0].Country)
	require.Len(t, again.Multis, 1)
	assert.Equal(t, "Textiles", again.Multis[0].Sectors[0].Sector)
}

func TestRepository_CopiesDoNotShareLists(t *testing.T) {
	rows := []model.RawRecord{
		{Country: "Peru", Sector: "Minerals", KeyFactors: []string{"Mining code"}},
		{Country: "Vietnam", Sector: "Electronics", Rank2022: 14, KeyFactors: []string{"FDI"}},
		{Country: "Vietnam", Sector: "Textiles", Rank2022: 2, KeyFactors: []string{"Wages"}},
	}
	repo := New(&countingSource{rows: rows})
	ctx := context.Background()

	d, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, d.Singles[0].KeyFactors)
	require.NotEmpty(t, d.Multis[0].Sectors[0].KeyFactors)
	d.Singles[0].KeyFactors[0] = "mutated"
	d.Multis[0].Sectors[0].KeyFactors[0] = "mutated"
	d.Multis[0].PrimarySector.KeyFactors[0] = "mutated"

	again, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mining code", again.Singles[0].KeyFactors[0])
	assert.Equal(t, "Wages", again.Multis[0].Sectors[0].KeyFactors[0])
	assert.Equal(t, "Wages", again.Multis[0].PrimarySector.KeyFactors[0])
}

func TestRepository_CallerCancelDoesNotFailSharedLoad(t *testing.T) {
	src := &countingSource{rows: remoteRows, gate: make(chan struct{})}
	repo := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(src.gate)
	select {
	case <-repo.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("load did not complete after the first caller left")
	}
	assert.Equal(t, OriginRemote, repo.Origin())
}

func TestRepository_CachedAndStatus(t *testing.T) {
	repo := New(&countingSource{rows: remoteRows})
	_, ok := repo.Cached()
	assert.False(t, ok)
	assert.Equal(t, OriginNone, repo.Status().Origin)

	_, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	st := repo.Status()
	assert.Equal(t, 1, st.Singles)
	assert.Equal(t, 1, st.Multis)
	assert.Equal(t, "counting", st.Source)
	assert.False(t, st.LoadedAt.IsZero())
}

func TestData_Lookups(t *testing.T) {
	d := Data{}
	res := New(&countingSource{}).normalizer.Normalize(FallbackRows())
	d.Singles, d.Multis = res.Singles, res.Multis

	s, ok := d.Story("Chile", "Wine")
	require.True(t, ok)
	assert.Equal(t, 2, s.CaseID)
	_, ok = d.Story("Chile", "Copper")
	assert.False(t, ok)

	c, err := d.Case(7)
	require.NoError(t, err)
	assert.Equal(t, "Vietnam", c.Country)
	assert.Equal(t, "Textiles", c.Sector)

	_, err = d.Case(999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.Case(0)
	assert.ErrorIs(t, err, ErrNotFound)

	single, multi := d.ByID("vietnam")
	assert.Nil(t, single)
	require.NotNil(t, multi)
	assert.Len(t, multi.Sectors, 2)

	single, multi = d.ByID("kenya")
	require.NotNil(t, single)
	assert.Nil(t, multi)
}

func TestFallbackRows(t *testing.T) {
	rows := FallbackRows()
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.True(t, r.Valid(), "fallback row %+v", r)
	}
}
