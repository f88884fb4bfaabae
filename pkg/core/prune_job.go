package core

import (
	"context"
	"log/slog"
	"time"

	"exportmap/pkg/db"
	"exportmap/pkg/db/maintenance"
)

// NewStatePruneJob deletes expired persisted snapshots and old cache rows.
func NewStatePruneJob(d *db.DB, every time.Duration, opts maintenance.Options) *TimeJob {
	return NewTimeJob("StatePrune", every, func(_ context.Context, _ time.Time) {
		cacheRows, stateRows, err := maintenance.Prune(d, opts)
		if err != nil {
			slog.Error("StatePrune: failed", "error", err)
			return
		}
		if cacheRows > 0 || stateRows > 0 {
			slog.Debug("StatePrune: completed", "cache_rows", cacheRows, "state_rows", stateRows)
		}
	})
}
