package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exportmap/pkg/config"
	"exportmap/pkg/dataset"
	"exportmap/pkg/logging"
)

// Refresher reloads the record cache.
type Refresher interface {
	Refresh(ctx context.Context) (dataset.Data, error)
}

// NewDatasetRefreshJob clears and re-warms the record cache every
// dataset.refresh_interval, re-read from the provider on every tick.
func NewDatasetRefreshJob(prov config.Provider, repo Refresher) *TimeJob {
	return NewScheduledJob("DatasetRefresh",
		func() time.Duration { return prov.RefreshInterval(context.Background()) },
		func(ctx context.Context, _ time.Time) {
			start := time.Now()
			data, err := repo.Refresh(ctx)
			if err != nil {
				slog.Warn("DatasetRefresh: refresh aborted", "error", err)
				return
			}
			slog.Info("DatasetRefresh: dataset reloaded",
				"origin", data.Origin,
				"singles", len(data.Singles),
				"multis", len(data.Multis),
				"duration", time.Since(start),
			)
			logging.LogEvent(&logging.Event{
				Type:    "refresh",
				Title:   fmt.Sprintf("dataset (%s)", data.Origin),
				Summary: fmt.Sprintf("%d stories, %d countries", len(data.Singles), len(data.Multis)),
			})
		})
}
