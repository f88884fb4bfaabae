package core

import (
	"context"
	"log/slog"
	"time"
)

// Evicter drops idle sessions.
type Evicter interface {
	Evict(maxIdle time.Duration) int
}

// Pruner drops expired in-memory entries.
type Pruner interface {
	Prune() int
}

// NewSessionEvictionJob removes sessions idle for longer than maxIdle.
// Their persisted snapshots stay in the durable store, so a returning
// browser with the same cookie can still restore.
func NewSessionEvictionJob(reg Evicter, every, maxIdle time.Duration, mem Pruner) *TimeJob {
	return NewTimeJob("SessionEviction", every, func(_ context.Context, _ time.Time) {
		start := time.Now()
		evicted := reg.Evict(maxIdle)
		pruned := 0
		if mem != nil {
			pruned = mem.Prune()
		}
		if evicted > 0 || pruned > 0 {
			slog.Debug("SessionEviction: completed",
				"evicted_sessions", evicted,
				"pruned_entries", pruned,
				"duration", time.Since(start),
			)
		}
	})
}
