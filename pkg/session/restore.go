package session

import (
	"context"
	"log/slog"

	"exportmap/pkg/dataset"
	"exportmap/pkg/viewstate"
)

// Dataset is what restoration needs from the repository.
type Dataset interface {
	Cached() (dataset.Data, bool)
	Snapshot(ctx context.Context) (dataset.Data, error)
}

// Restoration reports a return to the map.
type Restoration struct {
	Snapshot *viewstate.Snapshot
	Outcome  string
	// Resolved yields the resolver outcome once the dataset is available.
	Resolved <-chan string
}

// TryRestore consumes the session's pending snapshot. When the dataset is
// already cached the selection is resolved before returning; otherwise it
// resolves in the background once the load finishes. ctx must outlive the
// request that triggered the return.
func TryRestore(ctx context.Context, s *Session, ds Dataset) Restoration {
	snap, outcome := s.Coordinator.Return(ctx)
	done := make(chan string, 1)
	res := Restoration{Snapshot: snap, Outcome: outcome, Resolved: done}

	if snap == nil {
		done <- outcome
		close(done)
		return res
	}

	if data, ok := ds.Cached(); ok {
		done <- s.Coordinator.Resolve(ctx, data)
		close(done)
		return res
	}

	go func() {
		defer close(done)
		data, err := ds.Snapshot(ctx)
		if err != nil {
			slog.Warn("Session: dataset unavailable, dropping return state", "session", s.ID, "error", err)
			done <- s.Coordinator.Resolve(ctx, dataset.Data{})
			return
		}
		outcome := s.Coordinator.Resolve(ctx, data)
		slog.Debug("Session: return state resolved", "session", s.ID, "outcome", outcome)
		done <- outcome
	}()
	return res
}
