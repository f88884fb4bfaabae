package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"exportmap/pkg/store"
)

// Phase tracks the snapshot consumer.
type Phase string

const (
	PhaseEmpty             Phase = "empty"
	PhasePendingPrimary    Phase = "pending_primary"
	PhasePendingResolution Phase = "pending_resolution"
	PhaseResolved          Phase = "resolved"
)

// Take outcomes, also used as restoration metric labels.
const (
	OutcomeAbsent     = "absent"
	OutcomeCorrupt    = "corrupt"
	OutcomeExpired    = "expired"
	OutcomeTaken      = "taken"
	OutcomeRestored   = "restored"
	OutcomeAbandoned  = "abandoned"
	OutcomeSuperseded = "superseded"
)

// Persister writes snapshots to a session-scoped store and a longer-lived
// store, and consumes them in two phases: Take returns and clears the
// primary copy while stashing it under PendingKey; PeekPending reads that
// stash for the post-load resolver; Finish deletes it.
type Persister struct {
	session store.StateStore
	durable store.StateStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	phase Phase
}

// NewPersister wires both stores. Either may be nil.
func NewPersister(session, durable store.StateStore, ttl time.Duration) *Persister {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Persister{
		session: session,
		durable: durable,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.With("component", "viewstate"),
		phase:   PhaseEmpty,
	}
}

func (p *Persister) stores() []store.StateStore {
	var out []store.StateStore
	for _, s := range []store.StateStore{p.session, p.durable} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Phase returns the consumer's current phase.
func (p *Persister) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *Persister) setPhase(ph Phase) {
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}

// Save writes the snapshot under SnapshotKey in both stores. It fails only
// if no store accepted the write.
func (p *Persister) Save(ctx context.Context, s *Snapshot) error {
	raw, err := s.Encode()
	if err != nil {
		return err
	}
	var errs []error
	written := 0
	for _, st := range p.stores() {
		if err := st.SetState(ctx, SnapshotKey, raw); err != nil {
			p.logger.Warn("Snapshot write failed", "error", err)
			errs = append(errs, err)
			continue
		}
		written++
	}
	if written == 0 {
		if len(errs) == 0 {
			return errors.New("no snapshot store configured")
		}
		return errors.Join(errs...)
	}
	p.setPhase(PhasePendingPrimary)
	return nil
}

// Take reads the primary snapshot, session store first, then the durable
// one. Any copy found is deleted from both stores. A valid snapshot is
// stashed under PendingKey and returned with OutcomeTaken; otherwise the
// outcome says why nothing was returned.
func (p *Persister) Take(ctx context.Context) (*Snapshot, string) {
	var raw string
	found := false
	for _, st := range p.stores() {
		if v, ok := st.GetState(ctx, SnapshotKey); ok && v != "" {
			raw, found = v, true
			break
		}
	}
	if !found {
		p.setPhase(PhaseEmpty)
		return nil, OutcomeAbsent
	}

	for _, st := range p.stores() {
		if err := st.DeleteState(ctx, SnapshotKey); err != nil {
			p.logger.Warn("Snapshot delete failed", "error", err)
		}
	}

	snap, err := Decode(raw, p.now(), p.ttl)
	if err != nil {
		p.setPhase(PhaseEmpty)
		if errors.Is(err, ErrExpiredSnapshot) {
			p.logger.Debug("Discarding expired snapshot")
			return nil, OutcomeExpired
		}
		p.logger.Debug("Discarding corrupt snapshot", "error", err)
		return nil, OutcomeCorrupt
	}

	if p.session != nil {
		if err := p.session.SetState(ctx, PendingKey, raw); err != nil {
			p.logger.Warn("Snapshot stash failed", "error", err)
		}
	}
	p.setPhase(PhasePendingResolution)
	return &snap, OutcomeTaken
}

// PeekPending reads the stash without consuming it.
func (p *Persister) PeekPending(ctx context.Context) (*Snapshot, bool) {
	if p.session == nil {
		return nil, false
	}
	raw, ok := p.session.GetState(ctx, PendingKey)
	if !ok || raw == "" {
		return nil, false
	}
	snap, err := Decode(raw, p.now(), p.ttl)
	if err != nil {
		return nil, false
	}
	return &snap, true
}

// Finish deletes the stash, ending this round trip.
func (p *Persister) Finish(ctx context.Context) {
	if p.session != nil {
		if err := p.session.DeleteState(ctx, PendingKey); err != nil {
			p.logger.Warn("Snapshot stash delete failed", "error", err)
		}
	}
	p.setPhase(PhaseResolved)
}
