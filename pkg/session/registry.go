// Package session maps browser sessions to their view coordinators.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"exportmap/pkg/store"
	"exportmap/pkg/tracker"
	"exportmap/pkg/viewstate"
)

// CookieName carries the session id.
const CookieName = "exportmap_sid"

// Session is one browser's map context.
type Session struct {
	ID          string
	Coordinator *viewstate.Coordinator

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

// Registry holds live sessions. Snapshots go to the short-lived session
// store and the durable store, both scoped by session id, so a session that
// was evicted (or a restarted process) still finds its return state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	sessionStore store.StateStore
	durable      store.StateStore
	opts         viewstate.Options
	optsFn       func() viewstate.Options
	tracker      *tracker.Tracker
	secure       bool
	now          func() time.Time
}

// NewRegistry creates an empty registry. durable and t may be nil.
func NewRegistry(sessionStore, durable store.StateStore, opts viewstate.Options, t *tracker.Tracker) *Registry {
	if sessionStore == nil {
		sessionStore = store.NewMemoryStateStore(opts.SnapshotTTL)
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		sessionStore: sessionStore,
		durable:      durable,
		opts:         opts,
		tracker:      t,
		now:          time.Now,
	}
}

// SetOptionsSource makes new sessions read their camera options from fn,
// so runtime overrides apply without a restart. Live sessions keep theirs.
func (r *Registry) SetOptionsSource(fn func() viewstate.Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.optsFn = fn
}

// SetSecureCookie marks the session cookie Secure.
func (r *Registry) SetSecureCookie(secure bool) { r.secure = secure }

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Open returns the session for id, creating it when it is not live. Invalid
// ids are replaced with a fresh one.
func (r *Registry) Open(id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	if s, ok := r.Get(id); ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, Coordinator: r.newCoordinator(id), lastSeen: r.now()}
	r.sessions[id] = s
	r.report()
	return s
}

func (r *Registry) newCoordinator(id string) *viewstate.Coordinator {
	opts := r.opts
	if r.optsFn != nil {
		opts = r.optsFn()
	}
	var durable store.StateStore
	if r.durable != nil {
		durable = store.NewScoped(r.durable, id)
	}
	p := viewstate.NewPersister(store.NewScoped(r.sessionStore, id), durable, opts.SnapshotTTL)
	return viewstate.New(p, viewstate.NewBroadcaster(0), r.tracker, opts)
}

// FromRequest resolves the session for an HTTP request and refreshes its
// cookie.
func (r *Registry) FromRequest(w http.ResponseWriter, req *http.Request) *Session {
	var id string
	if c, err := req.Cookie(CookieName); err == nil {
		id = c.Value
	}
	s := r.Open(id)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// Evict drops sessions idle for longer than maxIdle. Their persisted
// snapshots are left to expire in the stores.
func (r *Registry) Evict(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.report()
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) report() {
	if r.tracker != nil {
		r.tracker.SetSessions(len(r.sessions))
	}
}
