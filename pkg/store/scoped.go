package store

import "context"

// Scoped narrows a shared StateStore to one browser session by suffixing
// every key with the session id, so "exportmap.returnState" becomes
// "exportmap.returnState:<sid>". Suffixing keeps key-prefix pruning working.
type Scoped struct {
	inner StateStore
	sid   string
}

// NewScoped wraps inner for session sid.
func NewScoped(inner StateStore, sid string) *Scoped {
	return &Scoped{inner: inner, sid: sid}
}

func (s *Scoped) scopedKey(key string) string {
	return key + ":" + s.sid
}

func (s *Scoped) GetState(ctx context.Context, key string) (string, bool) {
	return s.inner.GetState(ctx, s.scopedKey(key))
}

func (s *Scoped) SetState(ctx context.Context, key, val string) error {
	return s.inner.SetState(ctx, s.scopedKey(key), val)
}

func (s *Scoped) DeleteState(ctx context.Context, key string) error {
	return s.inner.DeleteState(ctx, s.scopedKey(key))
}
