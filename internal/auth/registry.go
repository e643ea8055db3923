package auth

import (
	"sync"
	"time"
)

// Registry is the authoritative in-memory mapping from bearer token to
// session. It is created once at startup and shared by reference with
// every request handler and the Sweeper; it holds nothing across process
// restarts.
//
// All operations take a single exclusive lock for their full duration, so
// each appears atomic with respect to the others and the token map and the
// per-user index can never be observed out of step. Every operation is
// O(1) except SweepExpired, which scans the whole map.
type Registry struct {
	ttl          time.Duration
	multiSession bool

	mu       sync.Mutex
	sessions map[string]*Session        // token -> session
	byUser   map[int64]map[string]struct{} // user id -> set of tokens
}

// NewRegistry creates an empty registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{
		ttl:          cfg.TTL,
		multiSession: cfg.MultiSession,
		sessions:     make(map[string]*Session),
		byUser:       make(map[int64]map[string]struct{}),
	}
}

// Issue creates a session for userID and returns its bearer token. It
// never fails. Under the single-session policy any session the user
// already holds is evicted in the same critical section, so the old token
// is invalid the moment the new one exists.
func (r *Registry) Issue(userID int64, meta SessionMeta) string {
	token := GenerateToken()
	now := time.Now()
	s := &Session{
		Token:     token,
		UserID:    userID,
		Device:    meta.Device,
		Location:  meta.Location,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.multiSession {
		for t := range r.byUser[userID] {
			delete(r.sessions, t)
		}
		delete(r.byUser, userID)
	}

	r.sessions[token] = s
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][token] = struct{}{}

	return token
}

// Validate returns the id of the user owning the token, if the token
// references a session that has not expired. An expired entry the sweeper
// has not removed yet is treated as absent. Validate never mutates the
// registry; eviction is the sweeper's job.
func (r *Registry) Validate(token string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok || !s.Active(time.Now()) {
		return 0, false
	}
	return s.UserID, true
}

// Invalidate removes the session for the given token and returns the id
// of the user it belonged to, or ErrUnknownToken if no such session
// exists.
func (r *Registry) Invalidate(token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return 0, ErrUnknownToken
	}
	r.removeLocked(s)
	return s.UserID, nil
}

// InvalidateUser removes every session owned by userID and returns how
// many were removed. Removing zero is not an error.
func (r *Registry) InvalidateUser(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for t := range r.byUser[userID] {
		delete(r.sessions, t)
		removed++
	}
	delete(r.byUser, userID)
	return removed
}

// SweepExpired removes every session past its expiry time and returns the
// number removed. Safe to call concurrently with any other operation;
// intended caller is the Sweeper.
func (r *Registry) SweepExpired() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, s := range r.sessions {
		if !s.Active(now) {
			r.removeLocked(s)
			removed++
		}
	}
	return removed
}

// SessionForUser returns a copy of the newest active session owned by
// userID. Used for login alerting; read-only.
func (r *Registry) SessionForUser(userID int64) (Session, bool) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *Session
	for t := range r.byUser[userID] {
		s := r.sessions[t]
		if s == nil || !s.Active(now) {
			continue
		}
		if newest == nil || s.IssuedAt.After(newest.IssuedAt) {
			newest = s
		}
	}
	if newest == nil {
		return Session{}, false
	}
	return *newest, true
}

// Len returns the number of entries currently in the registry, counting
// expired-but-unswept ones.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// removeLocked deletes a session from both the token map and the user
// index. Caller holds r.mu.
func (r *Registry) removeLocked(s *Session) {
	delete(r.sessions, s.Token)
	if set, ok := r.byUser[s.UserID]; ok {
		delete(set, s.Token)
		if len(set) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
}
