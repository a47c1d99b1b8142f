package realtime

import (
	"context"
	"sync"

	logx "questnotify/pkg/logx"
)

// Session is one live transport connection for one user.
//
// Implementations must allow concurrent Send calls only from the
// dispatcher's per-user loop (sends to one session are sequential) and
// must make Close idempotent. The registry is the only component that
// closes registered sessions.
type Session interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close(reason string)
}

// Registry is the authoritative in-process record of open sessions.
//
// Invariants:
//   - a user key never maps to an empty session list (the key is removed
//     when the last session goes);
//   - a session instance is registered under at most one user.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64][]Session

	log logx.Logger
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		conns: map[int64][]Session{},
		log:   log,
	}
}

// Register adds the session to the user's connection set. The session is
// a valid fan-out target as soon as Register returns. Authorization of
// the channel happened upstream; any user ID is accepted.
func (r *Registry) Register(userID int64, s Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.conns[userID] = append(r.conns[userID], s)
	n := len(r.conns[userID])
	r.mu.Unlock()

	r.log.Info("session registered",
		logx.Int64("user_id", userID),
		logx.String("session_id", s.ID()),
		logx.Int("sessions", n))
}

// Unregister removes exactly this session instance from the user's set
// and drops the user key when the set empties. Unknown sessions are a
// silent no-op: disconnect runs from several failure paths and must be
// idempotent. Reports whether the session was present.
func (r *Registry) Unregister(userID int64, s Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	found := false
	for i, cur := range set {
		if cur == s {
			set = append(set[:i], set[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return false
	}
	if len(set) == 0 {
		delete(r.conns, userID)
	} else {
		r.conns[userID] = set
	}
	remaining := len(set)
	r.mu.Unlock()

	r.log.Info("session unregistered",
		logx.Int64("user_id", userID),
		logx.String("session_id", s.ID()),
		logx.Int("sessions", remaining))
	return true
}

// SessionsFor returns a snapshot of the user's open sessions. The slice
// is the caller's to iterate; concurrent Register/Unregister calls do not
// affect it.
func (r *Registry) SessionsFor(userID int64) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	return append([]Session(nil), set...)
}

// Users returns a snapshot of every user ID with at least one open
// session. Order is unspecified.
func (r *Registry) Users() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// Stats reports current gauge values for observability endpoints.
func (r *Registry) Stats() (users, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.conns {
		sessions += len(set)
	}
	return len(r.conns), sessions
}
