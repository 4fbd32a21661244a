package wamanager

import "sync"

// registry is the in-memory map of live session handles. Mutations are
// atomic under a single lock; nothing inside the critical section does
// I/O. Blocking protocol work always happens after the lookup.
type registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[int64]*Session)}
}

func (r *registry) get(id int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// put installs a handle; installing over an existing one is an error,
// never a silent replace.
func (r *registry) put(id int64, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return ErrAlreadyExists
	}
	r.sessions[id] = s
	return nil
}

func (r *registry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) listIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
