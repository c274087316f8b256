package service

import (
	"sort"
	"sync"
	"time"

	"gowa-gateway/internal/wa"
)

// Session is one live client together with the listener bindings attached to it.
type Session struct {
	ID        string
	Client    wa.Client
	Binding   *Binding
	CreatedAt time.Time
}

// Registry maps session ids to live sessions. Ids may also be reserved while
// their client is still initialising, which keeps concurrent setups for the
// same id from both succeeding.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		pending:  make(map[string]struct{}),
	}
}

// Exists reports whether id is live or reserved.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, live := r.sessions[id]
	_, reserved := r.pending[id]
	return live || reserved
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Put inserts s, failing with ErrSessionExists if its id is live or reserved.
func (r *Registry) Put(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return ErrSessionExists
	}
	if _, ok := r.pending[s.ID]; ok {
		return ErrSessionExists
	}
	r.sessions[s.ID] = s
	return nil
}

// Remove deletes id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// removeIf deletes id only while it still maps to s.
func (r *Registry) removeIf(id string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
		return true
	}
	return false
}

// IDs returns the live session ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reservation holds an id while its session is being built.
type Reservation struct {
	r    *Registry
	id   string
	once sync.Once
}

// Reserve claims id, failing with ErrSessionExists if it is live or already reserved.
func (r *Registry) Reserve(id string) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	if _, ok := r.pending[id]; ok {
		return nil, ErrSessionExists
	}
	r.pending[id] = struct{}{}
	return &Reservation{r: r, id: id}, nil
}

// Commit turns the reservation into a live entry.
func (res *Reservation) Commit(s *Session) {
	res.once.Do(func() {
		res.r.mu.Lock()
		delete(res.r.pending, res.id)
		res.r.sessions[res.id] = s
		res.r.mu.Unlock()
	})
}

// Release drops the reservation without inserting anything. It is a no-op
// after Commit.
func (res *Reservation) Release() {
	res.once.Do(func() {
		res.r.mu.Lock()
		delete(res.r.pending, res.id)
		res.r.mu.Unlock()
	})
}
