package session

import "sync"

// Registry maps channel ids to their current session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// swap registers sess and returns the session it replaced, if any.
func (r *Registry) swap(sess *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[sess.ChannelID]
	r.sessions[sess.ChannelID] = sess
	return prev
}

// Get returns the current session of channelID.
func (r *Registry) Get(channelID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[channelID]
	return s, ok
}

// remove deletes sess only if it is still the registered session for its id.
func (r *Registry) remove(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[sess.ChannelID]; ok && cur == sess {
		delete(r.sessions, sess.ChannelID)
		return true
	}
	return false
}

// take removes and returns the session of channelID.
func (r *Registry) take(channelID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[channelID]
	if ok {
		delete(r.sessions, channelID)
	}
	return s, ok
}

// drain removes and returns every session.
func (r *Registry) drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
	}
	return out
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
