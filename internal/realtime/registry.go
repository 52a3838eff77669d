package realtime

import (
	"sort"
	"sync"
)

// Binding ties a live connection to a participant of a session.
type Binding struct {
	SessionID     string
	ParticipantID string
}

// Registry maps connection ids to bindings and keeps the reverse index of
// which connections belong to each session. It never holds business state.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]Binding
	members map[string]map[string]struct{} // session id -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]Binding),
		members: make(map[string]map[string]struct{}),
	}
}

// Bind attaches connID to b, replacing any earlier binding.
func (r *Registry) Bind(connID string, b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unbindLocked(connID)
	r.conns[connID] = b
	set, ok := r.members[b.SessionID]
	if !ok {
		set = make(map[string]struct{})
		r.members[b.SessionID] = set
	}
	set[connID] = struct{}{}
}

// Unbind removes connID and returns what it was bound to.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unbindLocked(connID)
}

func (r *Registry) unbindLocked(connID string) (Binding, bool) {
	b, ok := r.conns[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.conns, connID)
	if set := r.members[b.SessionID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, b.SessionID)
		}
	}
	return b, true
}

// Lookup returns the binding for connID.
func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b, ok
}

// Members returns the connections bound to sessionID in a stable order.
func (r *Registry) Members(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.members[sessionID])
}

// ConnectionsOf returns the connections bound to one participant.
func (r *Registry) ConnectionsOf(b Binding) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for connID := range r.members[b.SessionID] {
		if r.conns[connID] == b {
			out = append(out, connID)
		}
	}
	sort.Strings(out)
	return out
}

// DropSession unbinds every connection of sessionID and returns them.
func (r *Registry) DropSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := sortedKeys(r.members[sessionID])
	for _, connID := range conns {
		delete(r.conns, connID)
	}
	delete(r.members, sessionID)
	return conns
}

// Count returns the number of bound connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
