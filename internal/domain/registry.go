package domain

// Registry is the set of agent strings currently considered in use.
// Membership checks are O(1); the zero value is not usable, call NewRegistry.
type Registry struct {
	agents map[string]struct{}
}

// NewRegistry creates a registry seeded with the given strings.
func NewRegistry(agents ...string) *Registry {
	r := &Registry{agents: make(map[string]struct{}, len(agents))}
	for _, a := range agents {
		r.agents[a] = struct{}{}
	}
	return r
}

// Contains reports whether s is registered.
func (r *Registry) Contains(s string) bool {
	_, ok := r.agents[s]
	return ok
}

// Insert registers s. Inserting an existing member is a no-op.
func (r *Registry) Insert(s string) {
	r.agents[s] = struct{}{}
}

// Remove releases s. Removing a missing member is a no-op.
func (r *Registry) Remove(s string) {
	delete(r.agents, s)
}

// Len returns the number of registered strings.
func (r *Registry) Len() int {
	return len(r.agents)
}

// Clear drops every member.
func (r *Registry) Clear() {
	clear(r.agents)
}

// Members returns the registered strings in no particular order.
func (r *Registry) Members() []string {
	out := make([]string, 0, len(r.agents))
	for a := range r.agents {
		out = append(out, a)
	}
	return out
}
