package timer

import (
	"sort"
	"sync"
)

// Registry holds one Machine per user.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*Machine
	factory  func(userID string) *Machine
}

// NewRegistry creates a registry that builds machines with factory on first use.
func NewRegistry(factory func(userID string) *Machine) *Registry {
	return &Registry{
		machines: make(map[string]*Machine),
		factory:  factory,
	}
}

// Get returns the user's machine, creating it if needed. The factory runs
// outside the lock; when two callers race for a new user the first machine
// stored wins and the other is closed.
func (r *Registry) Get(userID string) *Machine {
	r.mu.Lock()
	m, ok := r.machines[userID]
	r.mu.Unlock()
	if ok {
		return m
	}

	built := r.factory(userID)

	r.mu.Lock()
	if m, ok := r.machines[userID]; ok {
		r.mu.Unlock()
		built.Close()
		return m
	}
	r.machines[userID] = built
	r.mu.Unlock()
	return built
}

// Users returns the ids of users with a machine, sorted.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.machines))
	for u := range r.machines {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Close stops every machine's tick loop.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.machines {
		m.Close()
	}
}
