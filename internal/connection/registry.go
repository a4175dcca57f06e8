package connection

import (
	"context"
	"errors"
	"sync"

	"github.com/rickgao/statesync/internal/token"
)

// Registry holds the process-wide set of managers, one per logical channel.
// Every consumer asking for the same channel name gets the same manager, so
// the one-transport-per-channel invariant holds across the whole process.
type Registry struct {
	mu         sync.Mutex
	managers   map[string]*Manager
	newManager func(channel string) *Manager
}

// NewRegistry creates a registry. newManager builds a manager the first
// time a channel name is requested.
func NewRegistry(newManager func(channel string) *Manager) *Registry {
	return &Registry{
		managers:   make(map[string]*Manager),
		newManager: newManager,
	}
}

// Get returns the manager for channel, creating it on first use.
func (r *Registry) Get(channel string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[channel]; ok {
		return m
	}

	m := r.newManager(channel)
	r.managers[channel] = m
	return m
}

// Channels returns the names of all managers created so far.
func (r *Registry) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	return names
}

// Shutdown stops every manager, collecting errors.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	var errs []error
	for _, m := range managers {
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BindTokenStore connects a credential store's lifecycle signals to a
// manager: invalidation clears the cache and suspends reconnection, a
// refresh resumes it.
func BindTokenStore(s *token.Store, m *Manager) {
	s.OnInvalid(m.HandleUnauthorized)
	s.OnRefresh(m.Resume)
}
