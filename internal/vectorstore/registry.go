package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds named Store drivers. Thread-safe. Only one driver is
// ever active in a given deployment (pinecone in production, memory in
// tests/local dev), but the registry shape is kept because it also backs
// the admin health-check endpoint, which reports on whatever is registered.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Store
}

// NewRegistry creates an empty vector store registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Store)}
}

// Register adds a driver under name, overwriting any existing entry.
func (r *Registry) Register(name string, driver Store) {
	r.mu.Lock()
	r.drivers[name] = driver
	r.mu.Unlock()
	log.Info().Str("name", name).Str("kind", driver.Kind()).Msg("vector store driver registered")
}

// Get returns the driver by name.
func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("vector store driver not found: %s", name)
	}
	return d, nil
}

// List returns all registered driver names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	return names
}

// HealthCheckAll pings every registered driver and returns errors keyed by name.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	snapshot := make(map[string]Store, len(r.drivers))
	for k, v := range r.drivers {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	for name, driver := range snapshot {
		results[name] = driver.HealthCheck(ctx)
	}
	return results
}
