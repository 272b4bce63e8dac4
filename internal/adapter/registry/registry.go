// Package registry keeps the live mapping from agent name to endpoint URL.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// Resolver resolves a logical agent name to a base URL.
type Resolver interface {
	Resolve(agent string) (string, bool)
}

// Registry is a concurrency-safe in-memory endpoint table. It is seeded from
// configuration and updated by agent registration.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

// New creates a registry holding the given endpoints.
func New(endpoints map[string]string) *Registry {
	r := &Registry{endpoints: make(map[string]string, len(endpoints))}
	for name, url := range endpoints {
		r.Set(name, url)
	}
	return r
}

// Resolve implements Resolver.
func (r *Registry) Resolve(agent string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.endpoints[agent]
	return url, ok
}

// Set registers or replaces an endpoint. Empty names or URLs are ignored.
func (r *Registry) Set(agent, url string) {
	agent, url = strings.TrimSpace(agent), strings.TrimSpace(url)
	if agent == "" || url == "" {
		return
	}
	r.mu.Lock()
	r.endpoints[agent] = url
	r.mu.Unlock()
}

// Remove drops an endpoint, e.g. when the liveness poller marks it down.
func (r *Registry) Remove(agent string) {
	r.mu.Lock()
	delete(r.endpoints, agent)
	r.mu.Unlock()
}

// Names lists registered agents in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
