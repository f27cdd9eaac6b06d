package ai

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProvider is returned when a request names a provider outside the
// configured set. This is a configuration error raised before any network call.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds the closed set of configured providers, keyed by ID.
// New backends are added by registering another Provider implementation,
// never by string-matching in the orchestrator.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.ID()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider with the given ID.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// Has reports whether a provider with the given ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.providers[id]
	return ok
}

// IDs returns the registered provider IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
