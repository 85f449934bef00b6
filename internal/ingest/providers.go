package ingest

import (
	"errors"
	"fmt"
)

// ErrProviderNotFound signals an import request for a provider the
// registry does not know. Alias scoping is meaningless without provider
// context, so this is fatal for the batch.
var ErrProviderNotFound = errors.New("provider not found")

// Provider describes one external data source and the matching strategy
// bound to it.
type Provider struct {
	ID       string
	Strategy string
	State    string
}

// Registry holds the configured providers, keyed by provider id.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the configured provider id to
// matcher strategy mapping. State is only meaningful for state-scoped
// strategies and may be empty otherwise.
func NewRegistry(strategies map[string]string, state string) *Registry {
	providers := make(map[string]Provider, len(strategies))
	for id, strategy := range strategies {
		p := Provider{ID: id, Strategy: strategy}
		if strategy == "club_variant" {
			p.State = state
		}
		providers[id] = p
	}
	return &Registry{providers: providers}
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return p, nil
}

// IDs returns the registered provider ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}
