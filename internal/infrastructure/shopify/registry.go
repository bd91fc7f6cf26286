package shopify

import (
	"fmt"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// Registry holds the client for each store
type Registry struct {
	clients map[catalogsync.Store]*Client
}

// NewRegistry builds a registry from one client per store
func NewRegistry(clients ...*Client) *Registry {
	r := &Registry{clients: make(map[catalogsync.Store]*Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Store()] = c
	}
	return r
}

// Get implements catalogsync.PlatformRegistry
func (r *Registry) Get(store catalogsync.Store) (catalogsync.CatalogPlatform, error) {
	c, err := r.Client(store)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Client returns the concrete client, which also administers webhooks
func (r *Registry) Client(store catalogsync.Store) (*Client, error) {
	if !store.IsValid() {
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidStore, store)
	}
	c, ok := r.clients[store]
	if !ok {
		return nil, fmt.Errorf("%w: no platform client for %s", catalogsync.ErrConfigurationMissing, store)
	}
	return c, nil
}

var (
	_ catalogsync.CatalogPlatform  = (*Client)(nil)
	_ catalogsync.WebhookAdmin     = (*Client)(nil)
	_ catalogsync.PlatformRegistry = (*Registry)(nil)
)
