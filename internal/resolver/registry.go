package resolver

import (
	"context"
	"strings"

	"github.com/arrdem/skrode/internal/domain"
)

// ServiceDef names an external service and its URLs for registration at
// startup.
type ServiceDef struct {
	Name string
	URLs []string
}

// Registry holds the service rows for this process. Populated once at
// startup and read-only afterwards, replacing per-call memoized lookups.
type Registry struct {
	services map[string]domain.Service
}

// BuildRegistry creates (or fetches) a service row per definition and
// returns the registry over them.
func BuildRegistry(ctx context.Context, store IdentityStore, defs []ServiceDef) (*Registry, error) {
	services := make(map[string]domain.Service, len(defs))
	for _, def := range defs {
		service, err := store.GetOrCreateService(ctx, def.Name, def.URLs)
		if err != nil {
			return nil, err
		}
		services[service.Name] = service
	}
	return &Registry{services: services}, nil
}

// Get returns the registered service for a name, case insensitive.
func (r *Registry) Get(name string) (domain.Service, bool) {
	service, ok := r.services[strings.ToLower(name)]
	return service, ok
}
