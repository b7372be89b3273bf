package pages

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/dashboard"
	"github.com/de-tools/secboard/pkg/services/mutation"
	"github.com/de-tools/secboard/pkg/store/query"
)

// Page is what every screen of the dashboard has in common.
type Page interface {
	Name() string
	Title() string
	Keys() []query.Key
	// Mount observes the page's data until Unmount, calling onChange on every update.
	Mount(ctx context.Context, onChange func()) error
	Unmount()
	// Load fetches whatever the page shows that is missing or stale.
	Load(ctx context.Context) error
}

// Backend is the full set of backend calls the pages make.
type Backend interface {
	dashboard.Backend
	attacksurface.Backend
	cloud.Backend
}

type Deps struct {
	Cache    *query.Cache
	Executor *mutation.Executor
	Backend  Backend
}

// Factory creates a page from shared dependencies
type Factory func(deps Deps) (Page, error)

type Registry interface {
	Register(name string, factory Factory) error
	Create(name string, deps Deps) (Page, error)
	List() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry knows every page of the dashboard.
func DefaultRegistry() Registry {
	r := NewRegistry()
	_ = r.Register(NameDashboard, func(deps Deps) (Page, error) {
		return dashboard.New(deps.Cache, deps.Backend)
	})
	_ = r.Register(NameAttackSurface, func(deps Deps) (Page, error) {
		return attacksurface.New(deps.Cache, deps.Executor, deps.Backend)
	})
	_ = r.Register(NameCloud, func(deps Deps) (Page, error) {
		return cloud.New(deps.Cache, deps.Executor, deps.Backend)
	})
	return r
}

func (r *registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("page name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("page %q is already registered", name)
	}

	r.factories[name] = factory
	return nil
}

func (r *registry) Create(name string, deps Deps) (Page, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("page %q is not registered", name)
	}

	return factory(deps)
}

func (r *registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
