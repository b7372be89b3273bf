package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/dashboard"
	"github.com/de-tools/secboard/pkg/services/mutation"
	"github.com/de-tools/secboard/pkg/store/query"
)

const (
	NameDashboard     = "dashboard"
	NameAttackSurface = "attack-surface"
	NameCloud         = "cloud"
)

// Navigation lists the pages in the order the navigation shows them.
var Navigation = []string{NameDashboard, NameAttackSurface, NameCloud}

type Options struct {
	FetchTimeout    time.Duration
	MutationTimeout time.Duration
	LongTimeout     time.Duration
}

// Session owns the query cache and mutation executor shared by all pages of
// one running dashboard.
type Session struct {
	Cache    *query.Cache
	Executor *mutation.Executor

	pages map[string]Page
}

func NewSession(ctx context.Context, backend Backend, registry Registry, opts Options) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if registry == nil {
		registry = DefaultRegistry()
	}

	cache := query.New(ctx, query.Options{FetchTimeout: opts.FetchTimeout})
	deps := Deps{
		Cache:    cache,
		Executor: mutation.NewExecutor(cache, mutation.Options{Timeout: opts.MutationTimeout, LongTimeout: opts.LongTimeout}),
		Backend:  backend,
	}

	s := &Session{Cache: cache, Executor: deps.Executor, pages: make(map[string]Page)}
	for _, name := range registry.List() {
		page, err := registry.Create(name, deps)
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("failed to create page %s: %w", name, err)
		}
		s.pages[name] = page
	}
	return s, nil
}

func (s *Session) Page(name string) (Page, error) {
	page, ok := s.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	return page, nil
}

func (s *Session) Dashboard() *dashboard.Page {
	p, _ := s.pages[NameDashboard].(*dashboard.Page)
	return p
}

func (s *Session) AttackSurface() *attacksurface.Page {
	p, _ := s.pages[NameAttackSurface].(*attacksurface.Page)
	return p
}

func (s *Session) Cloud() *cloud.Page {
	p, _ := s.pages[NameCloud].(*cloud.Page)
	return p
}

// Close unmounts every page and stops all fetches.
func (s *Session) Close() {
	for _, p := range s.pages {
		p.Unmount()
	}
	s.Cache.Close()
}
