package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/de-tools/secboard/pkg/adapters"
	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/services/view"
	"github.com/de-tools/secboard/pkg/store/query"
)

const (
	Key query.Key = "dashboard"

	LoadingMessage    = "Loading dashboard..."
	NoCriticalMessage = "No critical findings. Great job!"
)

type Backend interface {
	GetDashboard(ctx context.Context) (*api.DashboardResponse, error)
}

type CardView struct {
	Category domain.Category
	Title    string
	Href     string
	domain.CategoryStats
}

type CriticalView struct {
	domain.Finding
	Tier        domain.SeverityTier
	SourceLabel string
	Href        string
}

type View struct {
	Loaded         bool
	Loading        bool
	Refreshing     bool
	Err            string
	Cards          []CardView
	RecentCritical view.Collection[CriticalView]
}

// Message is the text shown instead of the cards, if any.
func (v View) Message() string {
	if !v.Loaded && v.Err == "" {
		return LoadingMessage
	}
	return ""
}

type Page struct {
	cache *query.Cache

	mu     sync.Mutex
	unsubs []func()
}

func New(cache *query.Cache, backend Backend) (*Page, error) {
	err := cache.Register(Key, func(ctx context.Context) (any, error) {
		res, err := backend.GetDashboard(ctx)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = &api.DashboardResponse{}
		}
		return adapters.MapDashboardApiToDomain(*res), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register dashboard query: %w", err)
	}
	return &Page{cache: cache}, nil
}

func (p *Page) Name() string {
	return "dashboard"
}

func (p *Page) Title() string {
	return "Security Dashboard"
}

func (p *Page) Keys() []query.Key {
	return []query.Key{Key}
}

func (p *Page) Mount(_ context.Context, onChange func()) error {
	p.mu.Lock()
	mounted := len(p.unsubs) > 0
	p.mu.Unlock()
	if mounted {
		return fmt.Errorf("page %s is already mounted", p.Name())
	}
	if onChange == nil {
		onChange = func() {}
	}

	unsubs, err := view.Observe(p.cache, p.Keys(), onChange)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.unsubs = unsubs
	p.mu.Unlock()
	return nil
}

func (p *Page) Unmount() {
	p.mu.Lock()
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (p *Page) Load(ctx context.Context) error {
	_, err := p.cache.Fetch(ctx, Key)
	return err
}

// Snapshot always has the four summary cards in fixed order. Counts the
// backend did not report are zero.
func (p *Page) Snapshot() View {
	state := p.cache.Get(Key)

	v := View{
		Loading:    state.Loading(),
		Refreshing: state.HasData() && state.Fetching,
	}
	if state.Err != nil {
		v.Err = state.Err.Error()
	}

	summary, ok := query.Data[domain.DashboardSummary](state)
	v.Loaded = ok
	if !ok {
		summary = adapters.MapDashboardApiToDomain(api.DashboardResponse{})
	}

	for _, c := range summary.Cards {
		v.Cards = append(v.Cards, CardView{
			Category:      c.Category,
			Title:         c.Category.Title(),
			Href:          c.Category.Href(),
			CategoryStats: c.Stats,
		})
	}

	v.RecentCritical = view.Collection[CriticalView]{
		Loaded:       ok,
		Loading:      v.Loading,
		Refreshing:   v.Refreshing,
		Err:          v.Err,
		EmptyMessage: NoCriticalMessage,
	}
	for _, f := range summary.RecentCritical {
		item := CriticalView{Finding: f, Tier: f.Severity.Tier(), SourceLabel: f.Source.Label()}
		if f.Source != "" {
			item.Href = f.Source.Route(f.ID)
		}
		v.RecentCritical.Items = append(v.RecentCritical.Items, item)
	}
	return v
}
