package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/store/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetDashboard(ctx context.Context) (*api.DashboardResponse, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*api.DashboardResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func setupPage(t *testing.T, backend Backend) *Page {
	cache := query.New(context.Background(), query.Options{})
	t.Cleanup(cache.Close)
	page, err := New(cache, backend)
	require.NoError(t, err)
	return page
}

func TestPage_BeforeLoad(t *testing.T) {
	page := setupPage(t, new(mockBackend))

	v := page.Snapshot()

	assert.False(t, v.Loaded)
	assert.Equal(t, "Loading dashboard...", v.Message())
	assert.Len(t, v.Cards, 4)
	assert.False(t, v.RecentCritical.Empty())
}

func TestPage_Cards(t *testing.T) {
	tests := []struct {
		name     string
		response *api.DashboardResponse
		want     []domain.CategoryStats
	}{
		{
			name:     "empty summary",
			response: &api.DashboardResponse{},
			want:     make([]domain.CategoryStats, 4),
		},
		{
			name: "partial summary",
			response: &api.DashboardResponse{Summary: api.DashboardSummary{
				CloudMonitor: &api.CategorySummary{Total: 9, Open: 4, Critical: 1, High: 2},
			}},
			want: []domain.CategoryStats{{}, {}, {Total: 9, Open: 4, Critical: 1, High: 2}, {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(mockBackend)
			backend.On("GetDashboard", mock.Anything).Return(tt.response, nil).Once()
			page := setupPage(t, backend)

			require.NoError(t, page.Load(context.Background()))
			v := page.Snapshot()

			require.Len(t, v.Cards, 4)
			var titles []string
			var stats []domain.CategoryStats
			for _, c := range v.Cards {
				titles = append(titles, c.Title)
				stats = append(stats, c.CategoryStats)
			}
			assert.Equal(t, []string{"Attack Surface", "Log Intelligence", "Cloud Monitor", "Pentest"}, titles)
			assert.Equal(t, tt.want, stats)
			assert.Equal(t, "/cloud", v.Cards[2].Href)
			assert.Empty(t, v.Message())
		})
	}
}

func TestPage_RecentCritical(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("GetDashboard", mock.Anything).Return(&api.DashboardResponse{}, nil).Once()
		page := setupPage(t, backend)
		require.NoError(t, page.Load(context.Background()))

		v := page.Snapshot()

		assert.True(t, v.RecentCritical.Empty())
		assert.Equal(t, "No critical findings. Great job!", v.RecentCritical.EmptyMessage)
	})

	t.Run("links to the producing page", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("GetDashboard", mock.Anything).Return(&api.DashboardResponse{
			RecentCritical: []api.Finding{
				{ID: "5", Title: "Root login", Severity: api.SeverityCritical, Source: "log_intelligence"},
				{ID: "9", Title: "Public bucket", Severity: api.SeverityHigh, Source: "cloud_monitor"},
			},
		}, nil).Once()
		page := setupPage(t, backend)
		require.NoError(t, page.Load(context.Background()))

		items := page.Snapshot().RecentCritical.Items

		require.Len(t, items, 2)
		assert.Equal(t, "/log-intelligence/findings/5", items[0].Href)
		assert.Equal(t, "log intelligence", items[0].SourceLabel)
		assert.Equal(t, "/cloud-monitor/findings/9", items[1].Href)
		assert.Equal(t, domain.TierCritical, items[0].Tier)
		assert.Equal(t, domain.TierHigh, items[1].Tier)
	})
}

func TestPage_LoadError(t *testing.T) {
	backend := new(mockBackend)
	backend.On("GetDashboard", mock.Anything).Return(nil, errors.New("backend unavailable")).Once()
	page := setupPage(t, backend)

	assert.Error(t, page.Load(context.Background()))
	v := page.Snapshot()

	assert.Equal(t, "backend unavailable", v.Err)
	assert.Empty(t, v.Message())
	assert.Len(t, v.Cards, 4)
}
