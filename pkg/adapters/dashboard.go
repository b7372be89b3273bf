package adapters

import (
	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
)

func MapCategorySummaryApiToDomain(s *api.CategorySummary) domain.CategoryStats {
	if s == nil {
		return domain.CategoryStats{}
	}
	return domain.CategoryStats{
		Total:    s.Total,
		Open:     s.Open,
		Critical: s.Critical,
		High:     s.High,
	}
}

func MapDashboardApiToDomain(r api.DashboardResponse) domain.DashboardSummary {
	byCategory := map[domain.Category]*api.CategorySummary{
		domain.CategoryAttackSurface:   r.Summary.AttackSurface,
		domain.CategoryLogIntelligence: r.Summary.LogIntelligence,
		domain.CategoryCloudMonitor:    r.Summary.CloudMonitor,
		domain.CategoryPentest:         r.Summary.Pentest,
	}

	res := domain.DashboardSummary{
		Cards:          make([]domain.SummaryCard, 0, len(domain.Categories)),
		RecentCritical: MapFindingsApiToDomain(r.RecentCritical, ""),
	}
	for _, c := range domain.Categories {
		res.Cards = append(res.Cards, domain.SummaryCard{
			Category: c,
			Stats:    MapCategorySummaryApiToDomain(byCategory[c]),
		})
	}
	return res
}
