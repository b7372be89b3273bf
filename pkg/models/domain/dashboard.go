package domain

type Category string

const (
	CategoryAttackSurface   Category = "attackSurface"
	CategoryLogIntelligence Category = "logIntelligence"
	CategoryCloudMonitor    Category = "cloudMonitor"
	CategoryPentest         Category = "pentest"
)

// Categories lists the summary cards in display order.
var Categories = []Category{
	CategoryAttackSurface,
	CategoryLogIntelligence,
	CategoryCloudMonitor,
	CategoryPentest,
}

func (c Category) Title() string {
	switch c {
	case CategoryAttackSurface:
		return "Attack Surface"
	case CategoryLogIntelligence:
		return "Log Intelligence"
	case CategoryCloudMonitor:
		return "Cloud Monitor"
	case CategoryPentest:
		return "Pentest"
	default:
		return string(c)
	}
}

func (c Category) Href() string {
	switch c {
	case CategoryAttackSurface:
		return "/attack-surface"
	case CategoryLogIntelligence:
		return "/logs"
	case CategoryCloudMonitor:
		return "/cloud"
	case CategoryPentest:
		return "/pentest"
	default:
		return "/"
	}
}

type CategoryStats struct {
	Total    int
	Open     int
	Critical int
	High     int
}

type SummaryCard struct {
	Category Category
	Stats    CategoryStats
}

type DashboardSummary struct {
	Cards          []SummaryCard
	RecentCritical []Finding
}
