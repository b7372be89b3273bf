package api

type CategorySummary struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Critical int `json:"critical"`
	High     int `json:"high"`
}

// DashboardSummary uses pointers so a category missing from the response can
// be told apart from one reporting zeros.
type DashboardSummary struct {
	AttackSurface   *CategorySummary `json:"attackSurface,omitempty"`
	LogIntelligence *CategorySummary `json:"logIntelligence,omitempty"`
	CloudMonitor    *CategorySummary `json:"cloudMonitor,omitempty"`
	Pentest         *CategorySummary `json:"pentest,omitempty"`
}

type DashboardResponse struct {
	Summary        DashboardSummary `json:"summary"`
	RecentCritical []Finding        `json:"recentCritical" validate:"dive"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
