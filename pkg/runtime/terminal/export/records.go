package export

import (
	"time"

	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/dashboard"
	"github.com/de-tools/secboard/pkg/services/findings"
	"github.com/de-tools/secboard/pkg/services/view"
)

const never = "Never"

type CardRecord struct {
	Category string `json:"category" yaml:"category"`
	Title    string `json:"title" yaml:"title"`
	Total    int    `json:"total" yaml:"total"`
	Open     int    `json:"open" yaml:"open"`
	Critical int    `json:"critical" yaml:"critical"`
	High     int    `json:"high" yaml:"high"`
	Link     string `json:"link" yaml:"link"`
}

type FindingRecord struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Severity    string `json:"severity" yaml:"severity"`
	Status      string `json:"status" yaml:"status"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Flow        string `json:"flow,omitempty" yaml:"flow,omitempty"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Detail is what the text table shows in its last column.
func (f FindingRecord) Detail() string {
	if f.Flow != "" {
		return f.Flow
	}
	if f.Location != "" {
		return f.Location
	}
	return f.Link
}

type DashboardRecord struct {
	Message        string          `json:"message,omitempty" yaml:"message,omitempty"`
	Cards          []CardRecord    `json:"cards" yaml:"cards"`
	RecentCritical []FindingRecord `json:"recentCritical" yaml:"recentCritical"`
	EmptyMessage   string          `json:"-" yaml:"-"`
}

type RepositoryRecord struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	URL        string `json:"url" yaml:"url"`
	LastScanAt string `json:"lastScanAt" yaml:"lastScanAt"`
}

type AccountRecord struct {
	ID         string `json:"id" yaml:"id"`
	AccountID  string `json:"accountId" yaml:"accountId"`
	Name       string `json:"name" yaml:"name"`
	Provider   string `json:"provider" yaml:"provider"`
	LastSyncAt string `json:"lastSyncAt" yaml:"lastSyncAt"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
}

// List is a titled collection as the reporter prints it.
type List[T any] struct {
	Title        string `json:"-" yaml:"-"`
	Loaded       bool   `json:"-" yaml:"-"`
	Err          string `json:"error,omitempty" yaml:"error,omitempty"`
	Items        []T    `json:"items" yaml:"items"`
	EmptyMessage string `json:"-" yaml:"-"`
}

func newList[T, U any](title string, c view.Collection[U]) List[T] {
	return List[T]{
		Title:        title,
		Loaded:       c.Loaded,
		Err:          c.Err,
		Items:        []T{},
		EmptyMessage: c.EmptyMessage,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return never
	}
	return t.Local().Format("2006-01-02 15:04")
}

func DashboardFromView(v dashboard.View) DashboardRecord {
	res := DashboardRecord{
		Message:        v.Message(),
		Cards:          make([]CardRecord, 0, len(v.Cards)),
		RecentCritical: make([]FindingRecord, 0, len(v.RecentCritical.Items)),
		EmptyMessage:   v.RecentCritical.EmptyMessage,
	}
	for _, c := range v.Cards {
		res.Cards = append(res.Cards, CardRecord{
			Category: string(c.Category),
			Title:    c.Title,
			Total:    c.Total,
			Open:     c.Open,
			Critical: c.Critical,
			High:     c.High,
			Link:     c.Href,
		})
	}
	for _, f := range v.RecentCritical.Items {
		rec := findingRecord(f.Finding)
		rec.Source = f.SourceLabel
		rec.Link = f.Href
		res.RecentCritical = append(res.RecentCritical, rec)
	}
	return res
}

func RepositoriesFromView(c view.Collection[domain.Repository]) List[RepositoryRecord] {
	res := newList[RepositoryRecord]("Repositories", c)
	for _, r := range c.Items {
		res.Items = append(res.Items, RepositoryRecord{
			ID:         r.ID,
			Name:       r.Name,
			URL:        r.URL,
			LastScanAt: formatTime(r.LastScanAt),
		})
	}
	return res
}

func AccountsFromView(c view.Collection[cloud.AccountView]) List[AccountRecord] {
	res := newList[AccountRecord]("Cloud Accounts", c)
	for _, a := range c.Items {
		rec := AccountRecord{
			ID:         a.ID,
			AccountID:  a.AccountID,
			Name:       a.DisplayName(),
			Provider:   a.ProviderLabel,
			LastSyncAt: formatTime(a.LastSyncAt),
		}
		switch {
		case a.Syncing:
			rec.State = cloud.SyncingLabel
		case a.SyncErr != "":
			rec.State = a.SyncErr
		}
		res.Items = append(res.Items, rec)
	}
	return res
}

func AttackSurfaceFindingsFromView(c view.Collection[findings.FindingView]) List[FindingRecord] {
	res := newList[FindingRecord]("Attack Surface Findings", c)
	for _, f := range c.Items {
		res.Items = append(res.Items, editedRecord(f))
	}
	return res
}

func CloudFindingsFromView(c view.Collection[cloud.FindingView]) List[FindingRecord] {
	res := newList[FindingRecord]("Cloud Findings", c)
	for _, f := range c.Items {
		rec := editedRecord(f.FindingView)
		rec.Flow = f.Flow
		res.Items = append(res.Items, rec)
	}
	return res
}

func editedRecord(f findings.FindingView) FindingRecord {
	rec := findingRecord(f.Finding)
	rec.Status = string(f.Selected)
	if f.Pending {
		rec.Status += " (saving)"
	}
	rec.Error = f.Err
	return rec
}

func findingRecord(f domain.Finding) FindingRecord {
	return FindingRecord{
		ID:          f.ID,
		Title:       f.Title,
		Severity:    string(f.Severity),
		Status:      string(f.Status),
		Location:    f.Location,
		Explanation: f.Explanation,
	}
}
