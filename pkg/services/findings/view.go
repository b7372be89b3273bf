package findings

import "github.com/de-tools/secboard/pkg/models/domain"

type StatusOption struct {
	Value    domain.Status
	Label    string
	Selected bool
}

type FindingView struct {
	domain.Finding
	Selected domain.Status
	Pending  bool
	Err      string
	Tier     domain.SeverityTier
	Options  []StatusOption
}

func newFindingView(f domain.Finding, selected domain.Status, pending bool, errMsg string) FindingView {
	options := make([]StatusOption, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		options = append(options, StatusOption{Value: s, Label: s.Label(), Selected: s == selected})
	}
	return FindingView{
		Finding:  f,
		Selected: selected,
		Pending:  pending,
		Err:      errMsg,
		Tier:     f.Severity.Tier(),
		Options:  options,
	}
}
