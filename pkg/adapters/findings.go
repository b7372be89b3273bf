package adapters

import (
	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
)

func MapSeverityApiToDomain(s api.Severity) domain.Severity {
	switch s {
	case api.SeverityCritical:
		return domain.SeverityCritical
	case api.SeverityHigh:
		return domain.SeverityHigh
	case api.SeverityMedium:
		return domain.SeverityMedium
	case api.SeverityLow:
		return domain.SeverityLow
	default:
		return ""
	}
}

func MapStatusApiToDomain(s api.FindingStatus) domain.Status {
	switch s {
	case api.StatusAcknowledged:
		return domain.StatusAcknowledged
	case api.StatusResolved:
		return domain.StatusResolved
	case api.StatusFalsePositive:
		return domain.StatusFalsePositive
	default:
		return domain.StatusOpen
	}
}

func MapStatusDomainToApi(s domain.Status) api.FindingStatus {
	return api.FindingStatus(s)
}

// MapFindingApiToDomain maps a wire finding. fallback is used when the
// backend leaves the source out, which the per-page endpoints do.
func MapFindingApiToDomain(f api.Finding, fallback domain.Source) domain.Finding {
	source := domain.Source(f.Source)
	if source == "" {
		source = fallback
	}
	return domain.Finding{
		ID:            f.ID.String(),
		Title:         f.Title,
		Severity:      MapSeverityApiToDomain(f.Severity),
		Status:        MapStatusApiToDomain(f.Status),
		Location:      f.Location,
		SourceIP:      f.SourceIP,
		DestinationIP: f.DestinationIP,
		Protocol:      f.Protocol,
		Explanation:   f.AIExplanation,
		Source:        source,
	}
}

func MapFindingsApiToDomain(findings []api.Finding, fallback domain.Source) []domain.Finding {
	res := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		res = append(res, MapFindingApiToDomain(f, fallback))
	}
	return res
}
