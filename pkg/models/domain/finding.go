package domain

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityTier is the visual emphasis a severity gets. Only critical and high
// are singled out; everything else shares the neutral treatment.
type SeverityTier int

const (
	TierNeutral SeverityTier = iota
	TierHigh
	TierCritical
)

func (s Severity) Tier() SeverityTier {
	switch s {
	case SeverityCritical:
		return TierCritical
	case SeverityHigh:
		return TierHigh
	default:
		return TierNeutral
	}
}

func (t SeverityTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	default:
		return "neutral"
	}
}

type Status string

const (
	StatusOpen          Status = "open"
	StatusAcknowledged  Status = "acknowledged"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// Statuses is the fixed set offered by the status control, in display order.
var Statuses = []Status{StatusOpen, StatusAcknowledged, StatusResolved, StatusFalsePositive}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown finding status %q", s)
}

func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusResolved:
		return "Resolved"
	case StatusFalsePositive:
		return "False Positive"
	default:
		return string(s)
	}
}

// Source identifies the subsystem that produced a finding.
type Source string

const (
	SourceAttackSurface   Source = "attack_surface"
	SourceLogIntelligence Source = "log_intelligence"
	SourceCloudMonitor    Source = "cloud_monitor"
	SourcePentest         Source = "pentest"
)

func (s Source) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Route is the detail page of a finding produced by this source.
func (s Source) Route(findingID string) string {
	return fmt.Sprintf("/%s/findings/%s", strings.ReplaceAll(string(s), "_", "-"), findingID)
}

type Finding struct {
	ID            string
	Title         string
	Severity      Severity
	Status        Status
	Location      string
	SourceIP      string
	DestinationIP string
	Protocol      string
	Explanation   string
	Source        Source
}

// HasFlow reports whether the finding carries a network flow worth showing.
func (f Finding) HasFlow() bool {
	return f.SourceIP != "" && f.DestinationIP != ""
}
