package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type FindingStatus string

const (
	StatusOpen          FindingStatus = "open"
	StatusAcknowledged  FindingStatus = "acknowledged"
	StatusResolved      FindingStatus = "resolved"
	StatusFalsePositive FindingStatus = "false_positive"
)

// ID is an opaque identifier. The backend sends either numbers or strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type Finding struct {
	ID            ID            `json:"id" validate:"required"`
	Title         string        `json:"title"`
	Severity      Severity      `json:"severity" validate:"omitempty,oneof=critical high medium low"`
	Status        FindingStatus `json:"status" validate:"omitempty,oneof=open acknowledged resolved false_positive"`
	Location      string        `json:"location,omitempty"`
	SourceIP      string        `json:"source_ip,omitempty"`
	DestinationIP string        `json:"destination_ip,omitempty"`
	Protocol      string        `json:"protocol,omitempty"`
	AIExplanation string        `json:"ai_explanation,omitempty"`
	Source        string        `json:"source,omitempty"`
}

type FindingsResponse struct {
	Findings []Finding `json:"findings" validate:"dive"`
}

type UpdateFindingStatusRequest struct {
	Status FindingStatus `json:"status" validate:"required,oneof=open acknowledged resolved false_positive"`
}
