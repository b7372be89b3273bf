package api

import (
	"bytes"
	"encoding/json"
	"time"
)

type Repository struct {
	ID         ID         `json:"id" validate:"required"`
	RepoName   string     `json:"repo_name"`
	RepoURL    string     `json:"repo_url"`
	LastScanAt *time.Time `json:"last_scan_at"`
}

type ReposResponse struct {
	Repos []Repository `json:"repos" validate:"dive"`
}

type CreateRepositoryRequest struct {
	RepoName    string `json:"repo_name" validate:"required"`
	RepoURL     string `json:"repo_url" validate:"required,url"`
	GithubToken string `json:"github_token" validate:"required"`
}

type ScanRequest struct {
	GithubToken string `json:"github_token" validate:"required"`
}

// Ack is the acknowledgement returned when the backend accepts a long-running
// scan or sync. Any 2xx reply is an acknowledgement; see ParseAck.
type Ack struct {
	ID      ID     `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ParseAck reads whatever the backend sent with an accepted scan or sync. It
// never fails: a body that is not a JSON object becomes the message.
func ParseAck(body []byte) Ack {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Ack{}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Ack{Message: ackText(body)}
	}

	var ack Ack
	if raw, ok := fields["id"]; ok {
		_ = ack.ID.UnmarshalJSON(raw)
	}
	ack.Message = ackText(fields["message"])
	ack.Status = ackText(fields["status"])
	return ack
}

func ackText(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
