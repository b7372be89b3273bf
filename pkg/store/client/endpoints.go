package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/de-tools/secboard/pkg/models/api"
)

func (c *Client) ListRepositories(ctx context.Context) ([]api.Repository, error) {
	var resp api.ReposResponse
	if err := c.call(ctx, "list repositories", http.MethodGet, c.endpoint("attack-surface", "repos"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Repos, nil
}

func (c *Client) CreateRepository(ctx context.Context, req api.CreateRepositoryRequest) (*api.Repository, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "create repository", http.MethodPost, c.endpoint("attack-surface", "repos"), &req, &raw); err != nil {
		return nil, err
	}
	repo := &api.Repository{}
	if !decodeEntity(raw, "repo", repo) {
		return nil, nil
	}
	return repo, nil
}

func (c *Client) TriggerScan(ctx context.Context, repoID string, req api.ScanRequest) (*api.Ack, error) {
	return c.acknowledge(ctx, "trigger scan", c.endpoint("attack-surface", "repos", repoID, "scan"), &req)
}

func (c *Client) ListAttackSurfaceFindings(ctx context.Context) ([]api.Finding, error) {
	var resp api.FindingsResponse
	if err := c.call(ctx, "list attack surface findings", http.MethodGet, c.endpoint("attack-surface", "findings"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

func (c *Client) UpdateAttackSurfaceFinding(ctx context.Context, id string, status api.FindingStatus) (*api.Finding, error) {
	return c.updateFinding(ctx, "update attack surface finding", c.endpoint("attack-surface", "findings", id), status)
}

func (c *Client) ListCloudAccounts(ctx context.Context) ([]api.CloudAccount, error) {
	var resp api.AccountsResponse
	if err := c.call(ctx, "list cloud accounts", http.MethodGet, c.endpoint("cloud", "accounts"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) CreateCloudAccount(ctx context.Context, req api.CreateCloudAccountRequest) (*api.CloudAccount, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "create cloud account", http.MethodPost, c.endpoint("cloud", "accounts"), &req, &raw); err != nil {
		return nil, err
	}
	account := &api.CloudAccount{}
	if !decodeEntity(raw, "account", account) {
		return nil, nil
	}
	return account, nil
}

func (c *Client) TriggerSync(ctx context.Context, accountID string) (*api.Ack, error) {
	return c.acknowledge(ctx, "trigger sync", c.endpoint("cloud", "accounts", accountID, "sync"), nil)
}

func (c *Client) ListCloudFindings(ctx context.Context) ([]api.Finding, error) {
	var resp api.FindingsResponse
	if err := c.call(ctx, "list cloud findings", http.MethodGet, c.endpoint("cloud", "findings"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

func (c *Client) UpdateCloudFinding(ctx context.Context, id string, status api.FindingStatus) (*api.Finding, error) {
	return c.updateFinding(ctx, "update cloud finding", c.endpoint("cloud", "findings", id), status)
}

func (c *Client) GetDashboard(ctx context.Context) (*api.DashboardResponse, error) {
	var resp api.DashboardResponse
	if err := c.call(ctx, "get dashboard", http.MethodGet, c.endpoint("dashboard"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) updateFinding(ctx context.Context, op, target string, status api.FindingStatus) (*api.Finding, error) {
	var raw json.RawMessage
	req := api.UpdateFindingStatusRequest{Status: status}
	if err := c.call(ctx, op, http.MethodPatch, target, &req, &raw); err != nil {
		return nil, err
	}
	finding := &api.Finding{}
	if !decodeEntity(raw, "finding", finding) {
		return nil, nil
	}
	return finding, nil
}

// decodeEntity accepts either {"<envelope>": {...}} or the bare object. It
// reports false when neither shape carries an id.
func decodeEntity[T any](raw json.RawMessage, envelope string, out *T) bool {
	if len(raw) == 0 {
		return false
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return false
	}
	if inner, ok := wrapped[envelope]; ok {
		raw = inner
	} else if _, ok := wrapped["id"]; !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
