package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, router http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL: server.URL + "/api",
		Retry: RetryPolicy{
			MaxRetries:       2,
			BaseDelay:        time.Millisecond,
			MaxDelay:         5 * time.Millisecond,
			RetryStatusCodes: []int{503},
		},
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestClient_ListRepositories(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/attack-surface/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"repos":[{"id":1,"repo_name":"acme/app","repo_url":"https://github.com/acme/app","last_scan_at":"2025-01-02T03:04:05Z"},{"id":"r-2","repo_name":"acme/api","repo_url":"https://github.com/acme/api","last_scan_at":null}]}`)
	})
	c := newTestClient(t, r)

	repos, err := c.ListRepositories(context.Background())

	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, api.ID("1"), repos[0].ID)
	require.NotNil(t, repos[0].LastScanAt)
	assert.Equal(t, 2025, repos[0].LastScanAt.Year())
	assert.Equal(t, api.ID("r-2"), repos[1].ID)
	assert.Nil(t, repos[1].LastScanAt)
}

func TestClient_CreateRepository(t *testing.T) {
	var received api.CreateRepositoryRequest
	r := chi.NewRouter()
	r.Post("/api/attack-surface/repos", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusCreated, map[string]any{
			"repo": map[string]any{"id": 5, "repo_name": received.RepoName, "repo_url": received.RepoURL},
		})
	})
	c := newTestClient(t, r)

	repo, err := c.CreateRepository(context.Background(), api.CreateRepositoryRequest{
		RepoName:    "acme/app",
		RepoURL:     "https://github.com/acme/app",
		GithubToken: "ghp_x",
	})

	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, api.ID("5"), repo.ID)
	assert.Equal(t, "ghp_x", received.GithubToken)
	assert.Equal(t, "acme/app", received.RepoName)
}

func TestClient_CreateRepository_ValidationBeforeNetwork(t *testing.T) {
	var calls int32
	r := chi.NewRouter()
	r.Post("/api/attack-surface/repos", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	c := newTestClient(t, r)

	tests := []struct {
		name string
		req  api.CreateRepositoryRequest
	}{
		{"missing name", api.CreateRepositoryRequest{RepoURL: "https://github.com/a/b", GithubToken: "t"}},
		{"bad url", api.CreateRepositoryRequest{RepoName: "a/b", RepoURL: "not a url", GithubToken: "t"}},
		{"missing token", api.CreateRepositoryRequest{RepoName: "a/b", RepoURL: "https://github.com/a/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateRepository(context.Background(), tt.req)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_TriggerScan(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/attack-surface/repos/{id}/scan", func(w http.ResponseWriter, r *http.Request) {
		var req api.ScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ghp_scan", req.GithubToken)
		writeJSON(w, http.StatusAccepted, map[string]any{"message": "scan started for " + chi.URLParam(r, "id")})
	})
	c := newTestClient(t, r)

	ack, err := c.TriggerScan(context.Background(), "7", api.ScanRequest{GithubToken: "ghp_scan"})

	require.NoError(t, err)
	assert.Equal(t, "scan started for 7", ack.Message)
}

func TestClient_AcceptsAnyAcknowledgement(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        api.Ack
	}{
		{name: "plain text", contentType: "text/plain", body: "Scan started", want: api.Ack{Message: "Scan started"}},
		{name: "numeric status", contentType: "application/json", body: `{"message":"sync started","status":202,"id":9}`, want: api.Ack{ID: "9", Message: "sync started", Status: "202"}},
		{name: "json string", contentType: "application/json", body: `"queued"`, want: api.Ack{Message: "queued"}},
		{name: "empty", body: "", want: api.Ack{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := func(w http.ResponseWriter, _ *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(http.StatusAccepted)
				_, _ = io.WriteString(w, tt.body)
			}
			r := chi.NewRouter()
			r.Post("/api/attack-surface/repos/{id}/scan", reply)
			r.Post("/api/cloud/accounts/{id}/sync", reply)
			c := newTestClient(t, r)

			ack, err := c.TriggerScan(context.Background(), "7", api.ScanRequest{GithubToken: "ghp_scan"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *ack)

			ack, err = c.TriggerSync(context.Background(), "3")
			require.NoError(t, err)
			assert.Equal(t, tt.want, *ack)
		})
	}
}

func TestClient_UpdateCloudFinding(t *testing.T) {
	r := chi.NewRouter()
	r.Patch("/api/cloud/findings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req api.UpdateFindingStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": chi.URLParam(r, "id"), "title": "Port scan", "severity": "high", "status": req.Status,
		})
	})
	c := newTestClient(t, r)

	finding, err := c.UpdateCloudFinding(context.Background(), "42", api.StatusResolved)

	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, api.StatusResolved, finding.Status)

	_, err = c.UpdateCloudFinding(context.Background(), "42", api.FindingStatus("closed"))
	assert.True(t, IsValidation(err))
}

func TestClient_Rejected(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/cloud/accounts/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already running"})
	})
	c := newTestClient(t, r)

	_, err := c.TriggerSync(context.Background(), "acc-1")

	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, http.StatusConflict, StatusCode(err))
	assert.Contains(t, err.Error(), "sync already running")
}

func TestClient_RetriesIdempotentReads(t *testing.T) {
	var calls int32
	r := chi.NewRouter()
	r.Get("/api/cloud/accounts", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"accounts":[{"id":1,"account_id":"123456789012","cloud_provider":"aws"}]}`)
	})
	c := newTestClient(t, r)

	accounts, err := c.ListCloudAccounts(context.Background())

	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_NeverRetriesWrites(t *testing.T) {
	var calls int32
	r := chi.NewRouter()
	r.Post("/api/cloud/accounts/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, r)

	_, err := c.TriggerSync(context.Background(), "1")

	assert.True(t, IsRejected(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_DecodeErrors(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/attack-surface/findings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"findings":[{"id":1,"title":"x","severity":"apocalyptic"}]}`)
	})
	r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})
	c := newTestClient(t, r)

	_, err := c.ListAttackSurfaceFindings(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindDecode, apiErr.Kind)

	_, err = c.GetDashboard(context.Background())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindDecode, apiErr.Kind)
}

func TestClient_FindingWithoutSeverity(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/cloud/findings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"findings":[{"id":1,"title":"no severity"},{"id":2,"title":"x","severity":"high"}]}`)
	})
	c := newTestClient(t, r)

	findings, err := c.ListCloudFindings(context.Background())

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Empty(t, findings[0].Severity)
	assert.Equal(t, api.SeverityHigh, findings[1].Severity)
}

func TestClient_TransportError(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Retry: RetryPolicy{}})
	require.NoError(t, err)

	_, err = c.ListCloudFindings(context.Background())

	assert.True(t, IsTransport(err))
}

func TestClient_ContextCancelled(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := newTestClient(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetDashboard(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
