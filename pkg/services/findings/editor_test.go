package findings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/services/mutation"
	"github.com/de-tools/secboard/pkg/store/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key query.Key = "cloud-findings"

type fixture struct {
	cache   *query.Cache
	exec    *mutation.Executor
	editor  *Editor
	fetches atomic.Int32
	patches []domain.Status
	fail    error
}

func setupFixture(t *testing.T) *fixture {
	f := &fixture{}
	f.cache = query.New(context.Background(), query.Options{})
	t.Cleanup(f.cache.Close)

	require.NoError(t, f.cache.Register(key, func(context.Context) (any, error) {
		f.fetches.Add(1)
		return []domain.Finding{{ID: "42", Severity: domain.SeverityHigh, Status: domain.StatusOpen}}, nil
	}))
	f.exec = mutation.NewExecutor(f.cache, mutation.Options{})
	f.editor = NewEditor(domain.SourceCloudMonitor, key, f.exec, func(_ context.Context, id string, status domain.Status) error {
		f.patches = append(f.patches, status)
		return f.fail
	})
	return f
}

func TestEditor_ChangeIssuesOnePatchAndRefetches(t *testing.T) {
	for _, status := range domain.Statuses {
		t.Run(string(status), func(t *testing.T) {
			f := setupFixture(t)
			_, err := f.cache.Fetch(context.Background(), key)
			require.NoError(t, err)

			require.NoError(t, f.editor.Change(context.Background(), "42", string(status)))

			assert.Equal(t, []domain.Status{status}, f.patches)
			assert.True(t, f.cache.Get(key).Stale)

			_, err = f.cache.Fetch(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, int32(2), f.fetches.Load())
		})
	}
}

func TestEditor_ConfirmedSelectionSurvivesUntilNewerData(t *testing.T) {
	f := setupFixture(t)
	fetchedBefore := time.Now().Add(-time.Minute)
	items := []domain.Finding{{ID: "42", Severity: domain.SeverityCritical, Status: domain.StatusOpen}}

	require.NoError(t, f.editor.Change(context.Background(), "42", "resolved"))

	views := f.editor.Apply(items, fetchedBefore)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusResolved, views[0].Selected)
	assert.False(t, views[0].Pending)
	assert.Equal(t, domain.TierCritical, views[0].Tier)

	var selected []domain.Status
	for _, o := range views[0].Options {
		if o.Selected {
			selected = append(selected, o.Value)
		}
	}
	assert.Equal(t, []domain.Status{domain.StatusResolved}, selected)
	assert.Len(t, views[0].Options, 4)

	items[0].Status = domain.StatusResolved
	views = f.editor.Apply(items, time.Now().Add(time.Second))
	assert.Equal(t, domain.StatusResolved, views[0].Selected)

	items[0].Status = domain.StatusAcknowledged
	views = f.editor.Apply(items, time.Now().Add(time.Second))
	assert.Equal(t, domain.StatusAcknowledged, views[0].Selected, "overlay dropped once fresher data arrived")
}

func TestEditor_FailedPatchRollsBackWithoutRefetch(t *testing.T) {
	f := setupFixture(t)
	_, err := f.cache.Fetch(context.Background(), key)
	require.NoError(t, err)
	f.fail = errors.New("backend rejected request (500)")

	err = f.editor.Change(context.Background(), "42", "false_positive")

	require.Error(t, err)
	assert.False(t, f.cache.Get(key).Stale, "failed change must not invalidate")

	views := f.editor.Apply([]domain.Finding{{ID: "42", Status: domain.StatusOpen}}, time.Now())
	assert.Equal(t, domain.StatusOpen, views[0].Selected)
	assert.Contains(t, views[0].Err, "500")

	f.editor.DismissError("42")
	views = f.editor.Apply([]domain.Finding{{ID: "42", Status: domain.StatusOpen}}, time.Now())
	assert.Empty(t, views[0].Err)
	assert.Equal(t, mutation.PhaseIdle, f.exec.State(MutationName(domain.SourceCloudMonitor, "42")).Phase)
}

func TestEditor_RejectsUnknownStatus(t *testing.T) {
	f := setupFixture(t)

	err := f.editor.Change(context.Background(), "42", "closed")

	assert.Error(t, err)
	assert.Empty(t, f.patches)
}

func TestEditor_SecondChangeWhilePendingKeepsFirstSelection(t *testing.T) {
	cache := query.New(context.Background(), query.Options{})
	t.Cleanup(cache.Close)
	require.NoError(t, cache.Register(key, func(context.Context) (any, error) {
		return []domain.Finding{{ID: "42", Severity: domain.SeverityHigh, Status: domain.StatusOpen}}, nil
	}))
	_, err := cache.Fetch(context.Background(), key)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var patches atomic.Int32
	editor := NewEditor(domain.SourceCloudMonitor, key, mutation.NewExecutor(cache, mutation.Options{}),
		func(context.Context, string, domain.Status) error {
			patches.Add(1)
			close(started)
			<-release
			return nil
		})

	done := make(chan error, 1)
	go func() { done <- editor.Change(context.Background(), "42", "resolved") }()
	<-started

	err = editor.Change(context.Background(), "42", "false_positive")
	assert.ErrorIs(t, err, mutation.ErrInFlight)

	views := editor.Apply(cache.Get(key).Data.([]domain.Finding), cache.Get(key).UpdatedAt)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusResolved, views[0].Selected)
	assert.True(t, views[0].Pending)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), patches.Load())
}
