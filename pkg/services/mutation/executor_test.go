package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/secboard/pkg/store/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(keys ...query.Key) {
	m.Called(keys)
}

func TestExecutor_SuccessInvalidatesDeclaredKeysThenCallsOnSuccess(t *testing.T) {
	inv := new(mockInvalidator)
	var order []string
	inv.On("Invalidate", []query.Key{"cloud-findings", "cloud-accounts"}).
		Run(func(mock.Arguments) { order = append(order, "invalidate") }).
		Once()
	exec := NewExecutor(inv, Options{})

	res := exec.Execute(context.Background(), Mutation{
		Name:        "sync:1",
		Do:          func(context.Context) (any, error) { return "ack", nil },
		Invalidates: []query.Key{"cloud-findings", "cloud-accounts"},
		OnSuccess:   func(any) { order = append(order, "on-success") },
	})

	require.NoError(t, res.Err)
	assert.Equal(t, "ack", res.Value)
	assert.Equal(t, []string{"invalidate", "on-success"}, order)
	inv.AssertExpectations(t)

	st := exec.State("sync:1")
	assert.Equal(t, PhaseSucceeded, st.Phase)
	assert.False(t, st.Pending())
	assert.False(t, st.FinishedAt.IsZero())
}

func TestExecutor_FailureKeepsErrorAndSkipsInvalidation(t *testing.T) {
	inv := new(mockInvalidator)
	exec := NewExecutor(inv, Options{})
	boom := errors.New("403 forbidden")

	var gotErr error
	successCalled := false
	res := exec.Execute(context.Background(), Mutation{
		Name:        "add-repository",
		Do:          func(context.Context) (any, error) { return nil, boom },
		Invalidates: []query.Key{"attack-surface-repos"},
		OnSuccess:   func(any) { successCalled = true },
		OnError:     func(err error) { gotErr = err },
	})

	assert.ErrorIs(t, res.Err, boom)
	assert.ErrorIs(t, gotErr, boom)
	assert.False(t, successCalled)
	inv.AssertNotCalled(t, "Invalidate", mock.Anything)

	st := exec.State("add-repository")
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.ErrorIs(t, st.Err, boom)

	exec.Reset("add-repository")
	assert.Equal(t, PhaseIdle, exec.State("add-repository").Phase)
}

func TestExecutor_RejectsConcurrentRunOfSameMutation(t *testing.T) {
	exec := NewExecutor(nil, Options{})
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		exec.Execute(context.Background(), Mutation{
			Name: "scan:7",
			Do: func(context.Context) (any, error) {
				close(started)
				<-release
				return nil, nil
			},
		})
	}()
	<-started

	assert.True(t, exec.State("scan:7").Pending())
	res := exec.Execute(context.Background(), Mutation{
		Name: "scan:7",
		Do:   func(context.Context) (any, error) { return nil, nil },
	})
	assert.ErrorIs(t, res.Err, ErrInFlight)

	close(release)
	wg.Wait()
	assert.Equal(t, PhaseSucceeded, exec.State("scan:7").Phase)
}

func TestExecutor_Timeouts(t *testing.T) {
	exec := NewExecutor(nil, Options{Timeout: 10 * time.Millisecond, LongTimeout: time.Hour})

	deadlineOf := func(m Mutation) time.Duration {
		var remaining time.Duration
		m.Do = func(ctx context.Context) (any, error) {
			dl, ok := ctx.Deadline()
			require.True(t, ok)
			remaining = time.Until(dl)
			return nil, nil
		}
		exec.Execute(context.Background(), m)
		return remaining
	}

	assert.LessOrEqual(t, deadlineOf(Mutation{Name: "short"}), 10*time.Millisecond)
	assert.Greater(t, deadlineOf(Mutation{Name: "long", Long: true}), time.Minute)
	assert.Greater(t, deadlineOf(Mutation{Name: "explicit", Long: true, Timeout: 3 * time.Hour}), 2*time.Hour)

	res := exec.Execute(context.Background(), Mutation{
		Name: "slow",
		Do: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestExecutor_NotifiesListeners(t *testing.T) {
	exec := NewExecutor(nil, Options{})
	var phases []Phase
	unsubscribe := exec.Subscribe(func(name string, s Status) {
		if name == "status:cloud_monitor:42" {
			phases = append(phases, s.Phase)
		}
	})

	exec.Execute(context.Background(), Mutation{
		Name: "status:cloud_monitor:42",
		Do:   func(context.Context) (any, error) { return nil, nil },
	})
	unsubscribe()
	exec.Execute(context.Background(), Mutation{
		Name: "status:cloud_monitor:42",
		Do:   func(context.Context) (any, error) { return nil, nil },
	})

	assert.Equal(t, []Phase{PhasePending, PhaseSucceeded}, phases)
}

func TestExecutor_InvalidMutation(t *testing.T) {
	exec := NewExecutor(nil, Options{})

	assert.Error(t, exec.Execute(context.Background(), Mutation{Do: func(context.Context) (any, error) { return nil, nil }}).Err)
	assert.Error(t, exec.Execute(context.Background(), Mutation{Name: "x"}).Err)
}
