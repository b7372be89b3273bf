package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type countingFetcher struct {
	calls atomic.Int32
	next  func(call int32) (any, error)
}

func (f *countingFetcher) fetch(ctx context.Context) (any, error) {
	call := f.calls.Add(1)
	return f.next(call)
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c := New(context.Background(), Options{FetchTimeout: time.Second})
	t.Cleanup(c.Close)
	return c
}

func TestCache_RegisterErrors(t *testing.T) {
	c := newCache(t)

	assert.Error(t, c.Register("", func(context.Context) (any, error) { return nil, nil }))
	assert.Error(t, c.Register("repos", nil))
	require.NoError(t, c.Register("repos", func(context.Context) (any, error) { return nil, nil }))
	assert.Error(t, c.Register("repos", func(context.Context) (any, error) { return nil, nil }))
	assert.Equal(t, []Key{"repos"}, c.Keys())
}

func TestCache_FetchCachesResult(t *testing.T) {
	c := newCache(t)
	f := &countingFetcher{next: func(call int32) (any, error) { return []string{"acme/app"}, nil }}
	require.NoError(t, c.Register("repos", f.fetch))

	before := c.Get("repos")
	assert.False(t, before.HasData())
	assert.True(t, before.Loading())

	v1, err := FetchAs[[]string](context.Background(), c, "repos")
	require.NoError(t, err)
	v2, err := FetchAs[[]string](context.Background(), c, "repos")
	require.NoError(t, err)

	assert.Equal(t, []string{"acme/app"}, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), f.calls.Load())

	state := c.Get("repos")
	assert.Equal(t, StatusSuccess, state.Status)
	data, ok := Data[[]string](state)
	assert.True(t, ok)
	assert.Equal(t, v1, data)
}

func TestCache_FetchDeduplicatesConcurrentCallers(t *testing.T) {
	c := newCache(t)
	release := make(chan struct{})
	f := &countingFetcher{next: func(call int32) (any, error) {
		<-release
		return int(call), nil
	}}
	require.NoError(t, c.Register("findings", f.fetch))

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), "findings")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.entries["findings"].waiters == callers
	}, waitFor, tick)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Equal(t, 1, r)
	}
}

func TestCache_InvalidateUnobservedKeyRefetchesLazily(t *testing.T) {
	c := newCache(t)
	f := &countingFetcher{next: func(call int32) (any, error) { return int(call), nil }}
	require.NoError(t, c.Register("accounts", f.fetch))

	_, err := c.Fetch(context.Background(), "accounts")
	require.NoError(t, err)

	c.Invalidate("accounts")

	assert.True(t, c.Get("accounts").Stale)
	assert.Equal(t, int32(1), f.calls.Load(), "no observer, no background fetch")

	v, err := c.Fetch(context.Background(), "accounts")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.False(t, c.Get("accounts").Stale)
}

func TestCache_InvalidateObservedKeyRefetchesInBackground(t *testing.T) {
	c := newCache(t)
	f := &countingFetcher{next: func(call int32) (any, error) { return int(call), nil }}
	require.NoError(t, c.Register("dashboard", f.fetch))

	var mu sync.Mutex
	var seen []State
	unsubscribe, err := c.Subscribe("dashboard", func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})
	require.NoError(t, err)
	defer unsubscribe()

	latest := func() State {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1]
	}

	require.Eventually(t, func() bool {
		s := latest()
		return s.Status == StatusSuccess && s.Data == 1
	}, waitFor, tick)

	c.Invalidate("dashboard")

	require.Eventually(t, func() bool {
		s := latest()
		return s.Status == StatusSuccess && s.Data == 2 && !s.Stale
	}, waitFor, tick)
	assert.Equal(t, int32(2), f.calls.Load())

	mu.Lock()
	first := seen[0]
	mu.Unlock()
	assert.False(t, first.HasData(), "first notification never carries placeholder data")
}

func TestCache_InvalidateDuringFlightFetchesAgain(t *testing.T) {
	c := newCache(t)
	gate := make(chan struct{})
	f := &countingFetcher{next: func(call int32) (any, error) {
		if call == 1 {
			<-gate
		}
		return int(call), nil
	}}
	require.NoError(t, c.Register("findings", f.fetch))

	done := make(chan any)
	go func() {
		v, err := c.Fetch(context.Background(), "findings")
		assert.NoError(t, err)
		done <- v
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, waitFor, tick)
	c.Invalidate("findings")
	close(gate)

	select {
	case v := <-done:
		assert.Equal(t, 2, v, "caller gets data fetched after the invalidation")
	case <-time.After(waitFor):
		t.Fatal("fetch did not return")
	}
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_ErrorKeepsPreviousData(t *testing.T) {
	c := newCache(t)
	boom := errors.New("backend down")
	f := &countingFetcher{next: func(call int32) (any, error) {
		if call == 2 {
			return nil, boom
		}
		return "v1", nil
	}}
	require.NoError(t, c.Register("repos", f.fetch))

	_, err := c.Fetch(context.Background(), "repos")
	require.NoError(t, err)

	c.Invalidate("repos")
	_, err = c.Fetch(context.Background(), "repos")
	require.ErrorIs(t, err, boom)

	state := c.Get("repos")
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "v1", state.Data)
	assert.True(t, state.HasData())
	assert.ErrorIs(t, state.Err, boom)
}

func TestCache_UnsubscribeCancelsAbandonedFetch(t *testing.T) {
	c := newCache(t)
	cancelled := make(chan struct{})
	require.NoError(t, c.Register("cloud-findings", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}))

	unsubscribe, err := c.Subscribe("cloud-findings", func(State) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Get("cloud-findings").Fetching }, waitFor, tick)

	unsubscribe()

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("fetch was not cancelled after the last observer left")
	}
	require.Eventually(t, func() bool {
		s := c.Get("cloud-findings")
		return !s.Fetching && s.Status == StatusIdle && s.Err == nil
	}, waitFor, tick)
}

func TestCache_FetchTimeout(t *testing.T) {
	c := New(context.Background(), Options{FetchTimeout: 20 * time.Millisecond})
	defer c.Close()
	require.NoError(t, c.Register("slow", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	_, err := c.Fetch(context.Background(), "slow")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusError, c.Get("slow").Status)
}

func TestCache_UnknownKeyAndClose(t *testing.T) {
	c := New(context.Background(), Options{})

	_, err := c.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = c.Subscribe("nope", func(State) {})
	assert.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, c.Register("repos", func(context.Context) (any, error) { return 1, nil }))
	c.Close()

	_, err = c.Fetch(context.Background(), "repos")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, c.Keys())
	c.Invalidate("repos")
}
