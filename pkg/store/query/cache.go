package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 15 * time.Second

var (
	ErrClosed     = errors.New("query cache is closed")
	ErrUnknownKey = errors.New("query key is not registered")
)

type Key string

type FetchFunc func(ctx context.Context) (any, error)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a point-in-time copy of a cache entry.
type State struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
	Stale     bool
	Fetching  bool
}

// HasData is false until the first successful fetch.
func (s State) HasData() bool {
	return !s.UpdatedAt.IsZero()
}

// Loading reports a fetch in progress with nothing to show yet.
func (s State) Loading() bool {
	return !s.HasData() && s.Err == nil
}

type Listener func(State)

type Options struct {
	FetchTimeout time.Duration
}

type entry struct {
	fetch     FetchFunc
	state     State
	observers map[int]Listener

	// gen is bumped by every invalidation. A flight started at an older gen
	// produces stale data.
	gen       uint64
	inflight  bool
	flightKey string
	flightGen uint64
	waiters   int
	cancel    context.CancelFunc
}

// Cache holds the latest successful result per key and re-fetches keys that
// are invalidated while a view observes them.
type Cache struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	group  singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	nextID  int
	flights uint64
	closed  bool
}

// New creates a cache whose fetches live no longer than ctx. The logger in
// ctx is used for fetch failures.
func New(ctx context.Context, opts Options) *Cache {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Cache{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		entries: make(map[Key]*entry),
	}
}

func (c *Cache) Register(key Key, fetch FetchFunc) error {
	if key == "" {
		return fmt.Errorf("query key cannot be empty")
	}
	if fetch == nil {
		return fmt.Errorf("fetch func for %q cannot be nil", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, exists := c.entries[key]; exists {
		return fmt.Errorf("query key %q is already registered", key)
	}
	c.entries[key] = &entry{
		fetch:     fetch,
		state:     State{Key: key},
		observers: make(map[int]Listener),
	}
	return nil
}

func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (c *Cache) Get(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return State{Key: key}
}

// Fetch returns the cached data when it is fresh and fetches it otherwise.
// Callers asking for the same key at the same time share one request.
func (c *Cache) Fetch(ctx context.Context, key Key) (any, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		e, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		if e.state.HasData() && !e.state.Stale && !e.inflight {
			data := e.state.Data
			c.mu.Unlock()
			return data, nil
		}

		started := !e.inflight
		ch, flightGen := c.startLocked(key, e)
		e.waiters++
		c.mu.Unlock()
		if started {
			c.notify(key)
		}

		select {
		case res := <-ch:
			c.mu.Lock()
			e.waiters--
			stale := e.gen != flightGen
			closed := c.closed
			c.mu.Unlock()
			if res.Err != nil {
				// Joined a flight that was being abandoned; start over.
				if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && !closed {
					continue
				}
				return nil, res.Err
			}
			if stale {
				continue
			}
			return res.Val, nil
		case <-ctx.Done():
			c.mu.Lock()
			e.waiters--
			c.abandonLocked(e)
			c.mu.Unlock()
			return nil, ctx.Err()
		}
	}
}

// Subscribe registers an observer for key. The listener is called with the
// current state right away and after every change. Subscribing to a key with
// no data, or stale data, starts a background fetch.
func (c *Cache) Subscribe(key Key, l Listener) (func(), error) {
	if l == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	id := c.nextID
	c.nextID++
	e.observers[id] = l
	state := e.state
	needsFetch := (!state.HasData() || state.Stale) && !e.inflight
	c.mu.Unlock()

	l(state)
	if needsFetch {
		c.mu.Lock()
		if !c.closed && !e.inflight && (!e.state.HasData() || e.state.Stale) {
			c.startLocked(key, e)
		}
		c.mu.Unlock()
		c.notify(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.observers, id)
			c.abandonLocked(e)
		})
	}, nil
}

// Invalidate marks keys stale. Observed keys are re-fetched in the background
// right away; the others on their next Fetch.
func (c *Cache) Invalidate(keys ...Key) {
	logger := zerolog.Ctx(c.ctx)

	for _, key := range keys {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		e, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			logger.Debug().Str("key", string(key)).Msg("invalidate on unregistered query key")
			continue
		}
		e.gen++
		e.state.Stale = true
		// An in-flight fetch notices the new gen when it completes.
		if len(e.observers) > 0 && !e.inflight {
			c.startLocked(key, e)
		}
		c.mu.Unlock()
		c.notify(key)
	}
}

// Close cancels in-flight fetches and evicts every entry.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.entries = make(map[Key]*entry)
}

func (c *Cache) startLocked(key Key, e *entry) (<-chan singleflight.Result, uint64) {
	if e.inflight {
		return c.group.DoChan(e.flightKey, func() (any, error) {
			return nil, fmt.Errorf("flight %s already finished", e.flightKey)
		}), e.flightGen
	}

	c.flights++
	flightKey := string(key) + "#" + strconv.FormatUint(c.flights, 10)
	fctx, cancel := context.WithTimeout(c.ctx, c.opts.FetchTimeout)

	e.inflight = true
	e.flightKey = flightKey
	e.flightGen = e.gen
	e.cancel = cancel
	e.state.Fetching = true
	if !e.state.HasData() {
		e.state.Status = StatusLoading
	}

	gen := e.gen
	fetch := e.fetch
	ch := c.group.DoChan(flightKey, func() (any, error) {
		defer cancel()
		val, err := fetch(fctx)
		c.complete(key, e, gen, val, err)
		return val, err
	})
	return ch, gen
}

func (c *Cache) complete(key Key, e *entry, gen uint64, val any, err error) {
	logger := zerolog.Ctx(c.ctx)

	c.mu.Lock()
	e.inflight = false
	e.cancel = nil
	e.state.Fetching = false
	if c.closed {
		c.mu.Unlock()
		return
	}

	switch {
	case err != nil && errors.Is(err, context.Canceled) && c.ctx.Err() == nil:
		// Abandoned because nobody observes the key any more.
		if e.state.HasData() {
			e.state.Status = StatusSuccess
		} else {
			e.state.Status = StatusIdle
		}
	case err != nil:
		logger.Warn().Err(err).Str("key", string(key)).Msg("query fetch failed")
		e.state.Status = StatusError
		e.state.Err = err
	default:
		e.state.Status = StatusSuccess
		e.state.Data = val
		e.state.Err = nil
		e.state.UpdatedAt = time.Now()
		e.state.Stale = e.gen != gen
	}

	if e.gen != gen && len(e.observers) > 0 {
		c.startLocked(key, e)
	}
	c.mu.Unlock()
	c.notify(key)
}

// abandonLocked cancels a flight nobody is interested in any more.
func (c *Cache) abandonLocked(e *entry) {
	if e.inflight && e.waiters == 0 && len(e.observers) == 0 && e.cancel != nil {
		e.cancel()
	}
}

func (c *Cache) notify(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	state := e.state
	ids := make([]int, 0, len(e.observers))
	for id := range e.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.observers[id])
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}
