package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/secboard/pkg/store/query"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultLongTimeout = 2 * time.Minute
)

var ErrInFlight = errors.New("mutation is already in flight")

// Invalidator is satisfied by *query.Cache.
type Invalidator interface {
	Invalidate(keys ...query.Key)
}

type Mutation struct {
	Name string
	Do   func(ctx context.Context) (any, error)
	// Invalidates is applied only once Do has succeeded.
	Invalidates []query.Key
	// Timeout overrides the executor default. Long selects the long-running
	// default used for scans and syncs.
	Timeout   time.Duration
	Long      bool
	OnSuccess func(value any)
	OnError   func(err error)
}

type Result struct {
	Value any
	Err   error
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Status struct {
	Phase      Phase
	Value      any
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s Status) Pending() bool {
	return s.Phase == PhasePending
}

type Listener func(name string, s Status)

type Options struct {
	Timeout     time.Duration
	LongTimeout time.Duration
}

// Executor runs writes against the backend and invalidates the queries they
// affect once the backend has confirmed them.
type Executor struct {
	cache Invalidator
	opts  Options

	mu        sync.Mutex
	states    map[string]Status
	listeners map[int]Listener
	nextID    int
}

func NewExecutor(cache Invalidator, opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.LongTimeout <= 0 {
		opts.LongTimeout = defaultLongTimeout
	}
	return &Executor{
		cache:     cache,
		opts:      opts,
		states:    make(map[string]Status),
		listeners: make(map[int]Listener),
	}
}

func (e *Executor) Execute(ctx context.Context, m Mutation) Result {
	if m.Name == "" {
		return Result{Err: fmt.Errorf("mutation name cannot be empty")}
	}
	if m.Do == nil {
		return Result{Err: fmt.Errorf("mutation %q has nothing to do", m.Name)}
	}

	logger := zerolog.Ctx(ctx).With().Str("mutation", m.Name).Logger()

	e.mu.Lock()
	if e.states[m.Name].Pending() {
		e.mu.Unlock()
		return Result{Err: fmt.Errorf("%s: %w", m.Name, ErrInFlight)}
	}
	e.states[m.Name] = Status{Phase: PhasePending, StartedAt: time.Now()}
	e.mu.Unlock()
	e.notify(m.Name)

	ctx, cancel := context.WithTimeout(ctx, e.timeout(m))
	defer cancel()

	value, err := m.Do(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("mutation failed")
		e.finish(m.Name, Status{Phase: PhaseFailed, Err: err})
		if m.OnError != nil {
			m.OnError(err)
		}
		e.notify(m.Name)
		return Result{Err: err}
	}

	if len(m.Invalidates) > 0 && e.cache != nil {
		e.cache.Invalidate(m.Invalidates...)
	}
	logger.Debug().Interface("invalidated", m.Invalidates).Msg("mutation succeeded")

	e.finish(m.Name, Status{Phase: PhaseSucceeded, Value: value})
	if m.OnSuccess != nil {
		m.OnSuccess(value)
	}
	e.notify(m.Name)
	return Result{Value: value}
}

func (e *Executor) State(name string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[name]
}

// Reset forgets a settled mutation, e.g. once its error has been dismissed.
// Pending mutations are left alone.
func (e *Executor) Reset(name string) {
	e.mu.Lock()
	if e.states[name].Pending() {
		e.mu.Unlock()
		return
	}
	delete(e.states, name)
	e.mu.Unlock()
	e.notify(name)
}

func (e *Executor) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners, id)
		})
	}
}

func (e *Executor) timeout(m Mutation) time.Duration {
	switch {
	case m.Timeout > 0:
		return m.Timeout
	case m.Long:
		return e.opts.LongTimeout
	default:
		return e.opts.Timeout
	}
}

func (e *Executor) finish(name string, s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s.StartedAt = e.states[name].StartedAt
	s.FinishedAt = time.Now()
	e.states[name] = s
}

func (e *Executor) notify(name string) {
	e.mu.Lock()
	status := e.states[name]
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(name, status)
	}
}
