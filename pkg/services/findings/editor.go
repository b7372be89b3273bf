package findings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/services/mutation"
	"github.com/de-tools/secboard/pkg/store/query"
)

// UpdateFunc sends one status change for one finding to the backend.
type UpdateFunc func(ctx context.Context, id string, status domain.Status) error

type overlay struct {
	seq         uint64
	status      domain.Status
	pending     bool
	confirmedAt time.Time
}

// Editor drives the status control of a findings list. A change is shown
// right away, sent as a single PATCH and only invalidates the findings query
// once the backend accepted it. A rejected change is rolled back and its error
// kept for display next to the finding.
type Editor struct {
	source domain.Source
	key    query.Key
	exec   *mutation.Executor
	update UpdateFunc

	mu       sync.Mutex
	seq      uint64
	overlays map[string]overlay
	errs     map[string]string
}

func NewEditor(source domain.Source, key query.Key, exec *mutation.Executor, update UpdateFunc) *Editor {
	return &Editor{
		source:   source,
		key:      key,
		exec:     exec,
		update:   update,
		overlays: make(map[string]overlay),
		errs:     make(map[string]string),
	}
}

func MutationName(source domain.Source, findingID string) string {
	return fmt.Sprintf("status:%s:%s", source, findingID)
}

func (e *Editor) Change(ctx context.Context, findingID, rawStatus string) error {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return err
	}

	name := MutationName(e.source, findingID)

	e.mu.Lock()
	if o, ok := e.overlays[findingID]; ok && o.pending {
		e.mu.Unlock()
		return fmt.Errorf("%s: %w", name, mutation.ErrInFlight)
	}
	e.seq++
	seq := e.seq
	e.overlays[findingID] = overlay{seq: seq, status: status, pending: true}
	delete(e.errs, findingID)
	e.mu.Unlock()

	res := e.exec.Execute(ctx, mutation.Mutation{
		Name: name,
		Do: func(ctx context.Context) (any, error) {
			if err := e.update(ctx, findingID, status); err != nil {
				return nil, err
			}
			// Recorded before the executor invalidates the findings query.
			e.mu.Lock()
			e.overlays[findingID] = overlay{seq: seq, status: status, confirmedAt: time.Now()}
			e.mu.Unlock()
			return status, nil
		},
		Invalidates: []query.Key{e.key},
		OnError: func(err error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.dropLocked(findingID, seq)
			e.errs[findingID] = err.Error()
		},
	})
	if errors.Is(res.Err, mutation.ErrInFlight) {
		e.mu.Lock()
		e.dropLocked(findingID, seq)
		e.mu.Unlock()
	}
	return res.Err
}

// dropLocked removes the overlay only while it still belongs to change seq.
func (e *Editor) dropLocked(findingID string, seq uint64) {
	if o, ok := e.overlays[findingID]; ok && o.seq == seq {
		delete(e.overlays, findingID)
	}
}

func (e *Editor) DismissError(findingID string) {
	e.mu.Lock()
	delete(e.errs, findingID)
	e.mu.Unlock()
	e.exec.Reset(MutationName(e.source, findingID))
}

// Apply merges pending and confirmed changes into findings fetched at
// fetchedAt. A confirmed change is dropped once data fetched after it shows up.
func (e *Editor) Apply(items []domain.Finding, fetchedAt time.Time) []FindingView {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := make([]FindingView, 0, len(items))
	for _, f := range items {
		selected := f.Status
		pending := false
		if o, ok := e.overlays[f.ID]; ok {
			if !o.pending && !o.confirmedAt.IsZero() && fetchedAt.After(o.confirmedAt) {
				delete(e.overlays, f.ID)
			} else {
				selected = o.status
				pending = o.pending
			}
		}
		res = append(res, newFindingView(f, selected, pending, e.errs[f.ID]))
	}
	return res
}
