// Package refresh implements "command then invalidate": every mutating call
// returns its value together with the collections that must be reloaded.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Collection string

const (
	Agents         Collection = "agents"
	Campaigns      Collection = "campaigns"
	AgentCampaigns Collection = "agent-campaigns"
	Assignments    Collection = "assignments"
	PoolStats      Collection = "pool-stats"
	Batches        Collection = "batches"
	AgentBatches   Collection = "agent-batches"
	TodayProgress  Collection = "today-progress"
	AgentStatuses  Collection = "agent-statuses"
	Dashboard      Collection = "dashboard"
)

type Result[T any] struct {
	Value   T
	Refresh []Collection
}

func Invalidate[T any](value T, collections ...Collection) Result[T] {
	return Result[T]{Value: value, Refresh: collections}
}

type Loader func(ctx context.Context) error

// Refresher reloads collections after a successful mutation. Collections
// without a loader are ignored; a view only reloads what it displays.
type Refresher struct {
	mu      sync.Mutex
	loaders map[Collection]Loader
}

func NewRefresher() *Refresher {
	return &Refresher{loaders: map[Collection]Loader{}}
}

func (r *Refresher) On(c Collection, fn Loader) *Refresher {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[c] = fn
	return r
}

// Apply runs the loader of each listed collection once, in order. A failed
// reload does not stop the others.
func (r *Refresher) Apply(ctx context.Context, collections []Collection) error {
	r.mu.Lock()
	loaders := make(map[Collection]Loader, len(r.loaders))
	for c, fn := range r.loaders {
		loaders[c] = fn
	}
	r.mu.Unlock()

	seen := make(map[Collection]bool, len(collections))
	var errs []error
	for _, c := range collections {
		if seen[c] {
			continue
		}
		seen[c] = true

		fn, ok := loaders[c]
		if !ok {
			continue
		}
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reload %s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}
