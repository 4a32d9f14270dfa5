package mint

import (
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

// Follower consumes the event stream of a workflow until it is closed.
type Follower interface {
	Follow(events <-chan Event)
}

// RegistryOptions configure a Registry. Every workflow it creates shares the
// same clients.
type RegistryOptions struct {
	Generator ImageGenerator
	Store     ContentStore
	Minter    Minter
	Payment   *big.Int
	Followers []Follower
	// MaxWorkflows bounds the number of live workflows; 0 means unbounded.
	MaxWorkflows int
	Logger       *infra.Logger
}

// ErrRegistryFull is returned by Create when MaxWorkflows is reached.
var ErrRegistryFull = errors.New("too many active workflows")

// Registry owns the live workflows of the service, keyed by id.
type Registry struct {
	opts   RegistryOptions
	logger *infra.Logger

	mu    sync.RWMutex
	items map[string]*Workflow
}

func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Generator == nil || opts.Store == nil || opts.Minter == nil {
		return nil, errors.New("mint: generator, store and minter are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Registry{opts: opts, logger: logger, items: make(map[string]*Workflow)}, nil
}

// Create starts a new idle workflow and attaches the configured followers.
func (r *Registry) Create() (*Workflow, error) {
	r.mu.Lock()
	if r.opts.MaxWorkflows > 0 && len(r.items) >= r.opts.MaxWorkflows {
		r.mu.Unlock()
		return nil, ErrRegistryFull
	}
	wf, err := New(Options{
		ID:        uuid.NewString(),
		Generator: r.opts.Generator,
		Store:     r.opts.Store,
		Minter:    r.opts.Minter,
		Payment:   r.opts.Payment,
		Logger:    r.logger,
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.items[wf.ID()] = wf
	r.mu.Unlock()

	for _, f := range r.opts.Followers {
		events, _ := wf.Subscribe()
		go f.Follow(events)
	}
	r.logger.Debug().Str("workflow_id", wf.ID()).Msg("mint: workflow created")
	return wf, nil
}

// Get returns the workflow with id or domain.ErrNotFound.
func (r *Registry) Get(id string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return wf, nil
}

// Delete closes and forgets a workflow.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	wf, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	wf.Close()
	return nil
}

// Len reports the number of live workflows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Prune closes workflows that have no call running and have not changed
// since before the cutoff. It returns the number removed.
func (r *Registry) Prune(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)
	r.mu.Lock()
	var stale []*Workflow
	for id, wf := range r.items {
		snap := wf.Snapshot()
		if wf.Busy() || snap.UpdatedAt.After(cutoff) {
			continue
		}
		stale = append(stale, wf)
		delete(r.items, id)
	}
	r.mu.Unlock()

	for _, wf := range stale {
		wf.Close()
	}
	if len(stale) > 0 {
		r.logger.Info().Int("count", len(stale)).Msg("mint: pruned idle workflows")
	}
	return len(stale)
}

// List returns snapshots of all live workflows, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.items))
	for _, wf := range r.items {
		out = append(out, wf.Snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Close shuts every workflow down and waits for their calls to return.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workflow)
	r.mu.Unlock()
	for _, wf := range items {
		wf.Close()
	}
	for _, wf := range items {
		wf.Wait()
	}
}
