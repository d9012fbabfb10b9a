package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/store"
	"github.com/matzehuels/sightline/pkg/visibility"
)

// Registry holds one attached adapter per stored scene. Adapters are built
// on first use, so scenes stored by another instance or before a restart
// are attached lazily.
type Registry struct {
	runner *pipeline.Runner
	opts   pipeline.Options
	logger *log.Logger

	mu       sync.Mutex
	adapters map[string]*entry
}

// entry guards a single build so concurrent first queries for the same
// scene wait for one triangulation instead of building several.
type entry struct {
	once    sync.Once
	adapter *visibility.Adapter
	err     error
}

// release detaches the adapter once any build in progress has finished.
// An entry released before its build starts never builds, and callers
// waiting on it get DETACHED.
func (e *entry) release() {
	e.once.Do(func() {
		e.err = errors.New(errors.ErrCodeDetached, "scene was removed")
	})
	if e.adapter != nil {
		e.adapter.Detach()
	}
}

// NewRegistry creates an empty registry. Adapters are built with the step
// limit from opts.
func NewRegistry(runner *pipeline.Runner, opts pipeline.Options, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		runner:   runner,
		opts:     opts,
		logger:   logger,
		adapters: make(map[string]*entry),
	}
}

// Acquire returns the adapter for rec, attaching the scene if needed.
// A failed build is not remembered; the next call tries again.
func (g *Registry) Acquire(ctx context.Context, rec *store.Record) (*visibility.Adapter, error) {
	g.mu.Lock()
	e, ok := g.adapters[rec.ID]
	if !ok {
		e = &entry{}
		g.adapters[rec.ID] = e
	}
	g.mu.Unlock()

	e.once.Do(func() {
		e.adapter, e.err = g.runner.Attach(ctx, rec.Scene.Arrangement(), rec.Fingerprint, g.opts)
		if e.err == nil {
			g.logger.Debug("attached scene", "id", rec.ID, "fingerprint", rec.Fingerprint[:12])
		}
	})
	if e.err != nil {
		g.mu.Lock()
		if g.adapters[rec.ID] == e {
			delete(g.adapters, rec.ID)
		}
		g.mu.Unlock()
		return nil, e.err
	}
	return e.adapter, nil
}

// Remove detaches and forgets the adapter for id. Queries still holding
// the adapter fail with DETACHED.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	e, ok := g.adapters[id]
	delete(g.adapters, id)
	g.mu.Unlock()
	if ok {
		e.release()
	}
}

// Len returns the number of attached scenes.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.adapters)
}

// Close detaches every adapter.
func (g *Registry) Close() {
	g.mu.Lock()
	entries := g.adapters
	g.adapters = make(map[string]*entry)
	g.mu.Unlock()
	for _, e := range entries {
		e.release()
	}
}
