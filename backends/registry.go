// Package backends constructs and caches the heavy processing backends.
// Each backend is built at most once per process; concurrent first callers
// wait for the single in-flight construction instead of racing to duplicate
// it. A failed construction is not cached, so a later call can retry.
package backends

import (
	"sync"
)

type entryState int

const (
	stateLoading entryState = iota
	stateLoaded
)

type entry struct {
	state entryState
	ready chan struct{}
	value interface{}
	err   error
}

// Registry is a keyed single-flight cache of backend instances.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Get returns the cached instance for key, building it with build on first
// use. Build runs without the registry lock held; callers arriving during a
// build block until it settles.
func (r *Registry) Get(key string, build func() (interface{}, error)) (interface{}, error) {
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		r.mu.Unlock()
		<-e.ready
		return e.value, e.err
	}

	e := &entry{state: stateLoading, ready: make(chan struct{})}
	r.entries[key] = e
	r.mu.Unlock()

	e.value, e.err = build()
	e.state = stateLoaded
	close(e.ready)

	if e.err != nil {
		// Drop the failed entry so the next caller retries the build.
		r.mu.Lock()
		if r.entries[key] == e {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}

	return e.value, e.err
}
