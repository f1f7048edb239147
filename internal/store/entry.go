package store

import (
	"context"
	"time"
)

// entry is one cached value plus the bookkeeping that decides whether a
// settling fetch may overwrite it.
//
// Every fetch takes a generation number. A response is applied only when
// its generation is at or above cutoff and no optimistic mutation is
// pending. Mutations and invalidations raise cutoff past every fetch
// already in flight. A current response dropped only because a mutation
// was pending sets missed, and the entry must be resynced once the last
// mutation clears.
type entry[V any] struct {
	data      V
	ok        bool
	err       error
	fetchedAt time.Time
	stale     bool

	fetching   bool
	gen        uint64
	cutoff     uint64
	optimistic int
	missed     bool
	cancel     context.CancelFunc
}

// State is a read-only view of an entry for rendering.
type State[V any] struct {
	Data      V
	Cached    bool
	Err       error
	Fetching  bool
	Stale     bool
	UpdatedAt time.Time
}

func (e *entry[V]) state() State[V] {
	if e == nil {
		return State[V]{}
	}
	return State[V]{
		Data:      e.data,
		Cached:    e.ok,
		Err:       e.err,
		Fetching:  e.fetching,
		Stale:     e.stale,
		UpdatedAt: e.fetchedAt,
	}
}

// fresh reports whether the cached value can be served without a fetch.
// A zero ttl keeps values fresh until they are invalidated.
func (e *entry[V]) fresh(now time.Time, ttl time.Duration) bool {
	if !e.ok || e.stale {
		return false
	}
	return ttl <= 0 || now.Sub(e.fetchedAt) < ttl
}

// begin starts a fetch and returns its context and generation.
func (e *entry[V]) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	e.gen++
	e.cancel = cancel
	e.fetching = true
	return ctx, e.gen
}

// cancelInFlight aborts the running fetch and drops its eventual response.
func (e *entry[V]) cancelInFlight() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.fetching = false
	e.cutoff = e.gen + 1
}

// finish records the outcome of fetch gen and reports whether it was applied.
func (e *entry[V]) finish(gen uint64, data V, err error, now time.Time) bool {
	if gen == e.gen {
		e.fetching = false
		e.cancel = nil
	}
	if gen < e.cutoff {
		return false
	}
	if e.optimistic > 0 {
		e.missed = true
		return false
	}
	if err != nil {
		e.err = err
		return true
	}
	e.data = data
	e.ok = true
	e.err = nil
	e.fetchedAt = now
	e.stale = false
	e.missed = false
	return true
}

// settle returns what a caller waiting on fetch gen should see: its own
// result when applied, otherwise the value that won.
func (e *entry[V]) settle(applied bool, data V, err error) (V, error) {
	if applied {
		return data, err
	}
	if e.ok {
		return e.data, nil
	}
	var zero V
	return zero, ErrSuperseded
}
