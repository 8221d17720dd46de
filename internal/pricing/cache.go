package pricing

import (
	"sync"
	"time"
)

// Clock supplies the current time. Injectable so staleness and dedupe are
// testable without a real timer.
type Clock func() time.Time

// State is the lifecycle of one derived value per cache key.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateError
)

type action int

const (
	actionServe action = iota
	actionPending
	actionFetch
	actionError
)

type decision[T any] struct {
	action     action
	value      T
	err        error
	generation uint64
	// refresh asks the caller to revalidate in the background while the
	// stale value is still served.
	refresh bool
}

type entry[T any] struct {
	state      State
	value      T
	hasValue   bool
	err        error
	fetchedAt  time.Time
	generation uint64
}

// keyedCache is an explicit keyed cache: value, fetch time and state per key,
// with a freshness window, a hard expiry, in-flight dedupe and
// generation-checked commits so a response that no longer corresponds to the
// current key is discarded instead of applied.
type keyedCache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	clock   Clock
	fresh   time.Duration
	expire  time.Duration
}

func newKeyedCache[T any](clock Clock, fresh, expire time.Duration) *keyedCache[T] {
	if clock == nil {
		clock = time.Now
	}
	if expire < fresh {
		expire = fresh
	}
	return &keyedCache[T]{
		entries: make(map[string]*entry[T]),
		clock:   clock,
		fresh:   fresh,
		expire:  expire,
	}
}

// begin inspects the entry for key and decides what the caller must do:
// serve the cached value, report an in-flight fetch, surface a terminal
// error, or perform the fetch itself. At most one fetch per key is ever
// granted at a time; concurrent callers for the same key coalesce.
func (c *keyedCache[T]) begin(key string) decision[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}

	switch e.state {
	case StateFetching:
		if e.hasValue {
			return decision[T]{action: actionServe, value: e.value}
		}
		return decision[T]{action: actionPending}

	case StateError:
		// Terminal for this key until inputs change: no silent retry.
		return decision[T]{action: actionError, err: e.err}

	case StateReady:
		age := c.clock().Sub(e.fetchedAt)
		if age <= c.fresh {
			return decision[T]{action: actionServe, value: e.value}
		}
		e.generation++
		e.state = StateFetching
		if age <= c.expire {
			return decision[T]{action: actionServe, value: e.value, generation: e.generation, refresh: true}
		}
		e.hasValue = false
		return decision[T]{action: actionFetch, generation: e.generation}

	default: // StateIdle
		e.generation++
		e.state = StateFetching
		return decision[T]{action: actionFetch, generation: e.generation}
	}
}

// commit applies a fetch outcome. The write is dropped when the entry's
// generation moved on, so a late response never lands under a changed key.
func (c *keyedCache[T]) commit(key string, generation uint64, value T, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.generation != generation || e.state != StateFetching {
		return false
	}

	if err != nil {
		e.state = StateError
		e.err = err
		e.hasValue = false
		return true
	}

	e.state = StateReady
	e.value = value
	e.hasValue = true
	e.err = nil
	e.fetchedAt = c.clock()
	return true
}

// invalidate resets the entry to Idle and bumps the generation so any
// outstanding fetch for the old inputs is discarded on arrival.
func (c *keyedCache[T]) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.generation++
	e.state = StateIdle
	e.hasValue = false
	e.err = nil
}

// invalidateAll resets every entry.
func (c *keyedCache[T]) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.generation++
		e.state = StateIdle
		e.hasValue = false
		e.err = nil
	}
}

// state returns the lifecycle state for a key, Idle when unknown.
func (c *keyedCache[T]) state(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return StateIdle
	}
	return e.state
}
