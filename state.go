package navkit

import (
	"context"
	"reflect"
	"sync"
)

// defaultMaxEntries is the clamp bound used when neither the adapter nor an
// EngineOption specifies one (spec §4.5).
const defaultMaxEntries = 50

// NavigationState is the value object C2 owns: the ordered entries, the
// index of the current entry, and the in-flight transition, if any.
type NavigationState struct {
	Entries    []Destination
	Index      int
	Transition *TransitionEvent
}

func clampState(s NavigationState, maxEntries int) NavigationState {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if len(s.Entries) == 0 {
		return s
	}
	if len(s.Entries) > maxEntries {
		drop := len(s.Entries) - maxEntries
		trimmed := make([]Destination, maxEntries)
		copy(trimmed, s.Entries[drop:])
		s.Entries = trimmed
		s.Index -= drop
	}
	if s.Index < 0 {
		s.Index = 0
	}
	if s.Index > len(s.Entries)-1 {
		s.Index = len(s.Entries) - 1
	}
	return s
}

// projection holds a value derived from NavigationState, with a change
// stream: Subscribe's callback only fires when the computed value
// differs, by structural equivalence, from the last published value (spec
// §4.2). Values are computed eagerly by StateCell on every Set and cached;
// Value returns the cached value and computes nothing on read.
type projection[T any] struct {
	mu        sync.Mutex
	value     T
	hasValue  bool
	listeners map[uint64]func(T)
	nextID    uint64
}

func newProjection[T any]() *projection[T] {
	return &projection[T]{listeners: make(map[uint64]func(T))}
}

func (p *projection[T]) publish(v T) {
	p.mu.Lock()
	if p.hasValue && reflect.DeepEqual(p.value, v) {
		p.mu.Unlock()
		return
	}
	p.value = v
	p.hasValue = true
	fns := make([]func(T), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (p *projection[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Subscribe registers fn to run on every change and returns an unsubscribe
// function.
func (p *projection[T]) Subscribe(fn func(T)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// StateCell is the observable, atomically-updated container for C2's
// NavigationState (the teacher's per-session single-mutex discipline,
// generalized into an explicit FIFO ticket so concurrent operations
// linearize instead of merely excluding each other — see spec §5).
type StateCell struct {
	mu         sync.RWMutex
	state      NavigationState
	maxEntries int
	ticket     chan struct{}

	currentEntryProj *projection[Destination]
	entriesProj      *projection[[]Destination]
	canGoBackProj    *projection[bool]
	canGoForwardProj *projection[bool]
	transitionProj   *projection[*TransitionEvent]
}

// NewStateCell constructs a cell seeded with initial, clamped to maxEntries.
func NewStateCell(initial NavigationState, maxEntries int) *StateCell {
	c := &StateCell{
		maxEntries:       maxEntries,
		ticket:           make(chan struct{}, 1),
		currentEntryProj: newProjection[Destination](),
		entriesProj:      newProjection[[]Destination](),
		canGoBackProj:    newProjection[bool](),
		canGoForwardProj: newProjection[bool](),
		transitionProj:   newProjection[*TransitionEvent](),
	}
	c.ticket <- struct{}{}
	c.state = clampState(initial, c.effectiveMax())
	c.publish(c.state)
	return c
}

func (c *StateCell) effectiveMax() int {
	if c.maxEntries <= 0 {
		return defaultMaxEntries
	}
	return c.maxEntries
}

// Acquire blocks until the cell's FIFO ticket is available or ctx is done.
// Waiters are served in the order they arrive (Go channel semantics).
func (c *StateCell) Acquire(ctx context.Context) error {
	select {
	case <-c.ticket:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the ticket acquired by Acquire.
func (c *StateCell) Release() {
	c.ticket <- struct{}{}
}

// Get returns the current NavigationState. Safe to call at any time,
// including while another goroutine holds the ticket.
func (c *StateCell) Get() NavigationState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set stores ns (after clamping) and publishes to every projection whose
// computed value changed.
func (c *StateCell) Set(ns NavigationState) NavigationState {
	clamped := clampState(ns, c.effectiveMax())
	c.mu.Lock()
	c.state = clamped
	c.mu.Unlock()
	c.publish(clamped)
	return clamped
}

func (c *StateCell) publish(s NavigationState) {
	if len(s.Entries) == 0 {
		return
	}
	c.currentEntryProj.publish(s.Entries[s.Index])
	entries := make([]Destination, len(s.Entries))
	copy(entries, s.Entries)
	c.entriesProj.publish(entries)
	c.canGoBackProj.publish(s.Index > 0)
	c.canGoForwardProj.publish(s.Index < len(s.Entries)-1)
	c.transitionProj.publish(s.Transition)
}

// RunUpdates serializes access to the cell: the ticket is held for the
// entire duration of f, so no other RunUpdates call can interleave between
// the get that opens f and the set that closes it (spec §4.2). f is free to
// call get/set any number of times; only the final state as of f's return
// is retained.
func (c *StateCell) RunUpdates(ctx context.Context, f func(get func() NavigationState, set func(NavigationState))) error {
	if err := c.Acquire(ctx); err != nil {
		return err
	}
	defer c.Release()
	f(c.Get, c.Set)
	return nil
}
