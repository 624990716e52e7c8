package navkit

import (
	"context"
	"sync"
)

// DeferredEffect is the optional unit of work a before-handler returns
// instead of (or alongside) an error: "I don't object, but run this before
// the commit phase starts." A nil DeferredEffect means the handler
// abstained outright.
type DeferredEffect func(ctx context.Context) error

// BeforeHandler is evaluated against a proposed TransitionEvent. Returning
// a non-nil error that is not a *RedirectSignal or *CancelSignal is a
// programming error and surfaces as a NavigationError; returning one of
// those two aborts the transition via the corresponding branch (§4.4.3).
type BeforeHandler func(ctx context.Context, event TransitionEvent) (DeferredEffect, error)

// AfterEffect is the optional unit of work an after-handler returns.
// Collected AfterEffects run concurrently once every after-handler has
// been polled; their results are discarded.
type AfterEffect func(ctx context.Context)

// AfterHandler is evaluated against a committed NavigationEvent. It cannot
// fail the transition; a panic or the handler itself is the caller's
// responsibility to avoid, but the engine recovers and logs regardless.
type AfterHandler func(ctx context.Context, event NavigationEvent) AfterEffect

type beforeEntry struct {
	id      uint64
	handler BeforeHandler
}

type afterEntry struct {
	id      uint64
	handler AfterHandler
}

// Scope is returned by RegisterBefore/RegisterAfter. Release removes the
// registered handler; it is idempotent.
type Scope interface {
	Release()
}

type scopeFunc func()

func (f scopeFunc) Release() { f() }

// HandlerRegistry (C3) holds the engine's two ordered-insertion handler
// sets. Registration captures the caller's handler closure (which, being a
// Go closure, already captures whatever ambient context/services it needs
// — see DESIGN.md) and binds it to the returned Scope; releasing the scope
// removes exactly that entry.
//
// Iteration snapshots under the lock so concurrent registration during an
// in-progress iteration is never observed by that iteration (spec §4.3).
type HandlerRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	befores []beforeEntry
	afters  []afterEntry
}

// NewHandlerRegistry constructs an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// RegisterBefore appends h to the before-handler set in insertion order.
func (r *HandlerRegistry) RegisterBefore(h BeforeHandler) Scope {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.befores = append(r.befores, beforeEntry{id: id, handler: h})
	r.mu.Unlock()

	return scopeFunc(func() { r.removeBefore(id) })
}

// RegisterAfter appends h to the after-handler set in insertion order.
func (r *HandlerRegistry) RegisterAfter(h AfterHandler) Scope {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.afters = append(r.afters, afterEntry{id: id, handler: h})
	r.mu.Unlock()

	return scopeFunc(func() { r.removeAfter(id) })
}

func (r *HandlerRegistry) removeBefore(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.befores {
		if e.id == id {
			r.befores = append(r.befores[:i], r.befores[i+1:]...)
			return
		}
	}
}

func (r *HandlerRegistry) removeAfter(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.afters {
		if e.id == id {
			r.afters = append(r.afters[:i], r.afters[i+1:]...)
			return
		}
	}
}

// SnapshotBefore returns a copy of the current before-handler slice, safe
// to range over while registration proceeds concurrently.
func (r *HandlerRegistry) SnapshotBefore() []BeforeHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BeforeHandler, len(r.befores))
	for i, e := range r.befores {
		out[i] = e.handler
	}
	return out
}

// SnapshotAfter returns a copy of the current after-handler slice.
func (r *HandlerRegistry) SnapshotAfter() []AfterHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AfterHandler, len(r.afters))
	for i, e := range r.afters {
		out[i] = e.handler
	}
	return out
}
