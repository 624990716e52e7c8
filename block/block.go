// Package block is navkit's blocking façade (C8): a single before-handler
// that can turn an in-flight transition into an observable request
// awaiting a consumer's confirm/cancel/redirect decision.
package block

import (
	"context"
	"sync"

	"github.com/navkit-dev/navkit"
)

// Blocking is the pending decision for one blocked TransitionEvent. Its
// three actions settle the transition's deferred effect exactly once;
// calling more than one has no effect beyond the first.
type Blocking struct {
	Event navkit.TransitionEvent

	settleOnce sync.Once
	settle     chan error
}

func newBlocking(event navkit.TransitionEvent) *Blocking {
	return &Blocking{Event: event, settle: make(chan error, 1)}
}

func (b *Blocking) send(err error) {
	b.settleOnce.Do(func() { b.settle <- err })
}

// Confirm allows the transition to proceed to the commit phase.
func (b *Blocking) Confirm() { b.send(nil) }

// Cancel aborts the transition; the caller observes the current entry.
func (b *Blocking) Cancel() { b.send(navkit.ErrCancelNavigation) }

// Redirect aborts the transition and re-enters it at path.
func (b *Blocking) Redirect(path string, opts ...navkit.RedirectOption) {
	b.send(navkit.Redirect(path, opts...))
}

// observable is a minimal change stream over *Blocking (nil meaning
// "unblocked"). Unlike the engine's internal projections it does not
// suppress consecutive identical values — a *Blocking pointer is never
// meaningfully equal to a later one, and nil/non-nil transitions are
// exactly the signal consumers subscribe for.
type observable struct {
	mu        sync.Mutex
	listeners map[uint64]func(*Blocking)
	nextID    uint64
}

func newObservable() *observable {
	return &observable{listeners: make(map[uint64]func(*Blocking))}
}

func (o *observable) publish(v *Blocking) {
	o.mu.Lock()
	fns := make([]func(*Blocking), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (o *observable) Subscribe(fn func(*Blocking)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// ShouldBlockFunc decides, per TransitionEvent, whether the façade should
// engage. The default always blocks.
type ShouldBlockFunc func(event navkit.TransitionEvent) bool

// Option configures a Facade.
type Option func(*Facade)

// WithShouldBlock overrides the default always-block predicate.
func WithShouldBlock(fn ShouldBlockFunc) Option {
	return func(f *Facade) {
		if fn != nil {
			f.shouldBlock = fn
		}
	}
}

// Facade layers a blocking request atop an Engine's before-handler chain.
type Facade struct {
	engine      *navkit.Engine
	shouldBlock ShouldBlockFunc
	scope       navkit.Scope
	obs         *observable

	mu      sync.Mutex
	current *Blocking
}

// New registers the façade's before-handler on engine and returns the
// Facade. Call Close to deregister.
func New(engine *navkit.Engine, opts ...Option) *Facade {
	f := &Facade{
		engine:      engine,
		shouldBlock: func(navkit.TransitionEvent) bool { return true },
		obs:         newObservable(),
	}
	for _, o := range opts {
		if o != nil {
			o(f)
		}
	}
	f.scope = engine.BeforeNavigation(f.beforeHandler)
	return f
}

// Close deregisters the façade's before-handler.
func (f *Facade) Close() { f.scope.Release() }

// Value returns the current Blocking, or nil when unblocked.
func (f *Facade) Value() *Blocking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Subscribe runs fn whenever the blocking value changes.
func (f *Facade) Subscribe(fn func(*Blocking)) func() {
	return f.obs.Subscribe(fn)
}

// WhenBlocked subscribes to f, invoking handler once per event that
// enters the Blocked state (nil transitions back to Unblocked are
// filtered out).
func WhenBlocked(f *Facade, handler func(*Blocking)) func() {
	return f.Subscribe(func(b *Blocking) {
		if b != nil {
			handler(b)
		}
	})
}

// beforeHandler is the façade's sole contribution to the engine's
// before-handler chain. A second concurrent navigation arriving while
// already Blocked abstains rather than re-blocking (spec §9 open
// question).
func (f *Facade) beforeHandler(ctx context.Context, event navkit.TransitionEvent) (navkit.DeferredEffect, error) {
	f.mu.Lock()
	if f.current != nil || !f.shouldBlock(event) {
		f.mu.Unlock()
		return nil, nil
	}
	blocking := newBlocking(event)
	f.current = blocking
	f.mu.Unlock()
	f.obs.publish(blocking)

	return func(ctx context.Context) error {
		err := <-blocking.settle
		f.mu.Lock()
		if f.current == blocking {
			f.current = nil
		}
		f.mu.Unlock()
		f.obs.publish(nil)
		return err
	}, nil
}
