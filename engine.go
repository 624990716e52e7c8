package navkit

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer receives a notification at each point the engine itself logs:
// transition start, redirect, cancel, a successful commit, and a terminal
// error. Instrumentation packages (navmetrics, navtrace) implement it
// instead of reaching into engine internals.
type Observer interface {
	OnTransitionStart(ctx context.Context, event TransitionEvent, depth int)
	OnRedirect(ctx context.Context, from TransitionEvent, sig *RedirectSignal, depth int)
	OnCancel(ctx context.Context, event TransitionEvent)
	OnCommitted(ctx context.Context, event NavigationEvent, depth int, duration time.Duration)
	OnError(ctx context.Context, err *NavigationError)
}

type noopObserver struct{}

func (noopObserver) OnTransitionStart(context.Context, TransitionEvent, int)           {}
func (noopObserver) OnRedirect(context.Context, TransitionEvent, *RedirectSignal, int) {}
func (noopObserver) OnCancel(context.Context, TransitionEvent)                        {}
func (noopObserver) OnCommitted(context.Context, NavigationEvent, int, time.Duration)  {}
func (noopObserver) OnError(context.Context, *NavigationError)                        {}

type multiObserver []Observer

// MultiObserver combines several Observers into one, notifying each in
// order. Nil observers are skipped.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) OnTransitionStart(ctx context.Context, event TransitionEvent, depth int) {
	for _, o := range m {
		o.OnTransitionStart(ctx, event, depth)
	}
}
func (m multiObserver) OnRedirect(ctx context.Context, from TransitionEvent, sig *RedirectSignal, depth int) {
	for _, o := range m {
		o.OnRedirect(ctx, from, sig, depth)
	}
}
func (m multiObserver) OnCancel(ctx context.Context, event TransitionEvent) {
	for _, o := range m {
		o.OnCancel(ctx, event)
	}
}
func (m multiObserver) OnCommitted(ctx context.Context, event NavigationEvent, depth int, duration time.Duration) {
	for _, o := range m {
		o.OnCommitted(ctx, event, depth, duration)
	}
}
func (m multiObserver) OnError(ctx context.Context, err *NavigationError) {
	for _, o := range m {
		o.OnError(ctx, err)
	}
}

// maxRedirectDepth bounds before-handler redirect recursion (spec §4.4.6bis).
// Reaching it is a programming error in application handlers, not a
// recoverable condition, so runPipeline panics rather than returning it as
// an ordinary error.
const maxRedirectDepth = 25

// TransitionType names the kind of move a TransitionEvent represents.
type TransitionType string

const (
	TransitionPush     TransitionType = "push"
	TransitionReplace  TransitionType = "replace"
	TransitionReload   TransitionType = "reload"
	TransitionTraverse TransitionType = "traverse"
)

func (t TransitionType) String() string { return string(t) }

// TransitionEvent describes one proposed or in-flight transition. To is a
// Destination once identity has been assigned, which in this
// implementation is always the case by the time an event is built; the
// ProposedDestination upgrade in runPipeline is kept for the phase-3
// contract.
type TransitionEvent struct {
	Type  TransitionType
	From  Destination
	To    DestinationLike
	Delta int
	Info  any
}

// NavigationEvent is emitted to after-handlers only once a transition has
// committed successfully.
type NavigationEvent struct {
	Type        TransitionType
	Destination Destination
	Info        any
}

// HistoryMode selects how Navigate records its entry.
type HistoryMode string

const (
	HistoryAuto    HistoryMode = "auto"
	HistoryPush    HistoryMode = "push"
	HistoryReplace HistoryMode = "replace"
)

type navigateOptions struct {
	history HistoryMode
	state   any
	info    any
}

// NavigateOption configures a single Navigate/ExternalNavigate call.
type NavigateOption func(*navigateOptions)

// WithHistory overrides the default "auto" history mode.
func WithHistory(mode HistoryMode) NavigateOption {
	return func(o *navigateOptions) { o.history = mode }
}

// WithState attaches application state to the destination being navigated to.
func WithState(state any) NavigateOption {
	return func(o *navigateOptions) { o.state = state }
}

// WithInfo attaches opaque info to the TransitionEvent/NavigationEvent.
func WithInfo(info any) NavigateOption {
	return func(o *navigateOptions) { o.info = info }
}

func resolveNavigateOptions(opts []NavigateOption) navigateOptions {
	cfg := navigateOptions{history: HistoryAuto}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

func resolveHistoryMode(mode HistoryMode, current, candidate Destination) TransitionType {
	switch mode {
	case HistoryPush:
		return TransitionPush
	case HistoryReplace:
		return TransitionReplace
	default:
		if candidate.Key == current.Key {
			return TransitionReplace
		}
		return TransitionPush
	}
}

// Engine (C4) is the transition engine: the state cell, the two handler
// registries, and the adapter binding, wired together. It is the single
// exported type callers construct.
type Engine struct {
	adapter  Adapter
	cell     *StateCell
	registry *HandlerRegistry
	cfg      engineConfig
	origin   string
	base     string
}

// New constructs an Engine bound to adapter, configured with origin (used
// to compute Destination.SameDocument and to resolve relative URLs
// alongside the adapter's base href).
func New(adapter Adapter, origin string, opts ...EngineOption) *Engine {
	if m, ok := adapter.(interface{ MaxEntries() int }); ok {
		opts = append([]EngineOption{WithMaxEntries(m.MaxEntries())}, opts...)
	}
	cfg := resolveConfig(opts)
	cell := NewStateCell(adapter.Initial(), cfg.maxEntries)
	return &Engine{
		adapter:  adapter,
		cell:     cell,
		registry: NewHandlerRegistry(),
		cfg:      cfg,
		origin:   origin,
		base:     adapter.Base(),
	}
}

// Query projections.

func (e *Engine) CurrentEntry() Destination   { return e.cell.currentEntryProj.Value() }
func (e *Engine) Entries() []Destination      { return e.cell.entriesProj.Value() }
func (e *Engine) CanGoBack() bool             { return e.cell.canGoBackProj.Value() }
func (e *Engine) CanGoForward() bool          { return e.cell.canGoForwardProj.Value() }
func (e *Engine) Transition() *TransitionEvent { return e.cell.transitionProj.Value() }
func (e *Engine) Origin() string              { return e.origin }
func (e *Engine) Base() string                { return e.base }

// SubscribeCurrentEntry runs fn whenever the current entry changes.
func (e *Engine) SubscribeCurrentEntry(fn func(Destination)) func() {
	return e.cell.currentEntryProj.Subscribe(fn)
}

// SubscribeEntries runs fn whenever the entry list changes.
func (e *Engine) SubscribeEntries(fn func([]Destination)) func() {
	return e.cell.entriesProj.Subscribe(fn)
}

// SubscribeCanGoBack runs fn whenever canGoBack changes.
func (e *Engine) SubscribeCanGoBack(fn func(bool)) func() {
	return e.cell.canGoBackProj.Subscribe(fn)
}

// SubscribeCanGoForward runs fn whenever canGoForward changes.
func (e *Engine) SubscribeCanGoForward(fn func(bool)) func() {
	return e.cell.canGoForwardProj.Subscribe(fn)
}

// SubscribeTransition runs fn whenever the in-flight transition changes.
func (e *Engine) SubscribeTransition(fn func(*TransitionEvent)) func() {
	return e.cell.transitionProj.Subscribe(fn)
}

// BeforeNavigation registers a before-handler and returns its Scope.
func (e *Engine) BeforeNavigation(h BeforeHandler) Scope { return e.registry.RegisterBefore(h) }

// OnNavigation registers an after-handler and returns its Scope.
func (e *Engine) OnNavigation(h AfterHandler) Scope { return e.registry.RegisterAfter(h) }

// resolveURL joins raw against the engine's base href, then the engine's
// origin, honoring the base argument the History adapter's shims pass
// through (spec §9, getUrl open question).
func (e *Engine) resolveURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return u, nil
	}
	if e.base != "" && e.base != "/" {
		if b, berr := url.Parse(e.base); berr == nil {
			u = b.ResolveReference(u)
		}
	}
	if originURL, operr := url.Parse(e.origin); operr == nil {
		u = originURL.ResolveReference(u)
	}
	return u, nil
}

// Navigate is the caller-facing form of §4.4.1's navigate operation.
func (e *Engine) Navigate(ctx context.Context, rawURL string, opts ...NavigateOption) (Destination, error) {
	return e.navigate(ctx, rawURL, opts, false)
}

// ExternalNavigate is navigate with commit suppressed, used by adapters
// reacting to a mutation that already happened on the external store
// (historyadapter's popstate/hashchange translation, platformadapter's
// host navigate events).
func (e *Engine) ExternalNavigate(ctx context.Context, rawURL string, opts ...NavigateOption) (Destination, error) {
	return e.navigate(ctx, rawURL, opts, true)
}

func (e *Engine) navigate(ctx context.Context, rawURL string, opts []NavigateOption, skipCommit bool) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		cfg := resolveNavigateOptions(opts)
		u, perr := e.resolveURL(rawURL)
		if perr != nil {
			opErr = perr
			return
		}
		st := get()
		current := st.Entries[st.Index]
		candidate := MakeOrUpdateDestination(current, u, cfg.state, e.origin)
		typ := resolveHistoryMode(cfg.history, current, candidate)
		event := TransitionEvent{Type: typ, From: current, To: candidate, Info: cfg.info}
		result, opErr = e.runPipeline(ctx, get, set, event, skipCommit, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// Back is §4.4.1's back operation: a no-op at index 0.
func (e *Engine) Back(ctx context.Context, info any) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		st := get()
		if st.Index == 0 {
			result = st.Entries[st.Index]
			return
		}
		target := st.Entries[st.Index-1]
		to := makeTraverseDestination(target)
		event := TransitionEvent{Type: TransitionTraverse, From: st.Entries[st.Index], To: to, Delta: -1, Info: info}
		result, opErr = e.runPipeline(ctx, get, set, event, false, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// Forward is §4.4.1's forward operation: a no-op at the last index.
func (e *Engine) Forward(ctx context.Context, info any) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		st := get()
		if st.Index >= len(st.Entries)-1 {
			result = st.Entries[st.Index]
			return
		}
		target := st.Entries[st.Index+1]
		to := makeTraverseDestination(target)
		event := TransitionEvent{Type: TransitionTraverse, From: st.Entries[st.Index], To: to, Delta: 1, Info: info}
		result, opErr = e.runPipeline(ctx, get, set, event, false, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// TraverseTo is §4.4.1's traverseTo operation: finds the entry whose key
// matches key, returning the current entry unchanged if none does.
func (e *Engine) TraverseTo(ctx context.Context, key uuid.UUID, info any) (Destination, error) {
	return e.traverseTo(ctx, key, info, nil, false)
}

// ExternalTraverseTo is traverseTo with commit suppressed, for callers
// whose host has already performed the move and which do not restore
// identity from a patched marker.
func (e *Engine) ExternalTraverseTo(ctx context.Context, key uuid.UUID, info any) (Destination, error) {
	return e.traverseTo(ctx, key, info, nil, true)
}

// ExternalTraverseToState is ExternalTraverseTo, but restoreState is applied
// to the landed destination: when it carries a patched marker, the marker's
// original id and state are adopted verbatim instead of the usual
// fresh-id traversal. historyadapter uses this to restore identity across
// a popstate that returns to an entry the host persisted before a reload.
func (e *Engine) ExternalTraverseToState(ctx context.Context, key uuid.UUID, restoreState any, info any) (Destination, error) {
	return e.traverseTo(ctx, key, info, restoreState, true)
}

func (e *Engine) traverseTo(ctx context.Context, key uuid.UUID, info any, restoreState any, skipCommit bool) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		st := get()
		targetIndex := -1
		for i, d := range st.Entries {
			if d.Key == key {
				targetIndex = i
				break
			}
		}
		if targetIndex == -1 {
			result = st.Entries[st.Index]
			return
		}
		to := makeTraverseDestination(st.Entries[targetIndex])
		if marker, ok := DetectPatchedMarker(restoreState); ok {
			to.ID = marker.ID
			to.Key = marker.Key
			to.State = marker.State
		}
		event := TransitionEvent{Type: TransitionTraverse, From: st.Entries[st.Index], To: to, Delta: targetIndex - st.Index, Info: info}
		result, opErr = e.runPipeline(ctx, get, set, event, skipCommit, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// Reload is §4.4.1's reload operation: from and to are both the current entry.
func (e *Engine) Reload(ctx context.Context, info any) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		st := get()
		current := st.Entries[st.Index]
		event := TransitionEvent{Type: TransitionReload, From: current, To: current, Info: info}
		result, opErr = e.runPipeline(ctx, get, set, event, false, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// UpdateCurrentEntry is §4.4.1's updateCurrentEntry operation: a replace
// whose destination is the current entry with only State swapped in.
func (e *Engine) UpdateCurrentEntry(ctx context.Context, state any) (Destination, error) {
	return e.updateCurrentEntry(ctx, state, false)
}

// ExternalUpdateCurrentEntry is updateCurrentEntry with commit suppressed.
func (e *Engine) ExternalUpdateCurrentEntry(ctx context.Context, state any) (Destination, error) {
	return e.updateCurrentEntry(ctx, state, true)
}

func (e *Engine) updateCurrentEntry(ctx context.Context, state any, skipCommit bool) (Destination, error) {
	var result Destination
	var opErr error
	err := e.cell.RunUpdates(ctx, func(get func() NavigationState, set func(NavigationState)) {
		st := get()
		current := st.Entries[st.Index]
		to := current
		to.State = state
		event := TransitionEvent{Type: TransitionReplace, From: current, To: to}
		result, opErr = e.runPipeline(ctx, get, set, event, skipCommit, 0)
	})
	if err != nil {
		return Destination{}, err
	}
	return result, opErr
}

// runPipeline drives phases 2 through 5 for event, recursing at depth+1 on
// a redirect. It assumes the caller has already positioned get/set inside
// a held RunUpdates ticket.
func (e *Engine) runPipeline(ctx context.Context, get func() NavigationState, set func(NavigationState), event TransitionEvent, skipCommit bool, depth int) (Destination, error) {
	if depth >= maxRedirectDepth {
		panic(ErrRedirectLoop)
	}

	st := get()
	st.Transition = &event
	set(st)

	start := e.cfg.clock()
	e.cfg.logger.Debug("navkit: transition proposed", "type", event.Type, "depth", depth)
	e.cfg.observer.OnTransitionStart(ctx, event, depth)

	if err := e.runBefore(ctx, event); err != nil {
		if sig, ok := asRedirect(err); ok {
			e.cfg.logger.Debug("navkit: before-handler redirected", "path", sig.Path, "depth", depth)
			e.cfg.observer.OnRedirect(ctx, event, sig, depth)
			return e.handleRedirect(ctx, get, set, sig, skipCommit, depth)
		}
		if _, ok := asCancel(err); ok {
			e.cfg.logger.Debug("navkit: before-handler cancelled", "type", event.Type, "depth", depth)
			e.cfg.observer.OnCancel(ctx, event)
			return e.handleCancel(get, set)
		}
		e.clearTransition(get, set)
		var navErr *NavigationError
		if !errors.As(err, &navErr) {
			navErr = &NavigationError{Phase: "before", Type: event.Type, Err: err}
		}
		e.cfg.logger.Error("navkit: before phase failed", "error", navErr)
		e.cfg.observer.OnError(ctx, navErr)
		return Destination{}, navErr
	}

	toDest, ok := event.To.(Destination)
	if !ok {
		if proposed, ok := event.To.(ProposedDestination); ok {
			toDest = UpgradeProposedDestination(proposed)
		}
		event.To = toDest
	}

	if !skipCommit {
		if cerr := e.adapter.Commit(ctx, toDest, event); cerr != nil {
			e.clearTransition(get, set)
			navErr := &NavigationError{Phase: "commit", Type: event.Type, Err: cerr}
			e.cfg.logger.Error("navkit: commit phase failed", "error", navErr)
			e.cfg.observer.OnError(ctx, navErr)
			return Destination{}, navErr
		}
	}

	newState := e.mutate(get(), event, toDest)
	newState.Transition = nil
	set(newState)
	clamped := get()
	result := clamped.Entries[clamped.Index]

	navEvent := NavigationEvent{Type: event.Type, Destination: result, Info: event.Info}
	e.cfg.observer.OnCommitted(ctx, navEvent, depth, e.cfg.clock().Sub(start))
	e.runAfter(ctx, navEvent)

	return result, nil
}

// mutate applies phase 4 (spec §4.4.5). When the bound adapter is
// authoritative over history (platformadapter), its snapshot replaces the
// table below wholesale.
func (e *Engine) mutate(s NavigationState, event TransitionEvent, to Destination) NavigationState {
	if src, ok := e.adapter.(StateSource); ok {
		ns := src.NewNavigationState()
		ns.Transition = s.Transition
		return ns
	}
	switch event.Type {
	case TransitionPush:
		entries := make([]Destination, 0, s.Index+2)
		entries = append(entries, s.Entries[:s.Index+1]...)
		entries = append(entries, to)
		return NavigationState{Entries: entries, Index: s.Index + 1, Transition: s.Transition}
	case TransitionReplace:
		entries := make([]Destination, len(s.Entries))
		copy(entries, s.Entries)
		entries[s.Index] = to
		return NavigationState{Entries: entries, Index: s.Index, Transition: s.Transition}
	case TransitionReload:
		return NavigationState{Entries: s.Entries, Index: s.Index, Transition: s.Transition}
	case TransitionTraverse:
		newIndex := s.Index + event.Delta
		entries := make([]Destination, len(s.Entries))
		copy(entries, s.Entries)
		entries[newIndex] = to
		return NavigationState{Entries: entries, Index: newIndex, Transition: s.Transition}
	default:
		return s
	}
}

// handleCancel implements §4.4.7.
func (e *Engine) handleCancel(get func() NavigationState, set func(NavigationState)) (Destination, error) {
	e.clearTransition(get, set)
	st := get()
	return st.Entries[st.Index], nil
}

// handleRedirect implements §4.4.6bis.
func (e *Engine) handleRedirect(ctx context.Context, get func() NavigationState, set func(NavigationState), sig *RedirectSignal, skipCommit bool, depth int) (Destination, error) {
	e.clearTransition(get, set)
	st := get()
	from := st.Entries[st.Index]

	u, err := e.resolveURL(sig.Path)
	if err != nil {
		navErr := &NavigationError{Phase: "redirect", Type: TransitionReplace, Err: err}
		e.cfg.logger.Error("navkit: redirect phase failed", "error", navErr)
		e.cfg.observer.OnError(ctx, navErr)
		return Destination{}, navErr
	}
	to := MakeDestination(u, sig.State, e.origin)
	newEvent := TransitionEvent{Type: TransitionReplace, From: from, To: to, Info: sig.Info}
	return e.runPipeline(ctx, get, set, newEvent, skipCommit, depth+1)
}

func (e *Engine) clearTransition(get func() NavigationState, set func(NavigationState)) {
	st := get()
	st.Transition = nil
	set(st)
}

// runBefore implements §4.4.3: snapshot-iterate, poll every handler for a
// deferred effect (a sync failure aborts the remaining handlers), then
// drain deferred effects in order (a deferred failure aborts the
// remaining deferreds but not the polling that already happened).
func (e *Engine) runBefore(ctx context.Context, event TransitionEvent) error {
	handlers := e.registry.SnapshotBefore()
	deferred := make([]DeferredEffect, 0, len(handlers))
	for _, h := range handlers {
		eff, err := h(ctx, event)
		if err != nil {
			return err
		}
		if eff != nil {
			deferred = append(deferred, eff)
		}
	}
	for _, eff := range deferred {
		if err := eff(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runAfter implements §4.4.6: after-handlers are polled in order, and the
// AfterEffects they return run concurrently with their results discarded.
// A panicking handler or effect is recovered and logged, never surfaced.
func (e *Engine) runAfter(ctx context.Context, event NavigationEvent) {
	handlers := e.registry.SnapshotAfter()
	effects := make([]AfterEffect, 0, len(handlers))
	for _, h := range handlers {
		effects = append(effects, e.safeAfter(ctx, h, event))
	}

	var wg sync.WaitGroup
	for _, eff := range effects {
		if eff == nil {
			continue
		}
		wg.Add(1)
		go func(eff AfterEffect) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.cfg.logger.Warn("navkit: after-effect panicked", "panic", r)
				}
			}()
			eff(ctx)
		}(eff)
	}
	wg.Wait()
}

func (e *Engine) safeAfter(ctx context.Context, h AfterHandler, event NavigationEvent) (eff AfterEffect) {
	defer func() {
		if r := recover(); r != nil {
			e.cfg.logger.Warn("navkit: after-handler panicked", "panic", r)
			eff = nil
		}
	}()
	return h(ctx, event)
}
