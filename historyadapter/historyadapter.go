// Package historyadapter is navkit's Adapter (C6) for a host exposing the
// older History/Location API rather than a first-class Navigation API. It
// is the Go analogue of monkey-patching window.history: a Host interface
// substitutes for DOM global patching, letting the same reconciliation
// logic run against a real browser bridge (navbridge, over a WebSocket) or
// an in-process fake (hosttest) in tests.
package historyadapter

import (
	"context"
	"net/url"
	"sync"

	"github.com/navkit-dev/navkit"
)

// EventKind names the two host events the adapter listens for.
type EventKind string

const (
	EventPopState   EventKind = "popstate"
	EventHashChange EventKind = "hashchange"
)

// HostEvent is dispatched by Host.Subscribe's callback.
type HostEvent struct {
	Kind  EventKind
	URL   *url.URL
	State any
}

// Host is the binding the adapter drives. Reads return the host's current
// location/state/base-href; writes perform pushState, replaceState, go
// and reload;
// Subscribe delivers popstate/hashchange notifications in capture order.
type Host interface {
	Location() *url.URL
	HistoryState() any
	BaseHref() string

	PushState(state any, url *url.URL)
	ReplaceState(state any, url *url.URL)
	Go(delta int)
	Reload()

	Subscribe(fn func(HostEvent)) (unsubscribe func())
}

// Adapter binds an Engine to a Host. Construct with New, pass to
// navkit.New, then call Attach with the resulting Engine so the adapter
// can translate host-originated events back into operations.
type Adapter struct {
	host   Host
	origin string
	base   string

	mu          sync.Mutex
	engine      *navkit.Engine
	unsubscribe func()
}

// New builds a history Adapter bound to host, configured for origin. Base
// href is read from host.BaseHref(), defaulting to "/" when empty.
func New(host Host, origin string) *Adapter {
	base := host.BaseHref()
	if base == "" {
		base = "/"
	}
	return &Adapter{host: host, origin: origin, base: base}
}

// Attach wires the adapter to engine and subscribes to host events. Call
// once, immediately after navkit.New(adapter, origin, ...) returns.
func (a *Adapter) Attach(engine *navkit.Engine) {
	a.mu.Lock()
	a.engine = engine
	a.mu.Unlock()
	a.unsubscribe = a.host.Subscribe(a.handleHostEvent)
}

// Close tears down the adapter's subscription to host events.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (a *Adapter) Origin() string { return a.origin }
func (a *Adapter) Base() string   { return a.base }

// Initial reads the host's current location and state. A patched marker
// on the state is adopted so identity survives a reload (spec §4.6).
func (a *Adapter) Initial() navkit.NavigationState {
	loc := a.host.Location()
	state := a.host.HistoryState()

	var dest navkit.Destination
	if marker, ok := navkit.DetectPatchedMarker(state); ok {
		dest = navkit.Destination{
			ID:           marker.ID,
			Key:          marker.Key,
			URL:          loc,
			State:        marker.State,
			SameDocument: navkit.SameOrigin(loc, a.origin),
		}
	} else {
		dest = navkit.MakeDestination(loc, state, a.origin)
	}
	return navkit.NavigationState{Entries: []navkit.Destination{dest}, Index: 0}
}

// Commit reconciles a committed transition with the host's history store,
// wrapping the destination's identity in a patched marker so it survives
// a reload.
func (a *Adapter) Commit(ctx context.Context, to navkit.Destination, event navkit.TransitionEvent) error {
	marker := navkit.AsPatchedState(to.ID, to.Key, to.State)
	switch event.Type {
	case navkit.TransitionPush:
		a.host.PushState(marker, to.URL)
	case navkit.TransitionReplace:
		a.host.ReplaceState(marker, to.URL)
	case navkit.TransitionReload:
		a.host.Reload()
	case navkit.TransitionTraverse:
		a.host.Go(event.Delta)
		a.host.ReplaceState(marker, to.URL)
	}
	return nil
}

// PushState is the translation of a shimmed history.pushState(state, url)
// call: a user-initiated push with a normal (non-skipped) commit.
func (a *Adapter) PushState(ctx context.Context, state any, rawURL string) (navkit.Destination, error) {
	return a.engine.Navigate(ctx, rawURL, navkit.WithState(state))
}

// ReplaceState is the translation of a shimmed history.replaceState call.
// An empty rawURL means "keep the current URL, only swap state".
func (a *Adapter) ReplaceState(ctx context.Context, state any, rawURL string) (navkit.Destination, error) {
	if rawURL != "" {
		return a.engine.Navigate(ctx, rawURL, navkit.WithHistory(navkit.HistoryReplace), navkit.WithState(state))
	}
	return a.engine.UpdateCurrentEntry(ctx, state)
}

// Go is the translation of a shimmed history.go(delta) call.
func (a *Adapter) Go(ctx context.Context, delta int) (navkit.Destination, error) {
	entries := a.engine.Entries()
	cur := a.engine.CurrentEntry()
	idx := -1
	for i, d := range entries {
		if d.ID == cur.ID {
			idx = i
			break
		}
	}
	target := idx + delta
	if idx == -1 || target < 0 || target >= len(entries) {
		return cur, nil
	}
	return a.engine.TraverseTo(ctx, entries[target].Key, nil)
}

// Back is the translation of a shimmed history.back() call.
func (a *Adapter) Back(ctx context.Context) (navkit.Destination, error) { return a.Go(ctx, -1) }

// Forward is the translation of a shimmed history.forward() call.
func (a *Adapter) Forward(ctx context.Context) (navkit.Destination, error) { return a.Go(ctx, 1) }

// handleHostEvent translates a host-originated popstate/hashchange into
// the internal event table of spec §4.6, always with commit suppressed
// since the host has already performed (or reflects) the move.
func (a *Adapter) handleHostEvent(ev HostEvent) {
	ctx := context.Background()
	switch ev.Kind {
	case EventPopState:
		if marker, ok := navkit.DetectPatchedMarker(ev.State); ok {
			a.engine.ExternalTraverseToState(ctx, marker.Key, ev.State, nil)
			return
		}
		if ev.URL != nil {
			a.engine.ExternalNavigate(ctx, ev.URL.String(), navkit.WithHistory(navkit.HistoryReplace), navkit.WithState(ev.State))
		}
	case EventHashChange:
		if ev.URL != nil {
			state := ev.State
			if state == nil {
				state = a.host.HistoryState()
				if marker, ok := navkit.DetectPatchedMarker(state); ok {
					state = marker.State
				}
			}
			a.engine.ExternalNavigate(ctx, ev.URL.String(), navkit.WithHistory(navkit.HistoryReplace), navkit.WithState(state))
		}
	}
}

var _ navkit.Adapter = (*Adapter)(nil)
