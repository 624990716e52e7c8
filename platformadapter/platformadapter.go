// Package platformadapter is navkit's Adapter (C7) for a host exposing a
// first-class Navigation API: the host owns the authoritative entry list,
// and the adapter's job is to translate operations into host calls and
// the host's own entry list back into navkit's NavigationState.
package platformadapter

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/navkit-dev/navkit"
)

// HostEntry is one entry of the host's native history list.
type HostEntry struct {
	ID           string
	Key          string
	URL          *url.URL
	SameDocument bool
	State        any
}

// NavigateParams carries the fields a Host.Navigate/Reload/TraverseTo call
// needs beyond the target itself.
type NavigateParams struct {
	History string // "push" or "replace"; empty for reload/traverseTo
	State   any
	Info    any
}

// HostNavigateEvent mirrors the platform Navigation API's `navigate`
// event, as observed by a Host.Intercept callback.
type HostNavigateEvent struct {
	URL             *url.URL
	CanIntercept    bool
	HashChange      bool
	DownloadRequest bool
	FormData        bool
	Info            any
}

// Host is the platform Navigation API binding the adapter drives.
type Host interface {
	Entries() []HostEntry
	CurrentIndex() int

	Navigate(ctx context.Context, url *url.URL, params NavigateParams) error
	Reload(ctx context.Context, params NavigateParams) error
	TraverseTo(ctx context.Context, key string, params NavigateParams) error

	// Intercept registers fn to run on every host `navigate` event. fn
	// returns whether the adapter claimed the event.
	Intercept(fn func(HostNavigateEvent) bool)
}

// Adapter binds an Engine to a Host. It also implements
// navkit.StateSource: phase 4 of every transition adopts the host's
// entry list wholesale instead of computing one.
type Adapter struct {
	host   Host
	origin string
	base   string

	mu     sync.Mutex
	engine *navkit.Engine
}

// New builds a platform Adapter bound to host.
func New(host Host, origin, base string) *Adapter {
	if base == "" {
		base = "/"
	}
	return &Adapter{host: host, origin: origin, base: base}
}

// Attach wires the adapter to engine and installs the host intercept
// handler. Call once, immediately after navkit.New(adapter, origin, ...)
// returns.
func (a *Adapter) Attach(engine *navkit.Engine) {
	a.mu.Lock()
	a.engine = engine
	a.mu.Unlock()
	a.host.Intercept(a.handleHostNavigate)
}

func (a *Adapter) Origin() string { return a.origin }
func (a *Adapter) Base() string   { return a.base }

// Initial reads the host's current entry list and index.
func (a *Adapter) Initial() navkit.NavigationState { return a.NewNavigationState() }

// NewNavigationState projects every HostEntry to a Destination, reusing
// its id/key after UUID validation; an entry whose native id is not a
// valid UUID is assigned a fresh one (the host's id space need not be
// UUIDs, only navkit's is).
func (a *Adapter) NewNavigationState() navkit.NavigationState {
	hostEntries := a.host.Entries()
	entries := make([]navkit.Destination, 0, len(hostEntries))
	for _, he := range hostEntries {
		id, err := uuid.Parse(he.ID)
		if err != nil {
			id = uuid.New()
		}
		key, err := uuid.Parse(he.Key)
		if err != nil {
			key = uuid.New()
		}
		entries = append(entries, navkit.Destination{
			ID:           id,
			Key:          key,
			URL:          he.URL,
			State:        he.State,
			SameDocument: he.SameDocument,
		})
	}
	if len(entries) == 0 {
		return navkit.NavigationState{Entries: entries, Index: 0}
	}
	idx := a.host.CurrentIndex()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(entries) {
		idx = len(entries) - 1
	}
	return navkit.NavigationState{Entries: entries, Index: idx}
}

// Commit delegates to the host, awaiting its result synchronously (the
// Host implementation is expected to block until the platform's
// "committed" promise settles).
func (a *Adapter) Commit(ctx context.Context, to navkit.Destination, event navkit.TransitionEvent) error {
	params := NavigateParams{State: to.State, Info: event.Info}
	switch event.Type {
	case navkit.TransitionReload:
		return a.host.Reload(ctx, params)
	case navkit.TransitionTraverse:
		return a.host.TraverseTo(ctx, to.Key.String(), params)
	case navkit.TransitionReplace:
		params.History = "replace"
		return a.host.Navigate(ctx, to.URL, params)
	case navkit.TransitionPush:
		params.History = "push"
		return a.host.Navigate(ctx, to.URL, params)
	default:
		return fmt.Errorf("platformadapter: unknown transition type %q", event.Type)
	}
}

// handleHostNavigate runs when the host's own `navigate` event fires for
// a navigation the adapter did not itself initiate through Commit (a
// link click, an address-bar entry, a traversal via the browser's
// back/forward UI). Events the host should handle itself are left alone.
// A claimed event runs the engine's full pipeline through ExternalNavigate
// with commit suppressed: before-handlers run for it as well, not only
// the after-handlers.
func (a *Adapter) handleHostNavigate(ev HostNavigateEvent) bool {
	if !ev.CanIntercept || ev.HashChange || ev.DownloadRequest || ev.FormData {
		return false
	}
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()
	if engine == nil || ev.URL == nil {
		return false
	}
	go func() {
		_, _ = engine.ExternalNavigate(context.Background(), ev.URL.String(), navkit.WithInfo(ev.Info))
	}()
	return true
}

var _ navkit.Adapter = (*Adapter)(nil)
var _ navkit.StateSource = (*Adapter)(nil)
