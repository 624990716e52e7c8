// Package memadapter is navkit's zero-external-state Adapter (C5): no host
// window, no commit side effects, suitable for tests and server-side
// rendering where there is nothing outside the process to reconcile with.
package memadapter

import (
	"context"
	"net/url"

	"github.com/navkit-dev/navkit"
)

const defaultMaxEntries = 50

type config struct {
	entries    []navkit.Destination
	url        string
	state      any
	origin     string
	base       string
	index      int
	maxEntries int
}

// Option configures a memory Adapter.
type Option func(*config)

// WithEntries seeds the adapter with a ready-made entry list and current
// index, instead of minting a single entry from WithURL/WithState.
func WithEntries(entries []navkit.Destination, currentIndex int) Option {
	return func(c *config) {
		c.entries = entries
		c.index = currentIndex
	}
}

// WithURL seeds the adapter with a single entry at rawURL.
func WithURL(rawURL string) Option {
	return func(c *config) { c.url = rawURL }
}

// WithState sets the state carried by the single seeded entry (ignored
// when WithEntries is used).
func WithState(state any) Option {
	return func(c *config) { c.state = state }
}

// WithOrigin overrides the origin derived from the seed URL.
func WithOrigin(origin string) Option {
	return func(c *config) { c.origin = origin }
}

// WithBase overrides the default base href of "/".
func WithBase(base string) Option {
	return func(c *config) { c.base = base }
}

// WithMaxEntries overrides the default clamp bound of 50.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// Adapter is navkit's simplest Adapter: Commit is a no-op and Initial
// either adopts caller-supplied entries or mints one from a seed URL.
type Adapter struct {
	initial    navkit.NavigationState
	origin     string
	base       string
	maxEntries int
}

// New builds a memory Adapter per the supplied options. WithURL is the
// common case; with neither WithEntries nor WithURL, it seeds a single
// entry at "/" with an empty origin (unless WithOrigin is given).
func New(opts ...Option) *Adapter {
	cfg := config{base: "/", maxEntries: defaultMaxEntries}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	var entries []navkit.Destination
	var index int
	origin := cfg.origin

	switch {
	case cfg.entries != nil:
		entries = cfg.entries
		index = cfg.index
		if origin == "" && len(entries) > 0 && entries[0].URL != nil {
			origin = entries[0].URL.Scheme + "://" + entries[0].URL.Host
		}
	case cfg.url != "":
		u, err := url.Parse(cfg.url)
		if err != nil {
			u = &url.URL{Path: "/"}
		}
		if origin == "" {
			origin = u.Scheme + "://" + u.Host
		}
		entries = []navkit.Destination{navkit.MakeDestination(u, cfg.state, origin)}
		index = 0
	default:
		u := &url.URL{Path: "/"}
		if origin == "" {
			origin = ""
		}
		entries = []navkit.Destination{navkit.MakeDestination(u, cfg.state, origin)}
		index = 0
	}

	maxEntries := cfg.maxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &Adapter{
		initial:    navkit.NavigationState{Entries: entries, Index: index},
		origin:     origin,
		base:       cfg.base,
		maxEntries: maxEntries,
	}
}

// Origin returns the adapter's configured origin.
func (a *Adapter) Origin() string { return a.origin }

// Base returns the adapter's base href, "/" unless overridden.
func (a *Adapter) Base() string { return a.base }

// MaxEntries returns the clamp bound this adapter was configured with.
func (a *Adapter) MaxEntries() int { return a.maxEntries }

// Initial returns the seeded NavigationState.
func (a *Adapter) Initial() navkit.NavigationState { return a.initial }

// Commit is a no-op: there is no external store to reconcile with.
func (a *Adapter) Commit(ctx context.Context, to navkit.Destination, event navkit.TransitionEvent) error {
	return nil
}

var _ navkit.Adapter = (*Adapter)(nil)
