// Package hosttest provides in-process fakes of historyadapter.Host and
// platformadapter.Host, letting unit tests drive an Engine without a
// websocket bridge or a real browser, with a fluent With* builder surface
// and Fire* methods that simulate host-originated events.
package hosttest

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/navkit-dev/navkit/historyadapter"
	"github.com/navkit-dev/navkit/platformadapter"
)

// HistoryHost is an in-memory historyadapter.Host.
type HistoryHost struct {
	mu       sync.Mutex
	location *url.URL
	state    any
	base     string
	stack    []entry

	subMu     sync.Mutex
	listeners map[uint64]func(historyadapter.HostEvent)
	nextID    uint64

	reloads int
}

type entry struct {
	url   *url.URL
	state any
}

// NewHistoryHost builds a HistoryHost whose initial location is rawURL.
//
// Example:
//
//	host := hosttest.NewHistoryHost("https://example.com/")
//	adapter := historyadapter.New(host, "https://example.com")
func NewHistoryHost(rawURL string) *HistoryHost {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	return &HistoryHost{
		location:  u,
		base:      "/",
		stack:     []entry{{url: u}},
		listeners: make(map[uint64]func(historyadapter.HostEvent)),
	}
}

// WithBase sets the base href and returns the host for chaining.
func (h *HistoryHost) WithBase(base string) *HistoryHost {
	h.mu.Lock()
	h.base = base
	h.mu.Unlock()
	return h
}

func (h *HistoryHost) Location() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

func (h *HistoryHost) HistoryState() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *HistoryHost) BaseHref() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.base
}

func (h *HistoryHost) PushState(state any, u *url.URL) {
	h.mu.Lock()
	h.stack = append(h.stack, entry{url: u, state: state})
	h.location, h.state = u, state
	h.mu.Unlock()
}

func (h *HistoryHost) ReplaceState(state any, u *url.URL) {
	h.mu.Lock()
	if len(h.stack) == 0 {
		h.stack = append(h.stack, entry{url: u, state: state})
	} else {
		h.stack[len(h.stack)-1] = entry{url: u, state: state}
	}
	h.location, h.state = u, state
	h.mu.Unlock()
}

func (h *HistoryHost) Go(delta int) {
	h.mu.Lock()
	idx := h.indexOfLocked() + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(h.stack) {
		idx = len(h.stack) - 1
	}
	e := h.stack[idx]
	h.location, h.state = e.url, e.state
	h.mu.Unlock()

	h.dispatch(historyadapter.HostEvent{Kind: historyadapter.EventPopState, URL: e.url, State: e.state})
}

func (h *HistoryHost) indexOfLocked() int {
	for i, e := range h.stack {
		if e.url == h.location {
			return i
		}
	}
	return len(h.stack) - 1
}

func (h *HistoryHost) Reload() {
	h.mu.Lock()
	h.reloads++
	h.mu.Unlock()
}

// Reloads reports how many times Reload was called.
func (h *HistoryHost) Reloads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloads
}

func (h *HistoryHost) Subscribe(fn func(historyadapter.HostEvent)) func() {
	h.subMu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.subMu.Unlock()
	return func() {
		h.subMu.Lock()
		delete(h.listeners, id)
		h.subMu.Unlock()
	}
}

func (h *HistoryHost) dispatch(ev historyadapter.HostEvent) {
	h.subMu.Lock()
	fns := make([]func(historyadapter.HostEvent), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// FirePopState simulates a host-driven popstate carrying state, bypassing
// the internal back/forward stack entirely — useful for reproducing a
// bfcache restore where the host's history.state is whatever was last
// persisted there, independent of this fake's own stack bookkeeping.
func (h *HistoryHost) FirePopState(rawURL string, state any) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.location, h.state = u, state
	h.mu.Unlock()
	h.dispatch(historyadapter.HostEvent{Kind: historyadapter.EventPopState, URL: u, State: state})
}

// FireHashChange simulates a host-driven hash change, for tests
// exercising historyadapter's C6 external-event path.
func (h *HistoryHost) FireHashChange(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.location = u
	h.mu.Unlock()
	h.dispatch(historyadapter.HostEvent{Kind: historyadapter.EventHashChange, URL: u})
}

var _ historyadapter.Host = (*HistoryHost)(nil)

// PlatformHost is an in-memory platformadapter.Host.
type PlatformHost struct {
	mu        sync.Mutex
	entries   []platformadapter.HostEntry
	index     int
	intercept func(platformadapter.HostNavigateEvent) bool
}

// NewPlatformHost builds a PlatformHost with a single entry at rawURL.
func NewPlatformHost(t *testing.T, rawURL string) *PlatformHost {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("hosttest: invalid url %q: %v", rawURL, err)
	}
	return &PlatformHost{
		entries: []platformadapter.HostEntry{{ID: "0", Key: "0", URL: u, SameDocument: true}},
	}
}

func (p *PlatformHost) Entries() []platformadapter.HostEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platformadapter.HostEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *PlatformHost) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

func (p *PlatformHost) Navigate(ctx context.Context, u *url.URL, params platformadapter.NavigateParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := nextHostID(p.entries)
	e := platformadapter.HostEntry{ID: id, Key: id, URL: u, SameDocument: true, State: params.State}
	if params.History == "replace" && len(p.entries) > 0 {
		p.entries[p.index] = e
	} else {
		p.entries = append(p.entries[:p.index+1], e)
		p.index = len(p.entries) - 1
	}
	return nil
}

func (p *PlatformHost) Reload(ctx context.Context, params platformadapter.NavigateParams) error {
	return nil
}

func (p *PlatformHost) TraverseTo(ctx context.Context, key string, params platformadapter.NavigateParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e.Key == key {
			p.index = i
			return nil
		}
	}
	return nil
}

func (p *PlatformHost) Intercept(fn func(platformadapter.HostNavigateEvent) bool) {
	p.mu.Lock()
	p.intercept = fn
	p.mu.Unlock()
}

// FireNavigate simulates a host-initiated navigation: the host records the
// entry the way the real platform Navigation API commits one as soon as an
// intercept handler is installed, then delivers the event to whatever
// handler was installed via Intercept.
func (p *PlatformHost) FireNavigate(ev platformadapter.HostNavigateEvent) bool {
	p.mu.Lock()
	fn := p.intercept
	if ev.URL != nil && !ev.HashChange {
		id := nextHostID(p.entries)
		p.entries = append(p.entries[:p.index+1], platformadapter.HostEntry{ID: id, Key: id, URL: ev.URL, SameDocument: true})
		p.index = len(p.entries) - 1
	}
	p.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(ev)
}

func nextHostID(entries []platformadapter.HostEntry) string {
	return uuid.New().String()
}

var _ platformadapter.Host = (*PlatformHost)(nil)
