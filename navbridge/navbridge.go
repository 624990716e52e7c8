// Package navbridge implements historyadapter.Host over a WebSocket
// connection to a remote browser shim, using a duplex, one-JSON-frame-
// per-message shape: a ReadLoop decoding inbound frames and dispatching
// them, and outbound mutators that encode a frame and write it directly
// under a connection write lock.
package navbridge

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navkit-dev/navkit/historyadapter"
)

// FrameType names a navbridge wire frame's kind.
type FrameType string

const (
	// Outbound: adapter → remote browser shim.
	FramePush    FrameType = "push"
	FrameReplace FrameType = "replace"
	FrameGo      FrameType = "go"
	FrameReload  FrameType = "reload"

	// Inbound: remote browser shim → adapter.
	FramePopState   FrameType = "popstate"
	FrameHashChange FrameType = "hashchange"
	FrameHello      FrameType = "hello"
)

// Frame is the JSON envelope exchanged over the bridge connection.
type Frame struct {
	Type  FrameType `json:"type"`
	URL   string    `json:"url,omitempty"`
	State any       `json:"state,omitempty"`
	Delta int       `json:"delta,omitempty"`
	Base  string    `json:"base,omitempty"`
}

func encode(f Frame) ([]byte, error) { return json.Marshal(f) }

func decode(b []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(b, &f)
	return f, err
}

// Config configures read/write deadlines and logging for a Bridge,
// mirroring the teacher's session transport timeouts.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

func defaultConfig() Config {
	return Config{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		Logger:       slog.Default(),
	}
}

// Bridge is a historyadapter.Host backed by a WebSocket connection to a
// remote browser shim. Until the shim's hello frame arrives, Location
// returns the initial location the Bridge was constructed with,
// HistoryState returns nil, and BaseHref returns "".
type Bridge struct {
	conn    *websocket.Conn
	cfg     Config
	writeMu sync.Mutex

	mu       sync.Mutex
	location *url.URL
	state    any
	base     string

	subMu     sync.Mutex
	listeners map[uint64]func(historyadapter.HostEvent)
	nextID    uint64

	done chan struct{}
}

// New wraps an established WebSocket connection. initialURL is the
// location assumed until a hello frame updates it.
func New(conn *websocket.Conn, initialURL *url.URL, opts ...func(*Config)) *Bridge {
	cfg := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return &Bridge{
		conn:      conn,
		cfg:       cfg,
		location:  initialURL,
		listeners: make(map[uint64]func(historyadapter.HostEvent)),
		done:      make(chan struct{}),
	}
}

// Location implements historyadapter.Host.
func (b *Bridge) Location() *url.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.location
}

// HistoryState implements historyadapter.Host.
func (b *Bridge) HistoryState() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BaseHref implements historyadapter.Host.
func (b *Bridge) BaseHref() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base
}

// PushState implements historyadapter.Host.
func (b *Bridge) PushState(state any, u *url.URL) {
	b.mu.Lock()
	b.location, b.state = u, state
	b.mu.Unlock()
	b.send(Frame{Type: FramePush, URL: u.String(), State: state})
}

// ReplaceState implements historyadapter.Host.
func (b *Bridge) ReplaceState(state any, u *url.URL) {
	b.mu.Lock()
	b.location, b.state = u, state
	b.mu.Unlock()
	b.send(Frame{Type: FrameReplace, URL: u.String(), State: state})
}

// Go implements historyadapter.Host.
func (b *Bridge) Go(delta int) {
	b.send(Frame{Type: FrameGo, Delta: delta})
}

// Reload implements historyadapter.Host.
func (b *Bridge) Reload() {
	b.send(Frame{Type: FrameReload})
}

// Subscribe implements historyadapter.Host.
func (b *Bridge) Subscribe(fn func(historyadapter.HostEvent)) (unsubscribe func()) {
	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		delete(b.listeners, id)
		b.subMu.Unlock()
	}
}

func (b *Bridge) send(f Frame) {
	payload, err := encode(f)
	if err != nil {
		b.cfg.Logger.Error("navbridge: encode frame failed", "error", err, "type", f.Type)
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
	if err := b.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		b.cfg.Logger.Error("navbridge: write failed", "error", err, "type", f.Type)
	}
}

func (b *Bridge) dispatch(ev historyadapter.HostEvent) {
	b.subMu.Lock()
	fns := make([]func(historyadapter.HostEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ReadLoop decodes inbound frames until the connection errors or closes.
// Run it in its own goroutine after New.
func (b *Bridge) ReadLoop() {
	defer close(b.done)

	for {
		b.conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				b.cfg.Logger.Error("navbridge: read error", "error", err)
			}
			return
		}

		frame, err := decode(msg)
		if err != nil {
			b.cfg.Logger.Error("navbridge: frame decode error", "error", err)
			continue
		}

		switch frame.Type {
		case FrameHello:
			u, perr := url.Parse(frame.URL)
			if perr != nil {
				b.cfg.Logger.Error("navbridge: hello url parse error", "error", perr)
				continue
			}
			b.mu.Lock()
			b.location, b.state, b.base = u, frame.State, frame.Base
			b.mu.Unlock()

		case FramePopState:
			u, perr := url.Parse(frame.URL)
			if perr != nil {
				b.cfg.Logger.Error("navbridge: popstate url parse error", "error", perr)
				continue
			}
			b.mu.Lock()
			b.location, b.state = u, frame.State
			b.mu.Unlock()
			b.dispatch(historyadapter.HostEvent{Kind: historyadapter.EventPopState, URL: u, State: frame.State})

		case FrameHashChange:
			u, perr := url.Parse(frame.URL)
			if perr != nil {
				b.cfg.Logger.Error("navbridge: hashchange url parse error", "error", perr)
				continue
			}
			b.mu.Lock()
			b.location = u
			b.mu.Unlock()
			b.dispatch(historyadapter.HostEvent{Kind: historyadapter.EventHashChange, URL: u})

		default:
			b.cfg.Logger.Warn("navbridge: unknown frame type", "type", frame.Type)
		}
	}
}

// Done is closed once ReadLoop returns.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Close closes the underlying connection.
func (b *Bridge) Close() error { return b.conn.Close() }

var _ historyadapter.Host = (*Bridge)(nil)
