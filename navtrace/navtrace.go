// Package navtrace instruments a navkit.Engine with OpenTelemetry spans,
// one per transition hop, tagged with transition attributes.
package navtrace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/navkit-dev/navkit"
)

const defaultTracerName = "navkit"

// Config configures the tracing Observer.
type Config struct {
	// TracerName names the tracer (default: "navkit").
	TracerName string

	// IncludeInfo attaches TransitionEvent.Info as a span attribute at
	// transition start via fmt.Sprintf("%v", info); NavigationEvent.Info
	// is not attached. Off by default since
	// Info is application-defined and may be arbitrarily large.
	IncludeInfo bool

	tracer trace.Tracer
}

// Option configures a Config.
type Option func(*Config)

// WithTracerName overrides the default tracer name.
func WithTracerName(name string) Option { return func(c *Config) { c.TracerName = name } }

// WithIncludeInfo enables attaching event Info as a span attribute.
func WithIncludeInfo(include bool) Option { return func(c *Config) { c.IncludeInfo = include } }

func defaultConfig() Config {
	return Config{TracerName: defaultTracerName}
}

// Tracer is a navkit.Observer that opens one span per transition
// (including each redirect hop) and closes it at commit, cancel, or
// error. The engine's FIFO serialization guarantees at most one
// transition pipeline runs at a time per Engine, including its redirect
// recursion, so spans form a plain stack: a redirect closes the current
// hop's span (OnRedirect) before the next hop's OnTransitionStart opens a
// new one, so the span being closed is always the most recently opened,
// unclosed span.
type Tracer struct {
	cfg Config

	mu    sync.Mutex
	stack []trace.Span
}

// New builds a Tracer, resolving its tracer from the global
// OpenTelemetry tracer provider. Configure the provider in main() before
// calling New.
func New(opts ...Option) *Tracer {
	cfg := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	cfg.tracer = otel.Tracer(cfg.TracerName)
	return &Tracer{cfg: cfg}
}

func (t *Tracer) OnTransitionStart(ctx context.Context, event navkit.TransitionEvent, depth int) {
	attrs := []attribute.KeyValue{
		attribute.String("navkit.transition_type", event.Type.String()),
		attribute.Int("navkit.redirect_depth", depth),
	}
	if t.cfg.IncludeInfo && event.Info != nil {
		attrs = append(attrs, attribute.String("navkit.info", fmt.Sprintf("%v", event.Info)))
	}
	_, span := t.cfg.tracer.Start(ctx, fmt.Sprintf("navkit.%s", event.Type), trace.WithAttributes(attrs...))

	t.mu.Lock()
	t.stack = append(t.stack, span)
	t.mu.Unlock()
}

func (t *Tracer) pop() (trace.Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.stack)
	if n == 0 {
		return nil, false
	}
	span := t.stack[n-1]
	t.stack = t.stack[:n-1]
	return span, true
}

func (t *Tracer) OnRedirect(ctx context.Context, from navkit.TransitionEvent, sig *navkit.RedirectSignal, depth int) {
	if span, ok := t.pop(); ok {
		span.SetAttributes(attribute.String("navkit.redirect_to", sig.Path))
		span.SetStatus(codes.Ok, "redirected")
		span.End()
	}
}

func (t *Tracer) OnCancel(ctx context.Context, event navkit.TransitionEvent) {
	if span, ok := t.pop(); ok {
		span.SetStatus(codes.Ok, "cancelled")
		span.End()
	}
}

func (t *Tracer) OnCommitted(ctx context.Context, event navkit.NavigationEvent, depth int, duration time.Duration) {
	if span, ok := t.pop(); ok {
		span.SetAttributes(
			attribute.String("navkit.committed_type", event.Type.String()),
			attribute.Int64("navkit.duration_ms", duration.Milliseconds()),
		)
		span.SetStatus(codes.Ok, "committed")
		span.End()
	}
}

func (t *Tracer) OnError(ctx context.Context, err *navkit.NavigationError) {
	if span, ok := t.pop(); ok {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
	}
}

var _ navkit.Observer = (*Tracer)(nil)
