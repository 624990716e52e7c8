package navtrace_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/navtrace"
)

func newRecordingTracer(t *testing.T) (*navtrace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return navtrace.New(), exporter
}

func TestCommittedTransitionClosesOneSpan(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)
	ctx := context.Background()

	tracer.OnTransitionStart(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, 0)
	tracer.OnCommitted(ctx, navkit.NavigationEvent{Type: navkit.TransitionPush}, 0, 5*time.Millisecond)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name != "navkit.push" {
		t.Fatalf("expected span named navkit.push, got %q", spans[0].Name)
	}
}

func TestRedirectClosesHopSpanAndOpensANewOne(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)
	ctx := context.Background()

	tracer.OnTransitionStart(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, 0)
	tracer.OnRedirect(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, &navkit.RedirectSignal{Path: "/elsewhere"}, 0)
	tracer.OnTransitionStart(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, 1)
	tracer.OnCommitted(ctx, navkit.NavigationEvent{Type: navkit.TransitionPush}, 1, time.Millisecond)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans (the redirected hop and the committed one), got %d", len(spans))
	}
}

func TestCancelClosesTheOpenSpan(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)
	ctx := context.Background()

	tracer.OnTransitionStart(ctx, navkit.TransitionEvent{Type: navkit.TransitionReplace}, 0)
	tracer.OnCancel(ctx, navkit.TransitionEvent{Type: navkit.TransitionReplace})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one closed span, got %d", len(spans))
	}
}

func TestErrorClosesSpanWithErrorStatus(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)
	ctx := context.Background()

	tracer.OnTransitionStart(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, 0)
	tracer.OnError(ctx, &navkit.NavigationError{Phase: "commit", Type: navkit.TransitionPush, Err: context.DeadlineExceeded})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one closed span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected span status Error, got %v", spans[0].Status.Code)
	}
}

// PopOnEmptyStackIsANoOp guards against a stray OnRedirect/OnCancel/
// OnCommitted/OnError call with no matching OnTransitionStart (shouldn't
// happen given the engine's own pairing, but pop() must not panic).
func TestPopOnEmptyStackIsANoOp(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)
	ctx := context.Background()

	tracer.OnCommitted(ctx, navkit.NavigationEvent{Type: navkit.TransitionPush}, 0, time.Millisecond)

	if got := len(exporter.GetSpans()); got != 0 {
		t.Fatalf("expected no spans recorded, got %d", got)
	}
}
