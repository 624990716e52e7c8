package navmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/navkit-dev/navkit"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestOnCommittedRecordsCounterDurationAndDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))
	ctx := context.Background()

	event := navkit.NavigationEvent{Type: navkit.TransitionPush}
	m.OnCommitted(ctx, event, 3, 10*time.Millisecond)

	if got := counterValue(t, m.transitionsTotal.WithLabelValues("push")); got != 1 {
		t.Fatalf("transitions_total(push)=%v, want 1", got)
	}
	if got := histogramCount(t, m.transitionDuration.WithLabelValues("push")); got != 1 {
		t.Fatalf("transition_duration_seconds(push) sample count=%v, want 1", got)
	}
	if got := histogramCount(t, m.redirectDepth); got != 1 {
		t.Fatalf("redirect_depth sample count=%v, want 1", got)
	}
}

func TestRedirectAndCancelCountersIncrementByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))
	ctx := context.Background()

	m.OnRedirect(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, nil, 1)
	m.OnRedirect(ctx, navkit.TransitionEvent{Type: navkit.TransitionPush}, nil, 1)
	m.OnCancel(ctx, navkit.TransitionEvent{Type: navkit.TransitionReplace})

	if got := counterValue(t, m.redirectsTotal.WithLabelValues("push")); got != 2 {
		t.Fatalf("redirects_total(push)=%v, want 2", got)
	}
	if got := counterValue(t, m.cancelsTotal.WithLabelValues("replace")); got != 1 {
		t.Fatalf("cancels_total(replace)=%v, want 1", got)
	}
}

func TestSetBlockedTogglesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))

	m.SetBlocked(true)
	if got := gaugeValue(t, m.blockedGauge); got != 1 {
		t.Fatalf("blocked_transitions=%v, want 1", got)
	}
	m.SetBlocked(false)
	if got := gaugeValue(t, m.blockedGauge); got != 0 {
		t.Fatalf("blocked_transitions=%v, want 0", got)
	}
}

func TestOnErrorRecordsByPhase(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))
	ctx := context.Background()

	m.OnError(ctx, &navkit.NavigationError{Phase: "commit", Type: navkit.TransitionPush})
	if got := counterValue(t, m.errorsTotal.WithLabelValues("commit")); got != 1 {
		t.Fatalf("errors_total(commit)=%v, want 1", got)
	}
}

func TestNamespaceAndConstLabelsAreApplied(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("custom"), WithConstLabels(prometheus.Labels{"env": "test"}))

	m.SetBlocked(true)
	if got := gaugeValue(t, m.blockedGauge); got != 1 {
		t.Fatalf("expected gauge to still record through a custom namespace, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "custom_blocked_transitions" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected metric family named with the custom namespace")
	}
}
