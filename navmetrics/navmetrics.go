// Package navmetrics instruments a navkit.Engine with Prometheus metrics,
// configured through functional options and registered via promauto.
package navmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/navkit-dev/navkit"
)

// Config configures the metrics Observer.
type Config struct {
	// Namespace is the metrics namespace (default: "navkit").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for transition duration.
	// Default: prometheus.DefBuckets. The redirect-depth histogram uses
	// its own fixed buckets and ignores this setting.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures a Config.
type Option func(*Config)

func WithNamespace(namespace string) Option { return func(c *Config) { c.Namespace = namespace } }
func WithSubsystem(subsystem string) Option { return func(c *Config) { c.Subsystem = subsystem } }
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}
func WithBuckets(buckets []float64) Option { return func(c *Config) { c.Buckets = buckets } }
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "navkit",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a navkit.Observer backed by Prometheus collectors.
type Metrics struct {
	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	redirectsTotal     *prometheus.CounterVec
	redirectDepth      prometheus.Histogram
	cancelsTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	blockedGauge       prometheus.Gauge
}

// New builds a Metrics observer, registering its collectors against the
// configured registry.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "transitions_total",
			Help:        "Total number of navigation transitions committed, by type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "transition_duration_seconds",
			Help:        "Time from transition proposal to commit, by type.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"type"}),

		redirectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "redirects_total",
			Help:        "Total number of before-handler redirects.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		redirectDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "redirect_depth",
			Help:        "Depth of the redirect chain a committed transition settled at.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),

		cancelsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "cancels_total",
			Help:        "Total number of before-handler cancellations, by type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of terminal NavigationErrors, by phase.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"phase"}),

		blockedGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "blocked_transitions",
			Help:        "1 while a blocking façade is awaiting a confirm/cancel/redirect decision, else 0.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// OnTransitionStart is a no-op; duration is measured at OnCommitted.
func (m *Metrics) OnTransitionStart(ctx context.Context, event navkit.TransitionEvent, depth int) {}

// OnRedirect records a redirect by the type of the event it aborted.
func (m *Metrics) OnRedirect(ctx context.Context, from navkit.TransitionEvent, sig *navkit.RedirectSignal, depth int) {
	m.redirectsTotal.WithLabelValues(from.Type.String()).Inc()
}

// OnCancel records a cancellation by the type of the event it aborted.
func (m *Metrics) OnCancel(ctx context.Context, event navkit.TransitionEvent) {
	m.cancelsTotal.WithLabelValues(event.Type.String()).Inc()
}

// OnCommitted records a completed transition's type, duration, and the
// redirect depth it settled at.
func (m *Metrics) OnCommitted(ctx context.Context, event navkit.NavigationEvent, depth int, duration time.Duration) {
	m.transitionsTotal.WithLabelValues(event.Type.String()).Inc()
	m.transitionDuration.WithLabelValues(event.Type.String()).Observe(duration.Seconds())
	m.redirectDepth.Observe(float64(depth))
}

// OnError records a terminal NavigationError by phase.
func (m *Metrics) OnError(ctx context.Context, err *navkit.NavigationError) {
	m.errorsTotal.WithLabelValues(err.Phase).Inc()
}

// SetBlocked sets the blocked-transition gauge. Wire a block.Facade's
// Subscribe callback to call SetBlocked(b != nil) so the gauge tracks
// the façade's Blocked/Unblocked state.
func (m *Metrics) SetBlocked(blocked bool) {
	if blocked {
		m.blockedGauge.Set(1)
	} else {
		m.blockedGauge.Set(0)
	}
}

var _ navkit.Observer = (*Metrics)(nil)
