package navkit

import (
	"log/slog"
	"time"
)

type engineConfig struct {
	logger     *slog.Logger
	maxEntries int
	clock      func() time.Time
	observer   Observer
}

// EngineOption configures an Engine at construction, following the
// functional-options idiom used throughout this codebase's adapters and
// instrumentation packages.
type EngineOption func(*engineConfig)

// WithLogger injects the *slog.Logger the engine writes transition,
// redirect, cancel, and after-handler-failure lines to. A nil logger (or
// omitting the option) defaults to slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxEntries overrides the entry-list clamp bound (default 50). A
// non-positive value is ignored.
func WithMaxEntries(n int) EngineOption {
	return func(c *engineConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock injects the engine's source of the current time, letting
// tests supply a deterministic clock instead of wall time.
func WithClock(clock func() time.Time) EngineOption {
	return func(c *engineConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithObserver injects an Observer the engine notifies at the same points
// it logs: transition start, redirect, cancel, commit, and terminal
// error. Multiple observers can be combined with MultiObserver. Omitting
// this option leaves the engine with a no-op observer.
func WithObserver(o Observer) EngineOption {
	return func(c *engineConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

func resolveConfig(opts []EngineOption) engineConfig {
	cfg := engineConfig{
		logger:     slog.Default(),
		maxEntries: defaultMaxEntries,
		clock:      time.Now,
		observer:   noopObserver{},
	}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}
