package dispatch

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option is a functional option for configuring a Manager
type Option func(*options)

type options struct {
	config    Config
	logger    *slog.Logger
	clock     clockwork.Clock
	transport Transport
	bridge    Bridge
	metrics   *Metrics
}

// WithConfig applies every positive field of cfg
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.Workers > 0 {
			o.config.Workers = cfg.Workers
		}
		if cfg.Timeout > 0 {
			o.config.Timeout = cfg.Timeout
		}
		if cfg.GracePeriod > 0 {
			o.config.GracePeriod = cfg.GracePeriod
		}
		if cfg.AffinityBackoff > 0 {
			o.config.AffinityBackoff = cfg.AffinityBackoff
		}
		if cfg.DisposeTimeout > 0 {
			o.config.DisposeTimeout = cfg.DisposeTimeout
		}
		if cfg.ProgressBuffer > 0 {
			o.config.ProgressBuffer = cfg.ProgressBuffer
		}
	}
}

// WithWorkers sets the number of workers started by Start
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.config.Workers = n
		}
	}
}

// WithTimeout sets the global operation timeout enforced by the watchdog
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.config.Timeout = d
		}
	}
}

// WithGracePeriod sets how long the watchdog waits for a killed task to let go of its worker
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.config.GracePeriod = d
		}
	}
}

// WithAffinityBackoff sets how long a worker yields after handing a pinned task back
func WithAffinityBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.config.AffinityBackoff = d
		}
	}
}

// WithDisposeTimeout bounds the wait for a modal surface before disposing it
func WithDisposeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.config.DisposeTimeout = d
		}
	}
}

// WithLogger sets the logger for the manager
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the clock used for timers
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithTransport sets the connection layer; it decides whether the watchdog runs
func WithTransport(t Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithBridge connects the manager to an external UI event loop
func WithBridge(b Bridge) Option {
	return func(o *options) {
		if b != nil {
			o.bridge = b
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
