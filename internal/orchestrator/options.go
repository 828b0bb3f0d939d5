package orchestrator

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultStepTimeout bounds one dispatch when no timeout is configured.
const DefaultStepTimeout = 10 * time.Second

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithStepTimeout sets the per-step dispatch timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stepTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "orchestrator").Logger() }
}

// WithMetrics records instruction and step metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEvents emits progress events.
func WithEvents(e *EventEmitter) Option {
	return func(o *Orchestrator) { o.events = e }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}
