package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EventEmitter handles event emission for the orchestrator.
// It is safe for use by concurrent Handle calls.
type EventEmitter struct {
	// mu guards closed; Emit holds it shared so Close cannot close the
	// channel under a pending send.
	mu     sync.RWMutex
	closed bool

	events       chan OrchestratorEvent
	droppedCount atomic.Uint64
	logger       zerolog.Logger
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger zerolog.Logger) *EventEmitter {
	return &EventEmitter{
		events: make(chan OrchestratorEvent, bufferSize),
		logger: logger,
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it waits briefly before dropping the event.
// Events emitted after Close are dropped.
func (e *EventEmitter) Emit(event OrchestratorEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.droppedCount.Add(1)
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn().Uint64("dropped", count).Str("type", string(event.Type)).Msg("event channel full, dropped event")
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan OrchestratorEvent {
	return e.events
}

// Close closes the events channel. It is safe to call more than once.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
