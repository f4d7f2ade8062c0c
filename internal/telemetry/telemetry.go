// Package telemetry records one event per completed operation.
//
// Emitting is fire-and-forget: a sink failure is logged and never reaches
// the operation that produced the event.
package telemetry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/store"
)

// timeNow and newID are swapped in tests.
var (
	timeNow = time.Now
	newID   = uuid.NewString
)

// Event is one completed operation.
type Event struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Summary   string        `json:"summary"`
	At        time.Time     `json:"at"`
}

// Sink receives events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Event) error { return nil }

// EventWriter is the persistence side of StoreSink.
type EventWriter interface {
	RecordEvent(ctx context.Context, e store.Event) error
}

// StoreSink persists events in the sqlite store.
type StoreSink struct {
	w EventWriter
}

// NewStoreSink wraps w.
func NewStoreSink(w EventWriter) *StoreSink {
	return &StoreSink{w: w}
}

// Record implements Sink.
func (s *StoreSink) Record(ctx context.Context, e Event) error {
	return s.w.RecordEvent(ctx, store.Event{
		ID:        e.ID,
		Operation: e.Operation,
		Success:   e.Success,
		Duration:  e.Duration,
		Summary:   e.Summary,
		CreatedAt: e.At,
	})
}

// Emitter stamps events and hands them to a sink.
type Emitter struct {
	sink   Sink
	logger *log.Logger
}

// NewEmitter creates an Emitter. A nil sink means Nop.
func NewEmitter(sink Sink, logger *log.Logger) *Emitter {
	if sink == nil {
		sink = Nop{}
	}
	return &Emitter{sink: sink, logger: logging.OrDiscard(logger)}
}

// Emit records one event for an operation that started at start.
// It never fails.
func (em *Emitter) Emit(ctx context.Context, operation string, start time.Time, success bool, summary string) {
	now := timeNow()
	e := Event{
		ID:        newID(),
		Operation: operation,
		Success:   success,
		Duration:  now.Sub(start),
		Summary:   summary,
		At:        now.UTC(),
	}
	// The operation's own context may already be cancelled.
	if err := em.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		em.logger.Warn("telemetry: event dropped", "operation", operation, "err", err)
	}
}
