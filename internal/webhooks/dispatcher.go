package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/despachantemarcelino/hookd/internal/events"
	"github.com/despachantemarcelino/hookd/internal/metrics"
)

// ErrUnknownKind is returned when registering a processor for a tag that is
// not one of events.Kinds.
var ErrUnknownKind = errors.New("unknown event kind")

// Processor handles one decoded event.
type Processor interface {
	Process(ctx context.Context, ev events.Event) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, ev events.Event) error

func (f ProcessorFunc) Process(ctx context.Context, ev events.Event) error {
	return f(ctx, ev)
}

// Observer is notified of every delivery whose processor succeeded.
type Observer interface {
	Observe(ctx context.Context, d *events.Delivery) error
}

// Dispatcher routes events to the processor registered for their kind.
type Dispatcher struct {
	mu         sync.RWMutex
	processors map[events.Kind]Processor
	fallback   Processor
	observers  []Observer
}

// NewDispatcher creates a dispatcher with the logging processors installed
// for every kind and for unknown tags.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		processors: make(map[events.Kind]Processor, len(events.Kinds)),
		fallback:   ProcessorFunc(logUnknown),
	}
	for kind, p := range defaultProcessors() {
		d.processors[kind] = p
	}
	return d
}

// Register replaces the processor for kind.
func (d *Dispatcher) Register(kind events.Kind, p Processor) error {
	if !kind.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if p == nil {
		return fmt.Errorf("nil processor for %q", kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.processors[kind] = p
	return nil
}

// SetFallback replaces the processor used for unrecognized tags.
func (d *Dispatcher) SetFallback(p Processor) {
	if p == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = p
}

// AddObserver registers o to be called after each successful dispatch, in
// registration order.
func (d *Dispatcher) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Dispatch runs the processor for the delivery's event and then notifies
// observers. The first error stops the chain.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery *events.Delivery) error {
	ev := delivery.Event

	d.mu.RLock()
	p, ok := d.processors[ev.Kind()]
	if !ok {
		p = d.fallback
	}
	observers := d.observers
	d.mu.RUnlock()

	start := time.Now()
	err := p.Process(ctx, ev)
	metrics.RecordDispatch(ev.Name(), time.Since(start))
	if err != nil {
		return fmt.Errorf("processing %s event: %w", ev.Name(), err)
	}

	for _, o := range observers {
		if err := o.Observe(ctx, delivery); err != nil {
			return fmt.Errorf("recording delivery %s: %w", delivery.ID, err)
		}
	}

	return nil
}
