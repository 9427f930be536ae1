package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of blocking
	// the login or refresh that produced them.
	DropIfFull bool
	// DeliveryTimeout bounds one Sink.Emit call. Zero means no bound.
	DeliveryTimeout time.Duration
	// OnDrop is called from Emit for every event discarded on a full buffer.
	OnDrop func(Event)
}

// Dispatcher hands audit events to a sink on a single background goroutine,
// so sinks see events in emission order and never run on the caller's path.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu guards closed against the close of queue: Emit sends under RLock,
	// Close flips closed and closes queue under Lock.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	finished chan struct{}
	dropped  atomic.Uint64
}

// NewDispatcher starts delivery. It returns nil when cfg is disabled; a nil
// *Dispatcher discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan Event, cfg.BufferSize),
		finished: make(chan struct{}),
	}
	go d.deliver()
	return d
}

// deliver drains the queue until Close closes it.
func (d *Dispatcher) deliver() {
	defer close(d.finished)
	for event := range d.queue {
		d.send(event)
	}
}

func (d *Dispatcher) send(event Event) {
	if d.cfg.DeliveryTimeout <= 0 {
		d.sink.Emit(context.Background(), event)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()
	d.sink.Emit(ctx, event)
}

// Emit queues event. After Close it is a no-op. Without DropIfFull it waits
// for buffer space or for ctx to end.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
			if d.cfg.OnDrop != nil {
				d.cfg.OnDrop(event)
			}
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events, delivers everything already queued and
// returns once the sink has seen the last one. Safe to call repeatedly.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.finished
}

// Dropped returns the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
