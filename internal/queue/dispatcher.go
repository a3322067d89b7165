package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher runs best-effort side effects off the request path.  Emit
// never blocks and never reports failure to the caller: events are queued
// on a buffered channel, published by a single worker, and publish errors
// travel on their own channel to a goroutine that only logs them.
type Dispatcher struct {
	pub     Publisher
	log     *slog.Logger
	timeout time.Duration

	ch   chan SessionEvent
	errs chan error
	done chan struct{}
	wg   sync.WaitGroup

	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker.  buffer <= 0 is treated as 1.
func NewDispatcher(pub Publisher, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	d := &Dispatcher{
		pub:     pub,
		log:     logger,
		timeout: 5 * time.Second,
		ch:      make(chan SessionEvent, buffer),
		errs:    make(chan error, buffer),
		done:    make(chan struct{}),
	}
	d.wg.Add(2)
	go d.run()
	go d.logErrors()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	defer close(d.errs)

	for {
		select {
		case ev := <-d.ch:
			d.publish(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(ev SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.pub.Publish(ctx, ev); err != nil {
		d.failed.Add(1)
		select {
		case d.errs <- err:
		default:
		}
	}
}

func (d *Dispatcher) logErrors() {
	defer d.wg.Done()
	for err := range d.errs {
		d.log.Warn("session event publish failed", "error", err)
	}
}

// Emit queues an event.  When the buffer is full or the dispatcher is
// closed the event is dropped and counted.
func (d *Dispatcher) Emit(_ context.Context, ev SessionEvent) {
	if d == nil {
		return
	}
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events, drains the buffer and waits for the
// worker to finish.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded without publishing.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Failed reports how many publish attempts returned an error.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }
