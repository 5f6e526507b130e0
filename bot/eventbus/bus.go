package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the bus connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Handler processes one event. Handlers must be idempotent: the watermark
// dedup is best effort and the upstream feed is at-least-once.
type Handler func(ctx context.Context, ev Event) error

type subKey struct {
	table string
	kind  Kind
}

// watermark is the identity of the last fully-processed event for one
// subscription key. An event is "processed" only after every handler for it
// has returned, so a crash mid-dispatch redelivers rather than skips.
type watermark struct {
	commitTs time.Time
	id       string
}

func (w watermark) covers(r Receipt) bool {
	if r.CommitTs.Before(w.commitTs) {
		return true
	}
	return r.CommitTs.Equal(w.commitTs) && r.ID == w.id
}

// Options tune the reconnect and dispatch behavior.
type Options struct {
	// ReconnectBaseDelay is the first backoff delay after a disconnect.
	ReconnectBaseDelay time.Duration
	// ReconnectMaxDelay caps the exponential backoff. Retries are unbounded.
	ReconnectMaxDelay time.Duration
	// Workers bounds concurrent handler execution across tables.
	Workers int
}

func (o *Options) fillDefaults() {
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = time.Second
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = time.Minute
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}

// Bus subscribes to a change feed transport and routes receipts to handlers.
//
// Delivery contract: at-least-once while connected; events during a
// disconnected window are lost unless the transport buffers them. One table's
// events are dispatched serially in receipt order; different tables proceed
// concurrently. A handler failure is logged and never aborts sibling handlers
// for the same event.
type Bus struct {
	transport Transport
	opts      Options

	mu         sync.RWMutex
	handlers   map[subKey][]Handler
	watermarks map[subKey]watermark

	state atomic.Int32
	pool  *dispatchPool

	baseCtx context.Context
}

// New creates a bus over the given transport. Subscriptions registered before
// Run survive reconnects: the same registry is resumed on every connection.
func New(transport Transport, opts Options) *Bus {
	opts.fillDefaults()
	return &Bus{
		transport:  transport,
		opts:       opts,
		handlers:   make(map[subKey][]Handler),
		watermarks: make(map[subKey]watermark),
	}
}

// Subscribe registers a handler for (table, kind). Multiple handlers per key
// run in registration order.
func (b *Bus) Subscribe(table string, kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subKey{table: table, kind: kind}
	b.handlers[key] = append(b.handlers[key], h)
}

// State returns the current connection state.
func (b *Bus) State() State {
	return State(b.state.Load())
}

func (b *Bus) setState(s State) {
	b.state.Store(int32(s))
	busStateGauge.Set(float64(s))
}

// Run drives the connect / event-loop / reconnect cycle until ctx is
// cancelled. Cancellation is the only transition to the stopped state.
func (b *Bus) Run(ctx context.Context) error {
	b.baseCtx = ctx
	b.pool = newDispatchPool(b.opts.Workers, b.dispatch)
	defer b.pool.Close()
	defer b.setState(StateStopped)

	delay := b.opts.ReconnectBaseDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.setState(StateConnecting)
		events, errs, err := b.transport.Connect(ctx)
		if err != nil {
			b.setState(StateDisconnected)
			slog.Warn("change feed connect failed", "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay, b.opts.ReconnectMaxDelay)
			reconnectsCounter.Inc()
			continue
		}

		delay = b.opts.ReconnectBaseDelay
		b.setState(StateSubscribed)
		slog.Info("change feed subscribed", "tables", b.subscribedTables())

		dropped := b.eventLoop(ctx, events, errs)
		_ = b.transport.Close()
		if !dropped {
			// ctx cancelled
			return ctx.Err()
		}

		b.setState(StateDisconnected)
		slog.Warn("change feed disconnected, reconnecting", "retry_in", delay)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextDelay(delay, b.opts.ReconnectMaxDelay)
		reconnectsCounter.Inc()
	}
}

// eventLoop consumes one connection. Returns true if the connection dropped
// and the bus should reconnect, false on context cancellation.
func (b *Bus) eventLoop(ctx context.Context, events <-chan Receipt, errs <-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-errs:
			if err != nil {
				slog.Warn("change feed transport error", "error", err)
			}
			return true
		case r, ok := <-events:
			if !ok {
				return true
			}
			eventsReceivedCounter.WithLabelValues(r.Table).Inc()
			b.pool.Add(r.Table, Event{
				Kind:       KindOf(r.Table, r.Op),
				Table:      r.Table,
				ID:         r.ID,
				Row:        r.Row,
				CommitTs:   r.CommitTs,
				ReceivedAt: time.Now(),
			})
		}
	}
}

// dispatch runs inside the per-table pool, so events for one table pass
// through here strictly in receipt order. The watermark check happens here,
// not at intake, to keep check-then-advance atomic relative to handler
// execution.
func (b *Bus) dispatch(t *poolTask) {
	ev := t.ev
	key := subKey{table: ev.Table, kind: ev.Kind}

	b.mu.RLock()
	wm, hasWm := b.watermarks[key]
	handlers := b.handlers[key]
	b.mu.RUnlock()

	if hasWm && wm.covers(Receipt{Table: ev.Table, ID: ev.ID, CommitTs: ev.CommitTs}) {
		eventsDedupedCounter.WithLabelValues(ev.Table).Inc()
		slog.Debug("duplicate event discarded", "table", ev.Table, "kind", ev.Kind, "id", ev.ID)
		return
	}

	if len(handlers) > 0 {
		eventsDispatchedCounter.WithLabelValues(ev.Table).Inc()
	}
	for _, h := range handlers {
		b.invoke(h, ev)
	}

	// Only now is the event considered processed.
	b.mu.Lock()
	b.watermarks[key] = watermark{commitTs: ev.CommitTs, id: ev.ID}
	b.mu.Unlock()
}

// invoke isolates one handler call: an error or panic is logged and never
// aborts sibling handlers.
func (b *Bus) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			handlerErrorsCounter.WithLabelValues(ev.Table).Inc()
			slog.Error("event handler panicked", "table", ev.Table, "kind", ev.Kind, "id", ev.ID, "panic", r)
		}
	}()

	if err := h(b.baseCtx, ev); err != nil {
		handlerErrorsCounter.WithLabelValues(ev.Table).Inc()
		slog.Error("event handler failed", "table", ev.Table, "kind", ev.Kind, "id", ev.ID, "error", err)
	}
}

func (b *Bus) subscribedTables() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[string]bool{}
	tables := []string{}
	for key := range b.handlers {
		if !seen[key.table] {
			seen[key.table] = true
			tables = append(tables, key.table)
		}
	}
	return tables
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits for d or until ctx is cancelled; returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
