package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/bot/eventbus"
)

// NotifyChannel is the pg_notify channel the schema triggers emit on.
const NotifyChannel = "socialbot_events"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// notifyPayload mirrors the JSON produced by the notify_change trigger.
type notifyPayload struct {
	Table string          `json:"table"`
	Op    string          `json:"op"`
	ID    string          `json:"id"`
	Row   json.RawMessage `json:"row"`
	Ts    int64           `json:"ts"` // commit time, unix millis
}

// ListenerTransport adapts a pq.Listener on the notify channel into an
// eventbus.Transport. Each Connect creates a fresh listener; a dropped
// connection is surfaced on the error channel so the bus reconnect loop
// owns recovery.
type ListenerTransport struct {
	dsn string

	mu       sync.Mutex
	listener *pq.Listener
	errs     chan error
	done     chan struct{}
}

// NewListenerTransport creates a LISTEN/NOTIFY change feed transport.
func NewListenerTransport(dsn string) *ListenerTransport {
	return &ListenerTransport{dsn: dsn}
}

func (t *ListenerTransport) Connect(ctx context.Context) (<-chan eventbus.Receipt, <-chan error, error) {
	errs := make(chan error, 1)
	reportErr := func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	listener := pq.NewListener(t.dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if ev == pq.ListenerEventConnectionAttemptFailed || ev == pq.ListenerEventDisconnected {
				reportErr(errors.Wrapf(eventbus.ErrTransportDisconnected,
					"postgres listener connection lost: %v", err))
			}
		})

	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, nil, errors.Wrapf(err, "failed to LISTEN on %s", NotifyChannel)
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.listener = listener
	t.errs = errs
	t.done = done
	t.mu.Unlock()

	events := make(chan eventbus.Receipt, 64)
	go t.readLoop(ctx, listener, events, done)

	return events, errs, nil
}

func (t *ListenerTransport) readLoop(ctx context.Context, listener *pq.Listener, events chan<- eventbus.Receipt, done chan struct{}) {
	defer close(events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case n := <-listener.Notify:
			if n == nil {
				// pq sends nil after its internal reconnect; the LISTEN is
				// re-established automatically, nothing to replay.
				slog.Debug("postgres listener re-established")
				continue
			}

			var payload notifyPayload
			if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
				slog.Warn("malformed notify payload discarded", "channel", n.Channel, "error", err)
				continue
			}

			select {
			case events <- eventbus.Receipt{
				Table:    payload.Table,
				Op:       payload.Op,
				ID:       payload.ID,
				Row:      payload.Row,
				CommitTs: time.UnixMilli(payload.Ts),
			}:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		case <-time.After(listenerPingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					slog.Warn("postgres listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (t *ListenerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	close(t.done)
	err := t.listener.Close()
	t.listener = nil
	return err
}
