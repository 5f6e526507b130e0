package eventbus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	wsPingInterval  = 30 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// wsFrame is the wire shape of one change receipt, matching the JSON the
// postgres notify trigger emits.
type wsFrame struct {
	Table string          `json:"table"`
	Op    string          `json:"op"`
	ID    string          `json:"id"`
	Row   json.RawMessage `json:"row"`
	Ts    int64           `json:"ts"` // commit time, unix millis
}

// wsSubscribe is the initial frame sent after dialing.
type wsSubscribe struct {
	Type   string   `json:"type"`
	Tables []string `json:"tables"`
}

// WSTransport consumes a realtime change feed over a websocket. Each Connect
// dials a fresh connection, announces the table subscription, and reads JSON
// frames until the peer drops; the bus owns reconnection.
type WSTransport struct {
	URL    string
	Token  string
	Tables []string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport creates a websocket transport for the given feed URL.
func NewWSTransport(url, token string, tables []string) *WSTransport {
	return &WSTransport{URL: url, Token: token, Tables: tables}
}

func (t *WSTransport) Connect(ctx context.Context) (<-chan Receipt, <-chan error, error) {
	header := http.Header{}
	if t.Token != "" {
		header.Set("Authorization", "Bearer "+t.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.URL, header)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to dial change feed at %s", t.URL)
	}

	if err := conn.WriteJSON(wsSubscribe{Type: "subscribe", Tables: t.Tables}); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "failed to send subscribe frame")
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	events := make(chan Receipt, 64)
	errs := make(chan error, 1)

	pingCtx, cancelPing := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteDeadline)); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	go func() {
		defer cancelPing()
		defer close(events)
		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				select {
				case errs <- errors.Wrapf(ErrTransportDisconnected, "change feed read failed: %v", err):
				default:
				}
				return
			}

			select {
			case events <- Receipt{
				Table:    frame.Table,
				Op:       frame.Op,
				ID:       frame.ID,
				Row:      frame.Row,
				CommitTs: time.UnixMilli(frame.Ts),
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs, nil
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
