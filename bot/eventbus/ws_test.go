package eventbus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSTransport_DeliversFrames(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var sub wsSubscribe
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteJSON(wsFrame{Table: "comments", Op: "INSERT", ID: "c1", Ts: 1700000000000})
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	})

	tr := NewWSTransport(url, "", []string{"comments"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := tr.Connect(ctx)
	require.NoError(t, err)
	defer tr.Close()

	select {
	case rec := <-events:
		assert.Equal(t, "comments", rec.Table)
		assert.Equal(t, "INSERT", rec.Op)
		assert.Equal(t, "c1", rec.ID)
		assert.Equal(t, time.UnixMilli(1700000000000), rec.CommitTs)
	case <-time.After(5 * time.Second):
		t.Fatal("no receipt delivered")
	}
}

// A dropped connection must surface as ErrTransportDisconnected so the
// reconnect loop can tell it apart from other failures.
func TestWSTransport_DisconnectError(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		// Consume the subscribe frame, then drop the connection.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	})

	tr := NewWSTransport(url, "", []string{"comments"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, errs, err := tr.Connect(ctx)
	require.NoError(t, err)
	defer tr.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrTransportDisconnected)
	case <-time.After(5 * time.Second):
		t.Fatal("no transport error after connection drop")
	}
}
