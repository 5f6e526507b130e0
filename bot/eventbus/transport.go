package eventbus

import (
	"context"

	"github.com/pkg/errors"
)

// ErrTransportDisconnected reports that the change feed connection dropped.
// Transports wrap connection-loss errors with it; the bus reconnect loop
// consumes it and handlers never see it.
var ErrTransportDisconnected = errors.New("change feed transport disconnected")

// Transport is a source of change receipts. Connect establishes a fresh
// connection and returns channels that stay valid until the connection drops;
// the bus then calls Close and dials again. Implementations must support
// repeated Connect/Close cycles on the same value.
type Transport interface {
	Connect(ctx context.Context) (<-chan Receipt, <-chan error, error)
	Close() error
}
