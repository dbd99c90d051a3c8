// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"context"
	"net"

	"github.com/tbmedge/edgecore/internal/pipe"
)

// newCancelWatchFunc returns a new [*cancelWatchFunc].
func newCancelWatchFunc() *cancelWatchFunc {
	return &cancelWatchFunc{}
}

// cancelWatchFunc arranges for the connection to be closed when the context
// is done (cancelled or deadline exceeded). This provides responsive cleanup
// on external cancellation (e.g. SIGINT via signal.NotifyContext) rather than
// waiting for per-poll timeouts, used by the polling collector's TCP dial.
//
// The returned connection wraps the input connection. Closing the returned
// connection unregisters the context watcher and closes the underlying
// connection, so no goroutine leaks even if the context is never cancelled.
type cancelWatchFunc struct{}

var _ pipe.Func[net.Conn, net.Conn] = &cancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc] that closes
// the connection when the context is done.
func (op *cancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
