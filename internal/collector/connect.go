//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package collector

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// dialer abstracts the [*net.Dialer] behavior, allowing the polling
// collector's register-block reader to be unit tested without a real TCP
// socket.
type dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// newConnectFunc returns a new [*connectFunc] dialing the given network
// ("tcp" is the only one the polling collector uses).
func newConnectFunc(d dialer, classifier telemetry.ErrClassifier, network string, logger telemetry.SLogger, timeNow func() time.Time) *connectFunc {
	return &connectFunc{
		Dialer:        d,
		ErrClassifier: classifier,
		Logger:        logger,
		Network:       network,
		TimeNow:       timeNow,
	}
}

// connectFunc dials a [netip.AddrPort] using a configured network.
//
// Returns either a valid [net.Conn] or an error, never both.
type connectFunc struct {
	Dialer        dialer
	ErrClassifier telemetry.ErrClassifier
	Logger        telemetry.SLogger
	Network       string
	TimeNow       func() time.Time
}

var _ pipe.Func[netip.AddrPort, net.Conn] = &connectFunc{}

// Call invokes the [*connectFunc] to connect to the given [netip.AddrPort].
func (op *connectFunc) Call(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(op.Network, address.String(), t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, op.Network, address.String())
	op.logConnectDone(op.Network, address.String(), t0, deadline, conn, err)
	return conn, err
}

func (op *connectFunc) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (op *connectFunc) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
