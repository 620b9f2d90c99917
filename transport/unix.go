// Package transport opens and accepts the byte-stream connections a
// Peer is built around. spec.md places the transport and its exact
// socket family out of scope ("external collaborators, specified only
// at their boundaries"); this package supplies the one transport a
// single-host deployment of this runtime needs, a Unix domain socket,
// grounded on the teacher's broker.Service.Start accept-loop idiom
// (listen once, accept in a loop, hand each connection off, honor
// context cancellation by closing the listener) generalized from TCP to
// a Unix socket with stale-socket cleanup.
//
// Called by: cmd/ipcrpcd, rpcclient
// Calls: logging
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/corelane/ipcrpc/logging"
)

// Listener accepts connections on a Unix domain socket until its
// context is cancelled.
type Listener struct {
	net.Listener
	path string
}

// ListenUnix binds a Unix domain socket at path. If a socket file
// already exists at path (left behind by a process that did not clean
// up on exit), it is removed first — the socket family's usual stale
// handle problem, absent from the teacher's TCP listener.
func ListenUnix(path string) (*Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("transport: remove stale socket %q: %w", path, err)
		}
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %q: %w", path, err)
	}
	return &Listener{Listener: l, path: path}, nil
}

// Serve accepts connections until ctx is cancelled or Accept fails
// permanently, invoking handle for each one in its own goroutine.
// Accept errors that occur because ctx was cancelled or the listener
// was closed are treated as a clean shutdown; any other Accept error is
// logged and accepting continues.
func (l *Listener) Serve(ctx context.Context, log *logging.Logger, handle func(net.Conn)) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error("accept error", logging.Fields{"error": err.Error()})
			continue
		}
		go handle(conn)
	}
}

// DialUnix connects to a Unix domain socket at path.
func DialUnix(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", path, err)
	}
	return conn, nil
}
