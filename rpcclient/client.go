// Package rpcclient provides the caller-side convenience wrapper
// spec.md describes informally in its overview: "invoke services on a
// peer process with a typed response future." Grounded on
// internal/client.BrokerClient — connect once, correlate every call's
// response by a request id, expose a blocking Call method — generalized
// from BrokerClient's bespoke JSON-RPC request ids to this module's
// ConnId correlation, and built entirely out of the peer and rpc
// packages' existing primitives rather than any new protocol.
//
// Called by: a host binary acting as the calling side of an exchange
// Calls: envelope, rpc, peer, transport, logging
package rpcclient

import (
	"context"
	"fmt"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
	"github.com/corelane/ipcrpc/peer"
	"github.com/corelane/ipcrpc/rpc"
	"github.com/corelane/ipcrpc/transport"
)

// Client dials a Unix socket transport, wraps the connection in a Peer,
// and exposes Call for issuing typed requests. One Client owns one
// connection; concurrent Call invocations on the same Client are safe
// (they are correlated independently by ConnId) and share the
// connection's single writer goroutine.
type Client struct {
	core *rpc.Core
	peer *peer.Peer
}

// Dial connects to the Unix socket at sockPath and starts the peer's
// writer and ingest-loop goroutines. matcher handles any inbound
// ReceiveRequest this client's peer happens to receive; a pure caller
// that never accepts calls back from its peer can pass a matcher that
// only replies with "no handler is registered."
func Dial(ctx context.Context, sockPath string, log *logging.Logger, matcher rpc.MatcherFunc) (*Client, error) {
	conn, err := transport.DialUnix(ctx, sockPath)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial: %w", err)
	}

	core := rpc.NewCore(log, matcher)
	p := peer.New(conn, core, log)
	go p.Run()

	return &Client{core: core, peer: p}, nil
}

// Call sends req as a typed request to service and blocks until a
// response arrives, the connection is lost, or ctx is done.
func Call[T any](ctx context.Context, c *Client, service string, req T) (envelope.Envelope, error) {
	env, err := envelope.New(service, envelope.ConnID{}, envelope.SendRequest, req)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("rpcclient: encode request: %w", err)
	}
	return c.core.SendRequest(ctx, c.peer, env)
}

// Close closes the underlying connection. Any requests still pending on
// this client resolve as connection-lost.
func (c *Client) Close() error {
	return c.peer.Close()
}
