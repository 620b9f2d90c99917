// Package rpc implements the central dispatch engine: inbound request
// routing through a user-supplied matcher, an outbound pending table
// keyed by ConnId, and the send_request/send_error/register_service
// operations that tie a Peer's byte stream to typed Go service
// handlers.
//
// Called by: httpedge, rpcclient, cmd/ipcrpcd
// Calls: envelope, internal/registry, logging
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/internal/registry"
	"github.com/corelane/ipcrpc/logging"
)

// PeerAddress is the "reply channel" a Core hands envelopes to for
// transmission — satisfied by *peer.Peer, and by any test double that
// records what it was sent.
type PeerAddress interface {
	Send(env envelope.Envelope) error
}

// MatcherFunc inspects an inbound envelope's service name and calls back
// into DeserializeInto[T] for the concrete T that name identifies. The
// core cannot make this decision itself: deserializing a payload
// requires a static target type, and the core only ever sees the
// service name at runtime. Supplying this function is the one
// inescapable coupling between runtime service names and compile-time
// payload types (spec.md §4.5); it is deliberately explicit rather than
// reflective.
type MatcherFunc func(core *Core, env envelope.Envelope, reply PeerAddress)

// ErrConnectionLost is the error a pending request resolves with when
// the peer it was sent on disconnects before a response arrives.
var ErrConnectionLost = errors.New("rpc: connection lost")

// ErrPeerError is wrapped around a peer-reported Error-kind envelope's
// message when returned from SendRequest.
var ErrPeerError = errors.New("rpc: peer returned an error")

type pendingResult struct {
	env envelope.Envelope
	err error
}

type pendingEntry struct {
	result chan pendingResult
	peer   PeerAddress
}

// Core is the RPC dispatch engine. One Core is shared by every Peer and
// service actor in a process; it owns the pending table and delegates
// type-tag registration to an internal Registry.
type Core struct {
	mu      sync.Mutex
	pending map[envelope.ConnID]pendingEntry

	registry *registry.Registry
	matcher  MatcherFunc
	log      *logging.Logger
}

// NewCore builds a Core. matcher is consulted for every inbound request
// envelope (see MatcherFunc); log receives all dispatch-path
// diagnostics, including the critical entries that precede a process
// abort.
func NewCore(log *logging.Logger, matcher MatcherFunc) *Core {
	return &Core{
		pending:  make(map[envelope.ConnID]pendingEntry),
		registry: registry.New(log),
		matcher:  matcher,
		log:      log,
	}
}

// SendRequest mints a ConnId (reusing one already set on env, if any),
// installs a completion sink in the pending table, rewrites env's kind
// to ReceiveRequest, and hands it to peerAddr. It blocks until a
// Response or Error envelope resolves the sink, the peer's connection
// is lost, or ctx is done — whichever happens first.
func (c *Core) SendRequest(ctx context.Context, peerAddr PeerAddress, env envelope.Envelope) (envelope.Envelope, error) {
	if env.ConnID.IsZero() {
		env.ConnID = envelope.NewConnID()
	}
	env.Kind = envelope.ReceiveRequest

	result := make(chan pendingResult, 1)
	c.mu.Lock()
	c.pending[env.ConnID] = pendingEntry{result: result, peer: peerAddr}
	c.mu.Unlock()

	if err := peerAddr.Send(env); err != nil {
		c.mu.Lock()
		delete(c.pending, env.ConnID)
		c.mu.Unlock()
		return envelope.Envelope{}, fmt.Errorf("rpc: send request for service %q: %w", env.Service, err)
	}

	select {
	case r := <-result:
		return r.env, r.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, env.ConnID)
		c.mu.Unlock()
		return envelope.Envelope{}, ctx.Err()
	}
}

// OnInboundRequest is called by a Peer's ingest loop for every inbound
// ReceiveRequest envelope. It simply invokes the configured matcher,
// which is responsible for calling DeserializeInto[T] with the right T.
func (c *Core) OnInboundRequest(env envelope.Envelope, reply PeerAddress) {
	c.matcher(c, env, reply)
}

// OnInboundResponse fulfills the pending entry for env's ConnId with a
// success result. An unknown ConnId is a protocol violation: it is
// logged and dropped rather than propagated, matching spec.md §3's
// "pending table" invariant.
func (c *Core) OnInboundResponse(env envelope.Envelope) {
	c.resolve(env.ConnID, pendingResult{env: env})
}

// OnInboundError fulfills the pending entry for env's ConnId with a
// peer-reported error. The payload is interpreted as the error message;
// an unknown ConnId is logged and dropped.
func (c *Core) OnInboundError(env envelope.Envelope) {
	var message string
	_ = env.Unmarshal(&message)
	c.resolve(env.ConnID, pendingResult{err: fmt.Errorf("%w: %s", ErrPeerError, message)})
}

func (c *Core) resolve(connID envelope.ConnID, r pendingResult) {
	c.mu.Lock()
	entry, ok := c.pending[connID]
	if ok {
		delete(c.pending, connID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("unsolicited response for unknown conn_id", logging.Fields{"conn_id": connID.String()})
		return
	}
	entry.result <- r
}

// ConnectionLost resolves every pending entry installed against peerAddr
// as ErrConnectionLost, per spec.md §7: a dropped connection surfaces as
// a local failure on all of that peer's pending requests.
func (c *Core) ConnectionLost(peerAddr PeerAddress) {
	c.mu.Lock()
	var lost []chan pendingResult
	for connID, entry := range c.pending {
		if entry.peer == peerAddr {
			lost = append(lost, entry.result)
			delete(c.pending, connID)
		}
	}
	c.mu.Unlock()

	for _, sink := range lost {
		sink <- pendingResult{err: ErrConnectionLost}
	}
}

// RejectAll is a MatcherFunc for processes that only ever issue
// requests and never host a service of their own: every inbound request
// is answered with "no handler is registered."
func RejectAll(core *Core, env envelope.Envelope, reply PeerAddress) {
	core.SendError(reply, env.Service, fmt.Sprintf("no handler is registered for service: %s", env.Service), env.ConnID)
}

// SendError constructs and dispatches an Error-kind envelope carrying
// message, echoing serviceName and connID, via reply.
func (c *Core) SendError(reply PeerAddress, serviceName, message string, connID envelope.ConnID) {
	env, err := envelope.New(serviceName, connID, envelope.Error, message)
	if err != nil {
		c.log.Error("could not construct error envelope", logging.Fields{"service": serviceName, "error": err.Error()})
		return
	}
	if err := reply.Send(env); err != nil {
		c.log.Error("could not send error envelope", logging.Fields{"service": serviceName, "error": err.Error()})
	}
}
