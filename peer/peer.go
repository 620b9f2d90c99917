// Package peer implements the per-connection actor that owns one byte
// stream: a single writer goroutine serializes outbound envelopes in
// submission order, and a single ingest-loop goroutine decodes inbound
// envelopes and forwards them to the RPC core.
//
// Grounded on the teacher's broker.Service.handleConnection, which
// gives each connection exactly one encoder and one decoder used by
// exactly one goroutine apiece — generalized here from a blocking
// request-then-reply loop into concurrent submission over an internal
// queue, since a Peer must accept writes from the RPC core's goroutine
// while its own ingest loop keeps reading concurrently.
//
// Called by: rpcclient, cmd/ipcrpcd
// Calls: envelope, rpc, logging
package peer

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
	"github.com/corelane/ipcrpc/rpc"
)

// outboundQueueCapacity bounds how many outbound envelopes Send will
// buffer before callers block on a slow or stalled connection.
const outboundQueueCapacity = 64

// ErrClosed is returned by Send once the peer's connection has
// been closed or lost.
var ErrClosed = errors.New("peer: connection closed")

// Peer owns one connection's framed byte stream end to end. Construct
// one with New for every accepted or dialed connection, then call Run
// to start its writer and ingest-loop goroutines.
type Peer struct {
	id   string
	conn net.Conn
	enc  *envelope.Encoder
	dec  *envelope.Decoder

	core *rpc.Core
	log  *logging.Logger

	outbound chan envelope.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a Peer around conn. core is the RPC dispatch engine
// inbound envelopes are routed to and outbound SendRequest calls are
// issued through; this Peer is itself the PeerAddress those calls use
// as a reply channel.
//
// Each Peer is stamped with its own random id (distinct from any
// envelope's ConnId, which scopes exactly one request/response
// exchange) so every log line this connection produces across its
// entire lifetime, not just one exchange, can be correlated — the same
// role the teacher's own envelope ID/SpanID fields used uuid.New() for.
func New(conn net.Conn, core *rpc.Core, log *logging.Logger) *Peer {
	id := uuid.New().String()
	return &Peer{
		id:       id,
		conn:     conn,
		enc:      envelope.NewEncoder(conn),
		dec:      envelope.NewDecoder(conn),
		core:     core,
		log:      log.With(logging.Fields{"peer_id": id}),
		outbound: make(chan envelope.Envelope, outboundQueueCapacity),
		closed:   make(chan struct{}),
	}
}

// ID returns this peer's log-correlation identifier.
func (p *Peer) ID() string { return p.id }

// Run starts the writer goroutine and then runs the ingest loop on the
// calling goroutine until the connection ends. Run returns once the
// connection is closed or lost; by then every pending request this peer
// was party to has been resolved as ConnectionLost (spec.md §7).
func (p *Peer) Run() {
	go p.writeLoop()
	p.ingestLoop()
}

// Send enqueues env for transmission, preserving the order in which
// callers hand envelopes to this peer (spec.md §5: "within one peer,
// outbound envelopes are written in the order they were handed to the
// peer"). Send implements rpc.PeerAddress.
func (p *Peer) Send(env envelope.Envelope) error {
	select {
	case p.outbound <- env:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// Close closes the underlying connection, unblocking both the writer
// and ingest-loop goroutines.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return p.conn.Close()
}

func (p *Peer) writeLoop() {
	for {
		select {
		case env := <-p.outbound:
			if err := p.enc.Encode(env); err != nil {
				p.log.Error("write failed, closing peer", logging.Fields{
					"conn_id": env.ConnID.String(),
					"error":   err.Error(),
				})
				p.Close()
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *Peer) ingestLoop() {
	defer func() {
		p.Close()
		p.core.ConnectionLost(p)
	}()

	for {
		env, err := p.dec.Decode()
		if err != nil {
			var decodeErr *envelope.DecodeError
			if errors.As(err, &decodeErr) {
				// A single corrupt frame; resume at the next frame boundary.
				p.log.Warn("dropping undecodable frame", logging.Fields{"error": err.Error()})
				continue
			}

			if !errors.Is(err, io.EOF) {
				p.log.Warn("ingest loop terminating", logging.Fields{"error": err.Error()})
			}
			return
		}

		p.dispatch(env)
	}
}

func (p *Peer) dispatch(env envelope.Envelope) {
	switch env.Kind {
	case envelope.ReceiveRequest:
		p.core.OnInboundRequest(env, p)
	case envelope.Response:
		p.core.OnInboundResponse(env)
	case envelope.Error:
		p.core.OnInboundError(env)
	default:
		p.log.Warn("dropping envelope of reserved or unexpected kind", logging.Fields{
			"kind":    env.Kind.String(),
			"service": env.Service,
		})
	}
}
