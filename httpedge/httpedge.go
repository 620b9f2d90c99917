// Package httpedge defines the narrow boundary contract a host binary's
// own HTTP front end would use to let an ordinary HTTP client invoke an
// RPC service without speaking the framed binary protocol — supplemented
// from original_source/src/http_server.rs's embedded Actix server, which
// forwards inbound HTTP requests into the dispatch core as if they were
// ReceiveRequest envelopes. spec.md places the transport and any HTTP
// front end out of scope as an external collaborator; this package goes
// no further than the boundary itself: no net/http server, router, or
// middleware lives here.
//
// Called by: a host binary's own HTTP handler (not implemented here)
// Calls: envelope, rpc
package httpedge

import (
	"context"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/rpc"
)

// ServeOne constructs a synthetic request envelope carrying body as an
// opaque, already-encoded payload for service, sends it through core via
// peerAddr, and returns the resolved response or peer-reported error. A
// host binary's HTTP handler calls this once per inbound HTTP request;
// everything about routing that request to ServeOne (the URL path, the
// method, the response status mapping) is the host binary's concern.
func ServeOne(ctx context.Context, core *rpc.Core, peerAddr rpc.PeerAddress, service string, body []byte) (envelope.Envelope, error) {
	req := envelope.NewRaw(service, envelope.ConnID{}, envelope.SendRequest, body)
	return core.SendRequest(ctx, peerAddr, req)
}
