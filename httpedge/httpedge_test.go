package httpedge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
	"github.com/corelane/ipcrpc/rpc"
)

type stubPeer struct {
	sent envelope.Envelope
	core *rpc.Core
}

func (p *stubPeer) Send(env envelope.Envelope) error {
	p.sent = env
	// Simulate an immediate reply from "the peer": echo the body back.
	resp := envelope.NewRaw(env.Service, env.ConnID, envelope.Response, env.Payload)
	p.core.OnInboundResponse(resp)
	return nil
}

func TestServeOneRoundTrips(t *testing.T) {
	log := logging.New(os.Stderr, "debug")
	core := rpc.NewCore(log, func(core *rpc.Core, env envelope.Envelope, reply rpc.PeerAddress) {})
	peer := &stubPeer{core: core}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := ServeOne(ctx, core, peer, "Echo", []byte("hello"))
	if err != nil {
		t.Fatalf("ServeOne: %v", err)
	}
	if string(resp.Payload) != "hello" {
		t.Fatalf("resp.Payload = %q, want %q", resp.Payload, "hello")
	}
	if peer.sent.Service != "Echo" {
		t.Fatalf("sent.Service = %q, want Echo", peer.sent.Service)
	}
}
