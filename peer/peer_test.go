package peer

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
	"github.com/corelane/ipcrpc/rpc"
)

type echoRequest struct{ Text string }
type echoResponse struct{ Text string }

func echoMatcher(core *rpc.Core, env envelope.Envelope, reply rpc.PeerAddress) {
	switch env.Service {
	case "Echo":
		rpc.DeserializeInto[echoRequest](context.Background(), core, env, reply)
	default:
		core.SendError(reply, env.Service, "no handler is registered for service: "+env.Service, env.ConnID)
	}
}

func newConnectedPeers(t *testing.T) (clientCore, serverCore *rpc.Core, client *Peer, server *Peer) {
	t.Helper()
	log := logging.New(os.Stderr, "debug")

	clientConn, serverConn := net.Pipe()

	clientCore = rpc.NewCore(log, echoMatcher)
	serverCore = rpc.NewCore(log, echoMatcher)

	client = New(clientConn, clientCore, log)
	server = New(serverConn, serverCore, log)

	go client.Run()
	go server.Run()

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return clientCore, serverCore, client, server
}

func TestPeerRoundTripRequestResponse(t *testing.T) {
	clientCore, serverCore, client, _ := newConnectedPeers(t)

	rpc.RegisterService[echoRequest](serverCore, "Echo", "echo-actor", rpc.HandlerFunc[echoRequest](
		func(ctx context.Context, req echoRequest) (envelope.Envelope, error) {
			return envelope.New("Echo", envelope.ConnID{}, envelope.Response, echoResponse{Text: req.Text})
		},
	))

	req, err := envelope.New("Echo", envelope.ConnID{}, envelope.SendRequest, echoRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := clientCore.SendRequest(ctx, client, req)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	var got echoResponse
	if err := resp.Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("got.Text = %q, want %q", got.Text, "hello")
	}
}

func TestPeerConnectionLossResolvesPending(t *testing.T) {
	clientCore, serverCore, client, server := newConnectedPeers(t)

	// The handler holds the request until cleanup, so it is still pending
	// on the client when the connection drops.
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	rpc.RegisterService[echoRequest](serverCore, "Echo", "echo-actor", rpc.HandlerFunc[echoRequest](
		func(ctx context.Context, req echoRequest) (envelope.Envelope, error) {
			<-release
			return envelope.Envelope{}, nil
		},
	))

	req, _ := envelope.New("Echo", envelope.ConnID{}, envelope.SendRequest, echoRequest{Text: "hello"})

	done := make(chan error, 1)
	go func() {
		_, err := clientCore.SendRequest(context.Background(), client, req)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	server.Close()

	select {
	case err := <-done:
		if !errors.Is(err, rpc.ErrConnectionLost) {
			t.Fatalf("expected rpc.ErrConnectionLost after connection loss, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SendRequest did not resolve after connection loss")
	}
}

func TestPeerNoHandlerRespondsWithError(t *testing.T) {
	clientCore, _, client, _ := newConnectedPeers(t)

	req, _ := envelope.New("Mystery", envelope.ConnID{}, envelope.SendRequest, echoRequest{Text: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := clientCore.SendRequest(ctx, client, req)
	if err == nil {
		t.Fatalf("expected an error for a service with no registered handler")
	}
}
