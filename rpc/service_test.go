package rpc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
)

func TestDoubleRegisterServiceIsFatal(t *testing.T) {
	log := logging.New(os.Stderr, "debug")
	aborted := make(chan struct{}, 1)
	log.SetAbortFunc(func() { aborted <- struct{}{} })
	core := NewCore(log, echoMatcher)

	noop := HandlerFunc[echoRequest](func(ctx context.Context, req echoRequest) (envelope.Envelope, error) {
		return envelope.Envelope{}, nil
	})

	RegisterService[echoRequest](core, "Echo", "actor-1", noop)
	RegisterService[echoRequest](core, "Echo", "actor-2", noop)

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatalf("double RegisterService did not invoke the abort function")
	}
}

func TestHandlerFuncAdapter(t *testing.T) {
	var h Handler[echoRequest] = HandlerFunc[echoRequest](func(ctx context.Context, req echoRequest) (envelope.Envelope, error) {
		return envelope.New("Echo", envelope.ConnID{}, envelope.Response, echoResponse{Text: req.Text})
	})

	env, err := h.Handle(context.Background(), echoRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp echoResponse
	if err := env.Unmarshal(&resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Text != "hi" {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "hi")
	}
}
