package envelope

import "testing"

func TestNewEnvelopeMarshalsPayload(t *testing.T) {
	env, err := New("Echo", NewConnID(), ReceiveRequest, "hi")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got string
	if err := env.Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != "hi" {
		t.Fatalf("payload round trip = %q, want %q", got, "hi")
	}
}

func TestValidateRejectsEmptyService(t *testing.T) {
	env := NewRaw("", NewConnID(), ReceiveRequest, []byte{})
	if err := env.Validate(); err == nil {
		t.Fatalf("expected error for empty service name")
	}
}

func TestValidateRejectsNilPayload(t *testing.T) {
	env := Envelope{Service: "Echo", ConnID: NewConnID(), Kind: ReceiveRequest}
	if err := env.Validate(); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestValidateAcceptsEmptyPayload(t *testing.T) {
	env := NewRaw("Echo", NewConnID(), Response, []byte{})
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAddHopAppendsRoute(t *testing.T) {
	env := NewRaw("Echo", NewConnID(), ReceiveRequest, []byte{})
	env.AddHop("agent-a")
	env.AddHop("agent-b")

	if env.Trace.HopCount != 2 {
		t.Fatalf("HopCount = %d, want 2", env.Trace.HopCount)
	}
	if len(env.Trace.Route) != 2 || env.Trace.Route[0] != "agent-a" || env.Trace.Route[1] != "agent-b" {
		t.Fatalf("Route = %v, want [agent-a agent-b]", env.Trace.Route)
	}
}
