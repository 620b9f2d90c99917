package envelope

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Trace carries optional distributed-tracing metadata. It is additive to
// spec.md's four required fields: zero-valued when unused, and not part
// of the wire-compatibility contract those four fields define.
type Trace struct {
	TraceID  string   `msgpack:"trace_id,omitempty"`
	SpanID   string   `msgpack:"span_id,omitempty"`
	HopCount int      `msgpack:"hop_count,omitempty"`
	Route    []string `msgpack:"route,omitempty"`
}

// Envelope is the wire message carried over a framed byte stream: a
// service name, a correlation id, a message kind, and an opaque payload.
//
// Service must be non-empty and Payload must always be present (it may be
// zero-length); Kind must be one of the values in Kind's enumeration.
// Envelope values are treated as immutable after being handed to a Peer
// or an RPC Core; AddHop is the one sanctioned in-place mutation, used
// only while an envelope is in transit through intermediate hops.
type Envelope struct {
	Service string `msgpack:"service"`
	ConnID  ConnID `msgpack:"conn_id"`
	Kind    Kind   `msgpack:"kind"`
	Payload []byte `msgpack:"payload"`
	Trace   Trace  `msgpack:"trace,omitempty"`
}

// New builds an envelope by encoding payload with the module's wire codec.
// Construction that fails serialization is a programmer error: payload is
// already a typed value known to be schema-compatible with the service it
// is being sent to.
func New(service string, connID ConnID, kind Kind, payload interface{}) (Envelope, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: marshal payload for service %q: %w", service, err)
	}
	return Envelope{
		Service: service,
		ConnID:  connID,
		Kind:    kind,
		Payload: body,
	}, nil
}

// NewRaw builds an envelope from payload bytes that are already encoded,
// for callers forwarding an opaque payload without re-decoding it.
func NewRaw(service string, connID ConnID, kind Kind, payload []byte) Envelope {
	return Envelope{Service: service, ConnID: connID, Kind: kind, Payload: payload}
}

// Unmarshal decodes the envelope's payload into v.
func (e Envelope) Unmarshal(v interface{}) error {
	return msgpack.Unmarshal(e.Payload, v)
}

// AddHop records that this envelope was processed by an agent, appending
// to the route history and incrementing the hop count.
func (e *Envelope) AddHop(agentID string) {
	e.Trace.HopCount++
	e.Trace.Route = append(e.Trace.Route, agentID)
}

// Validate checks that the envelope satisfies the invariants spec.md §3
// requires: a non-empty service name, a valid kind, and a present (though
// possibly empty) payload.
func (e Envelope) Validate() error {
	if e.Service == "" {
		return errors.New("envelope: service name is required")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("envelope: invalid kind %d", e.Kind)
	}
	if e.Payload == nil {
		return errors.New("envelope: payload must be present (may be empty)")
	}
	return nil
}
