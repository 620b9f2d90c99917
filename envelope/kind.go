package envelope

// Kind is the closed enumeration of wire intents an Envelope can carry.
type Kind uint8

const (
	// SendRequest marks an outgoing request locally, before it is handed
	// to a peer for transmission; it is never seen on the wire itself
	// (it is rewritten to ReceiveRequest before the peer writes it).
	SendRequest Kind = iota

	// ReceiveRequest is the wire form of a request inbound to the callee.
	ReceiveRequest

	// Response is a reply to a ReceiveRequest.
	Response

	// Error is a peer-generated failure for a specific ConnID.
	Error

	// Ack, PleaseAck and Broadcast are reserved. They are parsed like any
	// other kind, and a Peer drops them with a logged warning; the core
	// never assigns them dispatch semantics of its own.
	Ack
	PleaseAck
	Broadcast
)

func (k Kind) String() string {
	switch k {
	case SendRequest:
		return "SendRequest"
	case ReceiveRequest:
		return "ReceiveRequest"
	case Response:
		return "Response"
	case Error:
		return "Error"
	case Ack:
		return "Ack"
	case PleaseAck:
		return "PleaseAck"
	case Broadcast:
		return "Broadcast"
	default:
		return "Unknown"
	}
}

// Reserved reports whether k is one of the reserved-not-yet-implemented
// kinds (Ack, PleaseAck, Broadcast).
func (k Kind) Reserved() bool {
	switch k {
	case Ack, PleaseAck, Broadcast:
		return true
	default:
		return false
	}
}

// Valid reports whether k is one of the known Kind values.
func (k Kind) Valid() bool {
	return k <= Broadcast
}
