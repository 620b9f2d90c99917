// Package envelope provides the wire message structure for ipcrpc RPC
// exchanges: the correlation id, the envelope record itself, the closed
// set of message kinds, and the length-prefixed binary codec that frames
// envelopes on a byte stream.
//
// Called by: peer, rpc, rpcclient, httpedge, and any service implementation
// Calls: crypto/rand, github.com/vmihailenco/msgpack/v5
package envelope

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ConnID correlates one outbound request with its eventual response or
// error on one connection. It is opaque: callers must not interpret its
// internal structure, only compare it for equality or render it for logs.
//
// Wire representation is two 64-bit words rather than a single 128-bit
// value, matching the portable encoding spec.md requires for compatibility
// across the full target set.
type ConnID struct {
	hi uint64
	lo uint64
}

// NewConnID produces a fresh ConnID from a cryptographically-adequate RNG.
// Collisions are statistically negligible within a process lifetime.
func NewConnID() ConnID {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is a host-environment defect, not something
		// a caller can recover from locally.
		panic(fmt.Sprintf("envelope: crypto/rand unavailable: %v", err))
	}
	return ConnID{
		hi: binary.BigEndian.Uint64(buf[0:8]),
		lo: binary.BigEndian.Uint64(buf[8:16]),
	}
}

// FromWords reconstructs a ConnID from its two-word wire representation.
func FromWords(hi, lo uint64) ConnID {
	return ConnID{hi: hi, lo: lo}
}

// Words returns the two 64-bit words used for the wire representation.
func (c ConnID) Words() (hi, lo uint64) {
	return c.hi, c.lo
}

// IsZero reports whether c is the zero value (never produced by NewConnID).
func (c ConnID) IsZero() bool {
	return c.hi == 0 && c.lo == 0
}

// String renders c as a fixed-width 32-character lowercase hex string.
func (c ConnID) String() string {
	return fmt.Sprintf("%016x%016x", c.hi, c.lo)
}

var _ msgpack.CustomEncoder = ConnID{}
var _ msgpack.CustomDecoder = (*ConnID)(nil)

// EncodeMsgpack writes the ConnID as a two-element array of uint64 words,
// the wire-compatible representation spec.md mandates.
func (c ConnID) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint64(c.hi); err != nil {
		return err
	}
	return enc.EncodeUint64(c.lo)
}

// DecodeMsgpack reads the two-word array representation written by
// EncodeMsgpack.
func (c *ConnID) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("envelope: malformed conn_id: expected 2 words, got %d", n)
	}
	hi, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	lo, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	c.hi, c.lo = hi, lo
	return nil
}
