package envelope

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds the length prefix the decoder will honor. A length
// prefix larger than this is treated as framing desync rather than a
// legitimately huge envelope — the same defensive cap peer protocols in
// the retrieved example pack apply before trusting an attacker- or
// corruption-controlled length field.
const maxFrameSize = 64 << 20 // 64 MiB

const lengthPrefixSize = 4

// FrameError indicates the framing layer could not resynchronize: the
// length prefix itself was unreadable, malformed, or the frame body was
// truncated. The stream must be considered ended.
type FrameError struct{ Err error }

func (e *FrameError) Error() string { return fmt.Sprintf("envelope: frame error: %v", e.Err) }
func (e *FrameError) Unwrap() error { return e.Err }

// DecodeError indicates a single frame's body failed to decode as an
// Envelope even though the framing layer read it cleanly. The frame is
// dropped and the Decoder can continue from the next frame boundary.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return fmt.Sprintf("envelope: decode error: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Encoder frames envelopes on an underlying byte sink: a 4-byte
// big-endian length prefix followed by the msgpack encoding of the
// envelope. Encode blocks until the frame has been written, propagating
// whatever backpressure the underlying writer applies.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w for frame-at-a-time envelope writes.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one length-prefixed, msgpack-encoded envelope frame.
func (e *Encoder) Encode(env Envelope) error {
	body, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("envelope: encode frame: %w", err)
	}

	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("envelope: write frame length: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("envelope: write frame body: %w", err)
	}
	return nil
}

// Decoder produces a lazy, finite sequence of decoded envelopes from an
// underlying byte stream, terminating on peer close, transport error, or
// unrecoverable framing desync.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for frame-at-a-time envelope reads.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads and decodes the next frame.
//
// A *FrameError return means the stream can no longer be trusted to be at
// a frame boundary (or has ended); the caller must stop calling Decode.
// A *DecodeError return means this one frame was malformed but framing is
// still synchronized; the caller may call Decode again for the next frame.
func (d *Decoder) Decode() (Envelope, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
		return Envelope{}, &FrameError{Err: err}
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxFrameSize {
		return Envelope{}, &FrameError{Err: fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameSize)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return Envelope{}, &FrameError{Err: err}
	}

	var env Envelope
	if err := msgpack.Unmarshal(body, &env); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}
	return env, nil
}
