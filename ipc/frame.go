// Package ipc implements the host/device link frame codec.
//
// Wire layout of one frame:
//
//	0x00 | len | anchor | channel | payload (0..251) | crc16 LE (2)
//
// len counts the bytes from anchor through the end of the checksum.
// Everything after the length byte is byte-stuffed: each zero is
// replaced by the distance to the next zero (or to the end of the body)
// and the anchor holds the distance to the first one. The leading
// delimiter is therefore the only zero on the wire, which lets a decoder
// resynchronize on any 0x00 it sees.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame size constants.
const (
	// Capacity is the maximum payload size of one frame.
	Capacity = 251
	// MaxBodySize is the largest value the length byte can declare.
	MaxBodySize = bodyOverhead + Capacity
	// MaxFrameSize is the largest finalized frame, delimiter included.
	MaxFrameSize = headerSize + MaxBodySize

	headerSize   = 2 // delimiter + length
	bodyOverhead = 4 // anchor + channel + crc16
	checksumSize = 2
	delimiter    = 0x00
)

// Frame is one decoded link message.
type Frame struct {
	Channel byte
	Payload []byte
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorIncomplete indicates Decode was called without a complete frame.
	FrameErrorIncomplete FrameErrorKind = iota
	// FrameErrorStructure indicates a broken stuffing chain or bad length.
	FrameErrorStructure
	// FrameErrorChecksum indicates a CRC mismatch.
	FrameErrorChecksum
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorIncomplete:
		return "incomplete"
	case FrameErrorStructure:
		return "structure"
	case FrameErrorChecksum:
		return "checksum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a frame decoding error.
// Link-level errors are never surfaced past the multiplexer; the kind is
// kept so drops can be counted by reason.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s: %s", e.Kind, e.Msg)
}

// FrameErrorKindOf returns the kind of a *FrameError and whether err was one.
func FrameErrorKindOf(err error) (FrameErrorKind, bool) {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind, true
	}
	return 0, false
}

// ErrPayloadTooLarge is returned by Encode for payloads above Capacity.
var ErrPayloadTooLarge = errors.New("payload exceeds frame capacity")

// Encoder accumulates one outgoing payload and serializes it.
// The zero value is ready to use.
type Encoder struct {
	payload [Capacity]byte
	n       int
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Capacity returns the maximum payload size.
func (e *Encoder) Capacity() int { return Capacity }

// Size returns the number of payload bytes accumulated so far.
func (e *Encoder) Size() int { return e.n }

// Put appends b and reports whether the encoder is full afterwards.
// A full encoder refuses further bytes.
func (e *Encoder) Put(b byte) bool {
	if e.n >= Capacity {
		return true
	}
	e.payload[e.n] = b
	e.n++
	return e.n >= Capacity
}

// Payload returns a copy of the accumulated payload bytes.
func (e *Encoder) Payload() []byte {
	return append([]byte(nil), e.payload[:e.n]...)
}

// Finalize serializes the accumulated payload as a frame on channel and
// resets the encoder.
func (e *Encoder) Finalize(channel byte) []byte {
	bodyLen := bodyOverhead + e.n
	out := make([]byte, headerSize+bodyLen)
	out[0] = delimiter
	out[1] = byte(bodyLen)

	body := out[headerSize:]
	body[1] = channel
	copy(body[2:], e.payload[:e.n])
	crc := Checksum(body[1 : 2+e.n])
	binary.LittleEndian.PutUint16(body[2+e.n:], crc)

	stuff(body)
	e.n = 0
	return out
}

// stuff replaces every zero after body[0] with the distance to the next
// zero. body[0] is the anchor and receives the distance to the first one.
func stuff(body []byte) {
	last := 0
	for i := 1; i < len(body); i++ {
		if body[i] == 0 {
			body[last] = byte(i - last)
			last = i
		}
	}
	body[last] = byte(len(body) - last)
}

// Encode is a convenience wrapper that builds one frame for payload.
func Encode(channel byte, payload []byte) ([]byte, error) {
	if len(payload) > Capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), Capacity)
	}
	var e Encoder
	for _, b := range payload {
		e.Put(b)
	}
	return e.Finalize(channel), nil
}

// Decoder reassembles frames from a byte stream, one byte at a time.
// One Decoder serves one physical stream. The zero value is ready to use.
type Decoder struct {
	buf    [MaxFrameSize]byte
	n      int
	active bool
}

// NewDecoder creates a decoder waiting for a delimiter.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Put consumes one byte and reports whether a complete frame is buffered.
// A zero byte always starts a new frame; bytes outside a frame are ignored.
func (d *Decoder) Put(b byte) bool {
	if b == delimiter {
		d.buf[0] = delimiter
		d.n = 1
		d.active = true
		return false
	}
	if !d.active {
		return false
	}

	d.buf[d.n] = b
	d.n++

	if d.n == headerSize && int(b) < bodyOverhead {
		d.active = false
		return false
	}
	if d.n >= headerSize && d.n == headerSize+int(d.buf[1]) {
		d.active = false
		return true
	}
	return false
}

// Decode validates the buffered frame and returns its contents.
// The returned payload does not alias decoder memory.
func (d *Decoder) Decode() (Frame, error) {
	if d.n < headerSize || d.n != headerSize+int(d.buf[1]) {
		return Frame{}, &FrameError{Kind: FrameErrorIncomplete, Msg: fmt.Sprintf("%d bytes buffered", d.n)}
	}

	body := make([]byte, d.n-headerSize)
	copy(body, d.buf[headerSize:d.n])
	if len(body) < bodyOverhead {
		return Frame{}, &FrameError{Kind: FrameErrorStructure, Msg: fmt.Sprintf("body length %d below minimum", len(body))}
	}

	pos := 0
	for {
		step := int(body[pos])
		if step == 0 {
			return Frame{}, &FrameError{Kind: FrameErrorStructure, Msg: fmt.Sprintf("zero stuffing pointer at %d", pos)}
		}
		body[pos] = 0
		pos += step
		if pos == len(body) {
			break
		}
		if pos > len(body) {
			return Frame{}, &FrameError{Kind: FrameErrorStructure, Msg: fmt.Sprintf("stuffing chain overruns body (%d > %d)", pos, len(body))}
		}
	}

	end := len(body) - checksumSize
	want := binary.LittleEndian.Uint16(body[end:])
	got := Checksum(body[1:end])
	if want != got {
		return Frame{}, &FrameError{Kind: FrameErrorChecksum, Msg: fmt.Sprintf("crc 0x%04X, want 0x%04X", got, want)}
	}

	return Frame{Channel: body[1], Payload: body[2:end]}, nil
}

// DecodeFrame decodes a single finalized frame. Bytes after the first
// complete frame are ignored.
func DecodeFrame(raw []byte) (Frame, error) {
	var d Decoder
	for _, b := range raw {
		if d.Put(b) {
			return d.Decode()
		}
	}
	return Frame{}, &FrameError{Kind: FrameErrorIncomplete, Msg: "no complete frame in input"}
}
