// Package wsframe reads and writes single WebSocket frames (RFC 6455 §5).
// Frames are surfaced one by one, continuation handling is left to the
// caller.
package wsframe

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

const maxControlPayload = 125

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	ErrReservedBits   = errors.New("reserved bits set")
	ErrBadControl     = errors.New("fragmented or oversized control frame")
	ErrPayloadTooLong = errors.New("payload exceeds limit")
)

func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(op))
	}
}

type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}", f.Fin, f.Opcode, f.Masked, len(f.Payload))
}

// ReadFrame reads one frame and unmasks its payload. Payloads longer than
// maxPayload are refused before they are read.
func ReadFrame(r io.Reader, maxPayload int) (*Frame, error) {
	var header [2]byte
	_, err := io.ReadFull(r, header[:])
	if err != nil {
		return nil, err
	}

	if header[0]&0x70 != 0 {
		return nil, ErrReservedBits
	}

	frame := &Frame{
		Fin:    header[0]&0x80 != 0,
		Opcode: Opcode(header[0] & 0x0F),
		Masked: header[1]&0x80 != 0,
	}

	length := uint64(header[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		_, err = io.ReadFull(r, ext[:])
		if err != nil {
			return nil, errors.Wrap(err, "failed to read extended length")
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		_, err = io.ReadFull(r, ext[:])
		if err != nil {
			return nil, errors.Wrap(err, "failed to read extended length")
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if frame.Opcode.IsControl() && (!frame.Fin || length > maxControlPayload) {
		return nil, ErrBadControl
	}
	if length > uint64(maxPayload) {
		return nil, errors.Wrapf(ErrPayloadTooLong, "%d > %d", length, maxPayload)
	}

	if frame.Masked {
		_, err = io.ReadFull(r, frame.MaskKey[:])
		if err != nil {
			return nil, errors.Wrap(err, "failed to read mask key")
		}
	}

	frame.Payload = make([]byte, length)
	_, err = io.ReadFull(r, frame.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read payload")
	}

	if frame.Masked {
		mask(frame.Payload, frame.MaskKey)
	}

	return frame, nil
}

// Encode serializes f, masking the payload when f.Masked is set.
func Encode(f Frame) []byte {
	length := len(f.Payload)
	buf := make([]byte, 0, 14+length)

	b0 := byte(f.Opcode) & 0x0F
	if f.Fin {
		b0 |= 0x80
	}
	buf = append(buf, b0)

	var maskBit byte
	if f.Masked {
		maskBit = 0x80
	}
	switch {
	case length < 126:
		buf = append(buf, maskBit|byte(length))
	case length <= 0xFFFF:
		buf = append(buf, maskBit|126)
		buf = binary.BigEndian.AppendUint16(buf, uint16(length))
	default:
		buf = append(buf, maskBit|127)
		buf = binary.BigEndian.AppendUint64(buf, uint64(length))
	}

	if f.Masked {
		buf = append(buf, f.MaskKey[:]...)
		start := len(buf)
		buf = append(buf, f.Payload...)
		mask(buf[start:], f.MaskKey)
	} else {
		buf = append(buf, f.Payload...)
	}

	return buf
}

// WriteFrame writes a single unmasked frame with FIN set, as servers do.
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	_, err := w.Write(Encode(Frame{Fin: true, Opcode: op, Payload: payload}))
	return err
}

// AcceptKey derives the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func mask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}
