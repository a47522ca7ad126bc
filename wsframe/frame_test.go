package wsframe

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadFrame(t *testing.T) {
	maskKey := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		verify  func(t *testing.T, frame *Frame)
	}{
		{
			name: "unmasked text frame",
			data: []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'},
			verify: func(t *testing.T, frame *Frame) {
				if !frame.Fin || frame.Opcode != OpText || frame.Masked {
					t.Errorf("unexpected header %s", frame)
				}
				if string(frame.Payload) != "Hello" {
					t.Errorf("payload = %q", frame.Payload)
				}
			},
		},
		{
			name: "masked text frame",
			data: Encode(Frame{Fin: true, Opcode: OpText, Masked: true, MaskKey: maskKey, Payload: []byte(`{"ray_lamp":true}`)}),
			verify: func(t *testing.T, frame *Frame) {
				if !frame.Masked || frame.MaskKey != maskKey {
					t.Errorf("mask not parsed: %s", frame)
				}
				if string(frame.Payload) != `{"ray_lamp":true}` {
					t.Errorf("payload = %q", frame.Payload)
				}
			},
		},
		{
			name: "fragmented text frame is surfaced as is",
			data: []byte{0x01, 0x02, '{', '}'},
			verify: func(t *testing.T, frame *Frame) {
				if frame.Fin {
					t.Error("FIN should be clear")
				}
			},
		},
		{
			name: "16 bit extended length",
			data: Encode(Frame{Fin: true, Opcode: OpBinary, Payload: bytes.Repeat([]byte{0x42}, 300)}),
			verify: func(t *testing.T, frame *Frame) {
				if len(frame.Payload) != 300 {
					t.Errorf("length = %d", len(frame.Payload))
				}
			},
		},
		{
			name: "close frame with code",
			data: []byte{0x88, 0x02, 0x03, 0xE8},
			verify: func(t *testing.T, frame *Frame) {
				if frame.Opcode != OpClose || !bytes.Equal(frame.Payload, []byte{0x03, 0xE8}) {
					t.Errorf("unexpected close frame %s", frame)
				}
			},
		},
		{
			name:    "reserved bit",
			data:    []byte{0xC1, 0x00},
			wantErr: ErrReservedBits,
		},
		{
			name:    "fragmented ping",
			data:    []byte{0x09, 0x00},
			wantErr: ErrBadControl,
		},
		{
			name:    "oversized close",
			data:    append([]byte{0x88, 0x7E, 0x00, 0x7E}, make([]byte, 126)...),
			wantErr: ErrBadControl,
		},
		{
			name:    "payload over limit",
			data:    []byte{0x81, 0x7F, 0, 0, 0, 0, 0, 0, 0x40, 0x00},
			wantErr: ErrPayloadTooLong,
		},
		{
			name:    "truncated header",
			data:    []byte{0x81},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "truncated payload",
			data:    []byte{0x81, 0x05, 'H', 'i'},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "empty stream",
			data:    []byte{},
			wantErr: io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ReadFrame(bytes.NewReader(tt.data), 8192)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.verify(t, frame)
		})
	}
}

func TestEncodeUnmasked(t *testing.T) {
	got := Encode(Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")})
	want := []byte{0x81, 0x02, 'h', 'i'}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x want % x", got, want)
	}
}

func TestEncodeLengths(t *testing.T) {
	for _, n := range []int{0, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{'x'}, n)
		encoded := Encode(Frame{Fin: true, Opcode: OpBinary, Payload: payload})

		frame, err := ReadFrame(bytes.NewReader(encoded), 1<<20)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(frame.Payload) != n {
			t.Errorf("n=%d: decoded %d bytes", n, len(frame.Payload))
		}
	}
}

func TestEncodeDoesNotMaskCallerPayload(t *testing.T) {
	payload := []byte("abcd")
	Encode(Frame{Fin: true, Opcode: OpText, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: payload})

	if string(payload) != "abcd" {
		t.Errorf("caller payload modified: %q", payload)
	}
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, OpText, []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0x81, 0x02, '{', '}'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x want % x", buf.Bytes(), want)
	}
}

func TestAcceptKey(t *testing.T) {
	// sample handshake from RFC 6455 §1.3
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("got %s want %s", got, want)
	}
}

func TestOpcodeString(t *testing.T) {
	if OpPong.String() != "pong" || Opcode(0x3).String() != "unknown(0x3)" {
		t.Errorf("unexpected names: %s %s", OpPong, Opcode(0x3))
	}
	if !OpClose.IsControl() || OpText.IsControl() {
		t.Error("IsControl mismatch")
	}
}
