package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubertat/pacball/machine"
	"github.com/hubertat/pacball/wsframe"
)

type inbound struct {
	frame *wsframe.Frame
	err   error
}

// stream races inbound frames against fresh Inputs until the peer closes,
// misbehaves or ctx ends. A clean close returns nil.
func (s *Server) stream(ctx context.Context, conn net.Conn, r *bufio.Reader) error {
	frames := make(chan inbound)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			frame, err := wsframe.ReadFrame(r, MaxPayload)
			select {
			case frames <- inbound{frame, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.sendClose(conn, websocket.CloseGoingAway, "server shutting down")
			return nil

		case in := <-frames:
			if in.err != nil {
				return s.readFailed(conn, in.err)
			}
			finished, err := s.handleFrame(conn, in.frame)
			if err != nil || finished {
				return err
			}

		case <-s.Inputs.Ready():
			inputs, ok := s.Inputs.TryTake()
			if !ok {
				continue
			}
			err := s.sendInputs(conn, inputs)
			if err != nil {
				return err
			}
		}
	}
}

// handleFrame reports finished when the stream should end without error.
func (s *Server) handleFrame(conn net.Conn, frame *wsframe.Frame) (finished bool, err error) {
	if !frame.Masked {
		err = protocolError("unmasked client frame", websocket.CloseProtocolError, nil)
		s.sendClose(conn, websocket.CloseProtocolError, "frames must be masked")
		return
	}

	switch frame.Opcode {
	case wsframe.OpText:
		if !frame.Fin {
			err = protocolError("fragmented text frame", websocket.CloseUnsupportedData, nil)
			s.sendClose(conn, websocket.CloseUnsupportedData, "fragmented frames are not supported")
			return
		}
		outputs, decodeErr := machine.UnmarshalOutputs(frame.Payload)
		if decodeErr != nil {
			err = protocolError("bad outputs command", websocket.CloseInvalidFramePayloadData, decodeErr)
			s.sendClose(conn, websocket.CloseInvalidFramePayloadData, "invalid outputs")
			return
		}
		s.logger().Debug("received outputs", "outputs", outputs)
		s.Commands.Publish(outputs)

	case wsframe.OpClose:
		s.echoClose(conn, frame.Payload)
		finished = true

	default:
		s.logger().Warn("unexpected frame, closing", "opcode", frame.Opcode, "remote", conn.RemoteAddr())
		s.sendClose(conn, websocket.CloseUnsupportedData, "only text frames are accepted")
		finished = true
	}

	return
}

func (s *Server) readFailed(conn net.Conn, err error) error {
	switch {
	case errors.Is(err, wsframe.ErrPayloadTooLong):
		s.sendClose(conn, websocket.CloseMessageTooBig, "")
		return protocolError("frame too large", websocket.CloseMessageTooBig, err)
	case errors.Is(err, wsframe.ErrReservedBits), errors.Is(err, wsframe.ErrBadControl):
		s.sendClose(conn, websocket.CloseProtocolError, "")
		return protocolError("malformed frame", websocket.CloseProtocolError, err)
	}
	return &TransportError{Op: "read", Err: err}
}

func (s *Server) sendInputs(conn net.Conn, inputs machine.Inputs) error {
	payload, err := machine.MarshalInputs(inputs)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	err = wsframe.WriteFrame(conn, wsframe.OpText, payload)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// echoClose answers a peer close with its own code. A code that may not
// appear on the wire, or a truncated one, is answered with 1002.
func (s *Server) echoClose(conn net.Conn, payload []byte) {
	switch {
	case len(payload) == 0:
		conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
		wsframe.WriteFrame(conn, wsframe.OpClose, nil)
	case len(payload) == 1:
		s.sendClose(conn, websocket.CloseProtocolError, "truncated close code")
	default:
		code := int(binary.BigEndian.Uint16(payload))
		if !validCloseCode(code) {
			s.logger().Warn("invalid close code from peer", "code", code, "remote", conn.RemoteAddr())
			s.sendClose(conn, websocket.CloseProtocolError, "invalid close code")
			return
		}
		s.sendClose(conn, code, "")
	}
}

// validCloseCode accepts the codes RFC 6455 allows in a close frame:
// registered 1000-1003 and 1007-1014, and the 3000-4999 private range.
func validCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

func (s *Server) sendClose(conn net.Conn, code int, text string) {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	err := wsframe.WriteFrame(conn, wsframe.OpClose, websocket.FormatCloseMessage(code, text))
	if err != nil {
		s.logger().Debug("failed to send close frame", "code", code, "err", err)
	}
}
