package server

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// TransportError is a failure of the socket itself: bind, accept, read or
// write. It ends the connection (or listener) but never the process.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a peer that broke the HTTP or WebSocket rules. CloseCode
// is sent to the peer when the stream is already upgraded.
type ProtocolError struct {
	Reason    string
	CloseCode int
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(reason string, code int, err error) *ProtocolError {
	if code == 0 {
		code = websocket.CloseProtocolError
	}
	return &ProtocolError{Reason: reason, CloseCode: code, Err: err}
}
