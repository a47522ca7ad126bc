// Package client talks to a running controller: it streams Inputs and sends
// Outputs commands over the WebSocket endpoint.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/hubertat/pacball/machine"
)

const dialTimeout = 5 * time.Second

func websocketDialer() websocket.Dialer {
	return websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
}

type Client struct {
	conn *websocket.Conn
}

// Dial connects to a controller URL such as "ws://pacball.local/". The
// origin is sent as is when not empty.
func Dial(ctx context.Context, url, origin string) (*Client, error) {
	headers := http.Header{}
	if origin != "" {
		headers.Add("Origin", origin)
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := websocketDialer()
	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to ws dial %s", url)
	}

	return &Client{conn: conn}, nil
}

// ReadInputs blocks for the next snapshot pushed by the controller.
func (c *Client) ReadInputs() (in machine.Inputs, err error) {
	err = c.conn.ReadJSON(&in)
	return
}

func (c *Client) WriteOutputs(out machine.Outputs) error {
	return c.conn.WriteJSON(out)
}

// Close says goodbye with a normal closure and drops the connection.
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
