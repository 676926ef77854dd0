package connection

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the transport as seen by the manager. Abstracted so tests can
// script frames without a network.
type Conn interface {
	// Read blocks until the next frame arrives.
	Read(ctx context.Context) ([]byte, error)

	// Write transmits one frame.
	Write(ctx context.Context, data []byte) error

	// Close tears the transport down.
	Close() error
}

// Dialer establishes a transport to the given endpoint.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

// DialWebsocket is the production Dialer.
func DialWebsocket(ctx context.Context, endpoint string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}
