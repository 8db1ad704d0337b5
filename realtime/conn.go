package realtime

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn abstracts the duplex socket so the reconnect/backoff machinery is
// testable without a network: tests inject a fake the test drives through
// open/message/close events.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a Conn against a websocket URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

type gorillaConn struct {
	conn *websocket.Conn
}

func (c gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c gorillaConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c gorillaConn) Close() error {
	return c.conn.Close()
}

// DefaultDialer dials with gorilla/websocket.
func DefaultDialer(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return gorillaConn{conn: conn}, nil
}
