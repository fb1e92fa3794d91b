package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a duplex message connection. ReadMessage is called from a single
// reader goroutine; WriteMessage and Close only from the channel's loop.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial opens a websocket. Handshakes refused with 401/403 map to ErrUnauthorized.
func (d WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrUnauthorized, resp.StatusCode)
		}
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *websocketConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadlineSoon())
	return c.conn.Close()
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
