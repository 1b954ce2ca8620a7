package connection

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const wsCloseGrace time.Duration = time.Second

// WsConn carries the packet stream over binary websocket frames, one packet
// per frame. Reads see the frames as one continuous stream.
type WsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

var _ Conn = (*WsConn)(nil)

func NewWsConn(ws *websocket.Conn) *WsConn {
	return &WsConn{ws: ws}
}

func (c *WsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			// A text=1, binary=2, ping=9, pong=10, close=8 and continuation=0
			// frame may come in; control frames are handled by gorilla.
			mt, r, err := c.ws.NextReader()
			if err != nil {
				return 0, wsReadErr(err)
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func wsReadErr(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return io.EOF
	}
	return err
}

func (c *WsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *WsConn) Close() error {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseGrace),
	)
	return c.ws.Close()
}

// SetReadDeadline is a no-op. A gorilla connection is unusable after a read
// timeout, so idle websocket readers block until the connection is closed.
func (c *WsConn) SetReadDeadline(time.Time) error { return nil }

func (c *WsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
func (c *WsConn) RemoteAddr() net.Addr               { return c.ws.RemoteAddr() }
