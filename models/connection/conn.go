package connection

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/saeidalz13/battleship-server/models/packet"
)

// Conn is the byte stream a client talks over. net.Conn satisfies it, and so
// does WsConn.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

var _ Conn = (net.Conn)(nil)

// SendPacket writes one framed packet. A zero timeout leaves the write
// deadline untouched.
func SendPacket(conn Conn, p packet.Packet, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return packet.WritePacket(conn, p)
}

// ReceivePacket blocks for one framed packet, at most timeout long. When the
// deadline passes before any byte arrived the error wraps ErrReadIdle.
func ReceivePacket(conn Conn, timeout time.Duration) (packet.Packet, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return packet.Packet{}, err
		}
	}

	p, err := packet.ReadPacket(conn)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return packet.Packet{}, fmt.Errorf("%w: %w", ErrReadIdle, err)
		}
		return packet.Packet{}, err
	}
	return p, nil
}
