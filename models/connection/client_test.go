package connection

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/saeidalz13/battleship-server/models/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipeClient returns a started client and the peer end of its socket.
func newPipeClient(t *testing.T, id uint16, in *Inbox) (*Client, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = peer.Close()
	})

	c := NewClient(id, server, WithReadTimeout(100*time.Millisecond), WithWriteTimeout(time.Second))
	c.Start(context.Background(), in)
	return c, peer
}

// answerPings reads everything the server sends and echoes PINGs back.
// Other packets are forwarded on the returned channel.
func answerPings(peer net.Conn) <-chan packet.Packet {
	out := make(chan packet.Packet, 16)
	go func() {
		defer close(out)
		for {
			p, err := packet.ReadPacket(peer)
			if err != nil {
				return
			}
			if p.Type() == packet.TypePing {
				if err := packet.WritePacket(peer, packet.NewPing().WithUserID(p.UserID())); err != nil {
					return
				}
				continue
			}
			out <- p
		}
	}()
	return out
}

func waitFor(t *testing.T, in *Inbox, key Key) packet.Packet {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, p, err := in.Wait(ctx, key)
	require.NoError(t, err)
	return p
}

func TestClientFilesPackets(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 7, in)

	require.NoError(t, packet.WritePacket(peer, gridPacket(5)))
	p := waitFor(t, in, NewKey(7, packet.TypeGrid))
	assert.Equal(t, byte(5), p.Body()[0])

	// Idle timeouts do not stop the reader.
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, packet.WritePacket(peer, packet.NewPing()))
	waitFor(t, in, NewKey(7, packet.TypePing))
	assert.Equal(t, uint64(2), c.Received())
}

func TestClientDiscardsFramingErrors(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 3, in)

	bad := packet.Encode(packet.TypePing, 0, false, 3, []byte{0})
	bad[len(bad)-1] = 'x'
	_, err := peer.Write(bad)
	require.NoError(t, err)

	require.NoError(t, packet.WritePacket(peer, gridPacket(1)))
	waitFor(t, in, NewKey(3, packet.TypeGrid))

	assert.Equal(t, uint64(1), c.FramingErrors())
	assert.False(t, in.Disconnected(3))
}

func TestClientPeerCloseDepositsDisconnect(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 4, in)

	require.NoError(t, peer.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := in.Wait(ctx, NewKey(4, packet.TypeGrid))
	assert.ErrorIs(t, err, ErrDisconnected)
	require.NoError(t, c.Wait(ctx))
}

func TestClientSendStampsUser(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 11, in)

	go func() {
		_ = c.Send(packet.NewFlags(true))
	}()

	p, err := packet.ReadPacket(peer)
	require.NoError(t, err)
	assert.Equal(t, uint16(11), p.UserID())
	assert.True(t, p.HasFlag(packet.FlagWinner))

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "second close is a no-op")
}

func TestClientSessionIdsAreUnique(t *testing.T) {
	in := NewInbox()
	a, _ := newPipeClient(t, 1, in)
	b, _ := newPipeClient(t, 2, in)

	assert.NotEmpty(t, a.SessionId())
	assert.NotEqual(t, a.SessionId(), b.SessionId())
	assert.NotContains(t, a.SessionId(), "=", "session ids are unpadded url-safe tokens")
}
