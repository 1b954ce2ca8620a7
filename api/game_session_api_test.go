package api

import (
	"context"
	"net"
	"testing"
	"time"

	mb "github.com/saeidalz13/battleship-server/models/battleship"
	mc "github.com/saeidalz13/battleship-server/models/connection"
	"github.com/saeidalz13/battleship-server/models/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePeer is the far end of a client pipe. Everything the server writes is
// queued so server writes never block.
type pipePeer struct {
	conn    net.Conn
	packets chan packet.Packet
}

func newPipePeer(t *testing.T, conn net.Conn) *pipePeer {
	t.Helper()
	peer := &pipePeer{conn: conn, packets: make(chan packet.Packet, 16)}
	t.Cleanup(func() { _ = conn.Close() })
	go func() {
		for {
			p, err := packet.ReadPacket(conn)
			if err != nil {
				return
			}
			peer.packets <- p
		}
	}()
	return peer
}

func (pp *pipePeer) next(t *testing.T, typ packet.Type) packet.Packet {
	t.Helper()
	timeout := time.After(testPacketWait)
	for {
		select {
		case p := <-pp.packets:
			if p.Type() == typ {
				return p
			}
		case <-timeout:
			t.Fatalf("no %s packet within %s", typ, testPacketWait)
		}
	}
}

// newPipeSession builds a session over in-memory pipes with both fleets of a
// single two square ship confirmed, player one to move.
func newPipeSession(t *testing.T) (*GameSession, [2]*pipePeer) {
	t.Helper()
	s := NewServer(WithFleet(mustFleet(t, 2)))

	var clients [2]*mc.Client
	var peers [2]*pipePeer
	for i := range clients {
		server, client := net.Pipe()
		clients[i] = mc.NewClient(uint16(i+1), server)
		peers[i] = newPipePeer(t, client)
	}
	inbox := mc.NewInbox()
	gs := NewGameSession(s, clients, inbox, mc.NewProber(inbox, testProbeTimeout))
	t.Cleanup(func() {
		for _, c := range clients {
			_ = c.Close()
		}
	})

	for _, p := range mb.Players {
		require.NoError(t, gs.game.Confirm(p, gs.game.ProjectFor(p)))
	}
	require.True(t, gs.game.IsTurn(mb.PlayerOne))
	return gs, peers
}

// hitOnce lands player one's first shot on player two's ship and returns the
// square still afloat.
func hitOnce(t *testing.T, gs *GameSession) mb.Coord {
	t.Helper()
	segments := gs.game.Grid().Ships(mb.PlayerTwo)[0].Cells()
	require.Len(t, segments, 2)

	result, err := gs.game.Shoot(mb.PlayerOne, segments[0])
	require.NoError(t, err)
	require.Equal(t, mb.ShotHit, result)
	return segments[1]
}

func TestWinnerAnnouncedWhenLoserGoneBeforeLastShot(t *testing.T) {
	gs, peers := newPipeSession(t)
	last := hitOnce(t, gs)

	board := gs.game.ProjectFor(mb.PlayerOne)
	board[last.X][last.Y] = board[last.X][last.Y].WithShot(mb.PlayerTwo)
	gs.inbox.Put(gs.clients[0].Id(), packet.NewGrid(board.Bytes(), 0, true))

	// the loser leaves before the sinking shot is processed
	require.NoError(t, peers[1].conn.Close())
	gs.inbox.PutDisconnect(gs.clients[1].Id())

	ctx, cancel := context.WithTimeout(context.Background(), testPacketWait)
	defer cancel()
	require.NoError(t, gs.turnLoop(ctx))

	sunk := peers[0].next(t, packet.TypeGrid)
	assert.True(t, sunk.HasFlag(packet.FlagGridShipSunk))
	assert.True(t, peers[0].next(t, packet.TypeFlags).HasFlag(packet.FlagWinner))

	gs.conclude(errSessionOver)
	assert.Equal(t, OutcomeFleetSunk, gs.Outcome())
}

func TestLivenessFailureAfterLastShotKeepsWin(t *testing.T) {
	gs, peers := newPipeSession(t)
	last := hitOnce(t, gs)

	result, err := gs.game.Shoot(mb.PlayerOne, last)
	require.NoError(t, err)
	require.Equal(t, mb.ShotSunk, result)

	// the prober reports player two before the turn loop could announce
	gs.conclude(&mc.LivenessError{Client: gs.clients[1].Id()})

	assert.Equal(t, OutcomeFleetSunk, gs.Outcome())
	assert.True(t, peers[0].next(t, packet.TypeFlags).HasFlag(packet.FlagWinner))
	assert.False(t, peers[1].next(t, packet.TypeFlags).HasFlag(packet.FlagWinner))

	winner, over := gs.game.Winner()
	require.True(t, over)
	assert.Equal(t, mb.PlayerOne, winner)
	assert.Equal(t, mb.OutcomeFleetSunk, gs.game.Outcome())
}

func TestForfeitBeforeGameOver(t *testing.T) {
	gs, peers := newPipeSession(t)

	gs.conclude(&mc.LivenessError{Client: gs.clients[0].Id()})

	assert.Equal(t, OutcomeForfeit, gs.Outcome())
	assert.True(t, peers[1].next(t, packet.TypeFlags).HasFlag(packet.FlagWinner))
	winner, over := gs.game.Winner()
	require.True(t, over)
	assert.Equal(t, mb.PlayerTwo, winner)
}
