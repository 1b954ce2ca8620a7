package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	cerr "github.com/saeidalz13/battleship-server/internal/error"
	"github.com/saeidalz13/battleship-server/models/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeAlive(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 1, in)
	answerPings(peer)

	pr := NewProber(in, time.Second)
	assert.True(t, pr.Probe(context.Background(), c))
}

func TestProbeKeepsGameTraffic(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 1, in)

	// Peer sends a shot first and only then answers the ping.
	go func() {
		p, err := packet.ReadPacket(peer)
		if err != nil || p.Type() != packet.TypePing {
			return
		}
		_ = packet.WritePacket(peer, gridPacket(42))
		_ = packet.WritePacket(peer, packet.NewPing())
	}()

	pr := NewProber(in, time.Second)
	require.True(t, pr.Probe(context.Background(), c))

	p, ok := in.Take(NewKey(1, packet.TypeGrid))
	require.True(t, ok, "grid packet must stay filed")
	assert.Equal(t, byte(42), p.Body()[0])
}

func TestProbeTimeout(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 2, in)

	// Read the ping but never answer.
	go func() {
		_, _ = packet.ReadPacket(peer)
	}()

	pr := NewProber(in, 150*time.Millisecond)
	start := time.Now()
	assert.False(t, pr.Probe(context.Background(), c))
	assert.Less(t, time.Since(start), time.Second)
}

func TestProbeIgnoresStalePing(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 2, in)
	in.Put(2, packet.NewPing())

	go func() {
		_, _ = packet.ReadPacket(peer)
	}()

	pr := NewProber(in, 150*time.Millisecond)
	assert.False(t, pr.Probe(context.Background(), c))
}

func TestWatchReportsDeadClient(t *testing.T) {
	in := NewInbox()
	alive, alivePeer := newPipeClient(t, 1, in)
	dead, deadPeer := newPipeClient(t, 2, in)
	answerPings(alivePeer)
	go func() {
		for {
			if _, err := packet.ReadPacket(deadPeer); err != nil {
				return
			}
		}
	}()

	pr := NewProber(in, 150*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := pr.Watch(ctx, 50*time.Millisecond, alive, dead)

	var le *LivenessError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, uint16(2), le.Client)
	assert.ErrorIs(t, err, cerr.ErrLivenessFailure)
}

func TestWatchStopsOnCancel(t *testing.T) {
	in := NewInbox()
	c, peer := newPipeClient(t, 1, in)
	answerPings(peer)

	pr := NewProber(in, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	err := pr.Watch(ctx, 50*time.Millisecond, c)
	assert.ErrorIs(t, err, context.Canceled)
}
