package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mc "github.com/saeidalz13/battleship-server/models/connection"
	"golang.org/x/sync/errgroup"
)

const readerJoinTimeout time.Duration = time.Second * 2

// pairing holds the clients waiting for an opponent. Both slots share one
// inbox and prober, which move into the session once the pair is verified.
type pairing struct {
	server *Server
	slots  [2]*mc.Client
	inbox  *mc.Inbox
	prober *mc.Prober
	logger zerolog.Logger
}

func newPairing(s *Server) *pairing {
	p := &pairing{
		server: s,
		logger: observability.Channel(observability.ChannelPing),
	}
	p.reset()
	return p
}

func (p *pairing) reset() {
	p.slots = [2]*mc.Client{}
	p.inbox = mc.NewInbox()
	p.prober = mc.NewProber(p.inbox, p.server.probeTimeout)
}

// seat puts c into the first empty slot and starts its reader.
func (p *pairing) seat(c *mc.Client) {
	i := 0
	if p.slots[0] != nil {
		i = 1
	}
	p.slots[i] = c
	c.Start(p.server.ctx, p.inbox)
}

func (p *pairing) full() bool {
	return p.slots[0] != nil && p.slots[1] != nil
}

// lonelyDone is the reader channel of a client waiting alone, nil otherwise.
func (p *pairing) lonelyDone() <-chan struct{} {
	if p.slots[0] == nil || p.slots[1] != nil {
		return nil
	}
	return p.slots[0].Done()
}

// verify probes both slots at once. Dead clients are dropped and a surviving
// second client moves up to the first slot.
func (p *pairing) verify(ctx context.Context) bool {
	var alive [2]bool
	var g errgroup.Group
	for i, c := range p.slots {
		g.Go(func() error {
			alive[i] = p.prober.Probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	if alive[0] && alive[1] {
		return true
	}
	for i := range p.slots {
		if !alive[i] {
			p.discard(i)
		}
	}
	if p.slots[0] == nil {
		p.slots[0], p.slots[1] = p.slots[1], nil
	}
	return false
}

func (p *pairing) discard(i int) {
	c := p.slots[i]
	if c == nil {
		return
	}
	p.slots[i] = nil

	if err := c.Close(); err != nil {
		p.logger.Debug().Uint16("user", c.Id()).Err(err).Msg("closing dropped client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), readerJoinTimeout)
	_ = c.Wait(ctx)
	cancel()

	p.inbox.Purge(c.Id())
	p.logger.Info().Uint16("user", c.Id()).Msg("dropped waiting client")
}

func (p *pairing) release() {
	for i := range p.slots {
		p.discard(i)
	}
}

// pairLoop is the only consumer of incoming. It pairs clients two by two and
// starts a session for every verified pair.
func (s *Server) pairLoop() {
	p := newPairing(s)
	defer p.release()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-p.lonelyDone():
			p.discard(0)
			continue
		case c := <-s.incoming:
			p.seat(c)
		}

		if !p.full() {
			continue
		}
		if !p.verify(s.ctx) {
			continue
		}

		session := s.startSession(p.slots, p.inbox, p.prober)
		s.logger.Info().
			Str("session", session.Id()).
			Uint16("player_one", p.slots[0].Id()).
			Uint16("player_two", p.slots[1].Id()).
			Msg("paired clients")
		p.reset()
	}
}
