package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/saeidalz13/battleship-server/db/sqlc"
	cerr "github.com/saeidalz13/battleship-server/internal/error"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mb "github.com/saeidalz13/battleship-server/models/battleship"
	mc "github.com/saeidalz13/battleship-server/models/connection"
	"github.com/saeidalz13/battleship-server/models/packet"
	"golang.org/x/sync/errgroup"
)

const (
	OutcomeFleetSunk  = "fleet_sunk"
	OutcomeForfeit    = "forfeit"
	OutcomeTerminated = "terminated"
)

// errSessionOver ends the errgroup once the game finished on the board.
var errSessionOver = errors.New("session over")

// playerLostError ties a disconnect or failed write to the player it hit.
type playerLostError struct {
	player mb.Player
	cause  error
}

func (e *playerLostError) Error() string {
	return fmt.Sprintf("%s lost: %v", e.player, e.cause)
}

func (e *playerLostError) Unwrap() error {
	return e.cause
}

// GameSession drives one match between two paired clients. Client one plays
// as PlayerOne. The game is only touched by the goroutine running play and,
// after it returned, by conclude.
type GameSession struct {
	id        string
	clients   [2]*mc.Client
	inbox     *mc.Inbox
	prober    *mc.Prober
	game      *mb.Game
	startedAt time.Time

	pingInterval   time.Duration
	gameManager    mb.GameManager
	sessionManager mc.SessionManager
	analytics      *sqlc.AnalyticsManager

	mu        sync.Mutex
	over      bool
	outcome   string
	announced bool

	terminate     chan struct{}
	terminateOnce sync.Once
	done          chan struct{}
	logger        zerolog.Logger
	errLogger     zerolog.Logger
}

func NewGameSession(s *Server, clients [2]*mc.Client, inbox *mc.Inbox, prober *mc.Prober) *GameSession {
	gs := &GameSession{
		id:             uuid.NewString(),
		clients:        clients,
		inbox:          inbox,
		prober:         prober,
		game:           s.GameManager.CreateGame(nil),
		startedAt:      time.Now(),
		pingInterval:   s.pingInterval,
		gameManager:    s.GameManager,
		sessionManager: s.SessionManager,
		analytics:      s.DbManager.Analytics,
		terminate:      make(chan struct{}),
		done:           make(chan struct{}),
	}
	gs.logger = observability.Channel(observability.ChannelGame).With().
		Str("session", gs.id).
		Str("game", gs.game.Uuid()).
		Logger()
	gs.errLogger = observability.Channel(observability.ChannelError).With().
		Str("session", gs.id).
		Logger()
	return gs
}

func (gs *GameSession) Id() string            { return gs.id }
func (gs *GameSession) StartedAt() time.Time  { return gs.startedAt }
func (gs *GameSession) Done() <-chan struct{} { return gs.done }

func (gs *GameSession) Players() [2]uint16 {
	return [2]uint16{gs.clients[0].Id(), gs.clients[1].Id()}
}

func (gs *GameSession) Terminate() {
	gs.terminateOnce.Do(func() { close(gs.terminate) })
}

// Outcome is empty while the session runs.
func (gs *GameSession) Outcome() string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.outcome
}

func (gs *GameSession) Over() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.over
}

func (gs *GameSession) setOutcome(outcome string) {
	gs.mu.Lock()
	if !gs.over {
		gs.over = true
		gs.outcome = outcome
	}
	gs.mu.Unlock()
}

func (gs *GameSession) clientOf(p mb.Player) *mc.Client {
	return gs.clients[p]
}

func (gs *GameSession) playerOf(clientId uint16) mb.Player {
	if gs.clients[1].Id() == clientId {
		return mb.PlayerTwo
	}
	return mb.PlayerOne
}

func (gs *GameSession) keys(typ packet.Type) []mc.Key {
	return []mc.Key{
		mc.NewKey(gs.clients[0].Id(), typ),
		mc.NewKey(gs.clients[1].Id(), typ),
	}
}

func (gs *GameSession) run(parent context.Context) {
	defer close(gs.done)
	defer gs.teardown()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-gs.terminate:
			cancel()
		case <-ctx.Done():
		}
	}()

	observability.SessionStarted()
	gs.recordCreated()
	gs.logger.Info().
		Uint16("player_one", gs.clients[0].Id()).
		Uint16("player_two", gs.clients[1].Id()).
		Msg("starting new game")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gs.prober.Watch(gctx, gs.pingInterval, gs.clients[0], gs.clients[1])
	})
	g.Go(func() error {
		if err := gs.play(gctx); err != nil {
			return err
		}
		return errSessionOver
	})

	gs.conclude(g.Wait())
}

// conclude settles the outcome once the prober and the turn loop are gone.
// A game decided on the board stays decided whatever error ended the group.
func (gs *GameSession) conclude(err error) {
	var le *mc.LivenessError
	var lost *playerLostError

	if winner, over := gs.game.Winner(); over {
		if !gs.announced {
			gs.logger.Info().Err(err).Msg("session ended after the last shot")
			gs.announce(winner)
		}
		gs.setOutcome(OutcomeFleetSunk)
		return
	}

	switch {
	case errors.Is(err, errSessionOver):
		gs.setOutcome(OutcomeFleetSunk)

	case errors.As(err, &le):
		gs.forfeit(gs.playerOf(le.Client), err)

	case errors.As(err, &lost):
		gs.forfeit(lost.player, err)

	default:
		gs.logger.Info().Err(err).Msg("session terminated")
		gs.setOutcome(OutcomeTerminated)
	}
}

func (gs *GameSession) forfeit(loser mb.Player, cause error) {
	if !gs.game.Forfeit(loser) {
		gs.setOutcome(OutcomeTerminated)
		return
	}
	gs.gameManager.Publish(gs.game)
	gs.setOutcome(OutcomeForfeit)

	winner := loser.Opponent()
	gs.logger.Info().Err(cause).Str("loser", loser.String()).Msg("game forfeited")
	if err := gs.clientOf(winner).Send(packet.NewFlags(true)); err != nil {
		gs.logger.Debug().Err(err).Msg("winner unreachable")
	}
}

func (gs *GameSession) play(ctx context.Context) error {
	if err := gs.setup(ctx); err != nil {
		return err
	}
	return gs.turnLoop(ctx)
}

// setup lets both players reshuffle their fleet until they confirm it.
func (gs *GameSession) setup(ctx context.Context) error {
	for _, p := range mb.Players {
		if err := gs.sendBoard(p, 0); err != nil {
			return err
		}
	}

	keys := gs.keys(packet.TypeGrid)
	for gs.game.Phase() == mb.PhaseSetup {
		key, pkt, err := gs.inbox.Wait(ctx, keys...)
		if err != nil {
			return gs.waitErr(key, err)
		}
		gs.discardStray()

		p := gs.playerOf(key.Client)
		if gs.game.Confirmed(p) {
			gs.violation(p, cerr.ErrAlreadyConfirmed(int(p)+1))
			continue
		}

		switch {
		case pkt.HasFlag(packet.FlagGridRefresh):
			if err := gs.game.Refresh(p); err != nil {
				gs.violation(p, err)
				continue
			}
			if err := gs.sendBoard(p, 0); err != nil {
				return err
			}

		case pkt.HasFlag(packet.FlagGridConfirm):
			cells, err := mb.CellsFromBytes(pkt.Body())
			if err == nil {
				err = gs.game.Confirm(p, cells)
			}
			if err != nil {
				gs.violation(p, err)
				if err := gs.sendBoard(p, 0); err != nil {
					return err
				}
				continue
			}
			gs.logger.Info().Str("player", p.String()).Msg("fleet confirmed")

		default:
			gs.violation(p, cerr.ErrUnexpectedGridFlags(uint8(pkt.Flags())))
		}
	}

	for _, key := range keys {
		gs.inbox.Discard(key)
	}
	gs.gameManager.Publish(gs.game)
	return gs.broadcastBoards(0)
}

func (gs *GameSession) turnLoop(ctx context.Context) error {
	keys := gs.keys(packet.TypeGrid)
	for {
		key, pkt, err := gs.inbox.Wait(ctx, keys...)
		if err != nil {
			return gs.waitErr(key, err)
		}
		gs.discardStray()

		p := gs.playerOf(key.Client)
		if !gs.game.IsTurn(p) {
			gs.violation(p, cerr.ErrNotPlayerTurn(int(p)+1))
			continue
		}

		var (
			target mb.Coord
			result mb.ShotResult
		)
		submitted, err := mb.CellsFromBytes(pkt.Body())
		if err == nil {
			target, err = gs.game.ResolveShot(p, submitted)
		}
		if err == nil {
			result, err = gs.game.Shoot(p, target)
		}
		if err != nil {
			gs.violation(p, err)
			if err := gs.sendBoard(p, 0); err != nil {
				return err
			}
			continue
		}

		gs.logger.Info().
			Str("player", p.String()).
			Int("x", target.X).
			Int("y", target.Y).
			Str("result", result.String()).
			Msg("shot")
		gs.gameManager.Publish(gs.game)

		var flags packet.Flag
		if result == mb.ShotSunk {
			flags = packet.FlagGridShipSunk
		}
		sendErr := gs.broadcastBoards(flags)
		if winner, over := gs.game.Winner(); over {
			gs.announce(winner)
			return nil
		}
		if sendErr != nil {
			return sendErr
		}
	}
}

func (gs *GameSession) announce(winner mb.Player) {
	gs.announced = true
	gs.logger.Info().Str("winner", winner.String()).Msg("fleet sunk")
	if err := gs.clientOf(winner).Send(packet.NewFlags(true)); err != nil {
		gs.logger.Debug().Err(err).Msg("winner unreachable")
	}
	if err := gs.clientOf(winner.Opponent()).Send(packet.NewFlags(false)); err != nil {
		gs.logger.Debug().Err(err).Msg("loser unreachable")
	}
}

// sendBoard writes p's projection with p's turn bit.
func (gs *GameSession) sendBoard(p mb.Player, flags packet.Flag) error {
	board := packet.NewGrid(gs.game.ProjectFor(p).Bytes(), flags, gs.game.IsTurn(p))
	if err := gs.clientOf(p).Send(board); err != nil {
		return &playerLostError{player: p, cause: err}
	}
	return nil
}

// broadcastBoards writes to both players even when the first write fails and
// returns the first error.
func (gs *GameSession) broadcastBoards(flags packet.Flag) error {
	var first error
	for _, p := range mb.Players {
		if err := gs.sendBoard(p, flags); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (gs *GameSession) waitErr(key mc.Key, err error) error {
	if errors.Is(err, mc.ErrDisconnected) {
		return &playerLostError{player: gs.playerOf(key.Client), cause: err}
	}
	return err
}

func (gs *GameSession) violation(p mb.Player, err error) {
	observability.RecordProtocolViolation()
	gs.logger.Warn().Str("player", p.String()).Err(err).Msg("rejected packet")
}

// discardStray drops packet types the session never consumes.
func (gs *GameSession) discardStray() {
	for _, typ := range []packet.Type{packet.TypeNone, packet.TypeImage, packet.TypeFlags} {
		for _, key := range gs.keys(typ) {
			if n := gs.inbox.Discard(key); n > 0 {
				gs.logger.Debug().Uint16("user", key.Client).Str("type", typ.String()).Int("count", n).Msg("discarded packets")
			}
		}
	}
}

func (gs *GameSession) recordCreated() {
	ctx, cancel := context.WithTimeout(context.Background(), sqlc.QuerierCtxTimeout)
	defer cancel()
	if err := gs.analytics.IncrementGamesCreatedCount(ctx); err != nil {
		gs.errLogger.Error().Err(err).Msg("failed to count created game")
	}
}

func (gs *GameSession) teardown() {
	for _, c := range gs.clients {
		if err := c.Close(); err != nil {
			gs.logger.Debug().Uint16("user", c.Id()).Err(err).Msg("closing client")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), readerJoinTimeout)
	for _, c := range gs.clients {
		_ = c.Wait(ctx)
	}
	cancel()

	gs.gameManager.TerminateGame(gs.game.Uuid())
	gs.sessionManager.TerminateSession(gs.id)

	outcome := gs.Outcome()
	observability.SessionEnded(outcome, time.Since(gs.startedAt))
	gs.logger.Info().Str("outcome", outcome).Dur("duration", time.Since(gs.startedAt)).Msg("ending game")

	if outcome == OutcomeTerminated {
		return
	}
	actx, acancel := context.WithTimeout(context.Background(), sqlc.QuerierCtxTimeout)
	defer acancel()
	if err := gs.analytics.IncrementGamesFinishedCount(actx, outcome == OutcomeForfeit); err != nil {
		gs.errLogger.Error().Err(err).Msg("failed to count finished game")
	}
}
