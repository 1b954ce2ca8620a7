// Package botclient plays the packet protocol from the client side. It backs
// the terminal client and the server integration tests.
package botclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	mb "github.com/saeidalz13/battleship-server/models/battleship"
	mc "github.com/saeidalz13/battleship-server/models/connection"
	"github.com/saeidalz13/battleship-server/models/packet"
)

const (
	dialTimeout  time.Duration = time.Second * 5
	writeTimeout time.Duration = time.Second * 5
)

var ErrNoTarget = errors.New("no unshot square left")

// Board is what the bot knows after a GRID packet.
type Board struct {
	Cells  mb.Cells
	Player mb.Player
	Turn   bool
	Flags  packet.Flag
}

type Result struct {
	UserID uint16
	Player mb.Player
	Won    bool
	Shots  int
}

type Bot struct {
	conn   mc.Conn
	userID uint16
	player mb.Player
	known  bool

	answerPings bool
	refreshes   int
	confirmed   bool
	shots       int
	rng         *rand.Rand
	onBoard     func(Board)
	logger      zerolog.Logger
}

type Option func(*Bot)

// WithoutPings makes the bot ignore liveness probes.
func WithoutPings() Option {
	return func(b *Bot) { b.answerPings = false }
}

// WithRefreshes asks for n fleet reshuffles before confirming.
func WithRefreshes(n int) Option {
	return func(b *Bot) { b.refreshes = n }
}

func WithSeed(seed uint64) Option {
	return func(b *Bot) { b.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithBoardHook is called for every GRID packet the bot receives.
func WithBoardHook(fn func(Board)) Option {
	return func(b *Bot) { b.onBoard = fn }
}

func New(conn mc.Conn, opts ...Option) *Bot {
	b := &Bot{
		conn:        conn,
		answerPings: true,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = log.Logger.With().Str("component", "bot").Str("remote", conn.RemoteAddr().String()).Logger()
	return b
}

// Dial connects over raw TCP.
func Dial(ctx context.Context, addr string, opts ...Option) (*Bot, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// DialWebSocket connects through the websocket gateway, e.g.
// ws://localhost:9191/battleship.
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*Bot, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return New(mc.NewWsConn(ws), opts...), nil
}

func (b *Bot) Close() error {
	return b.conn.Close()
}

func (b *Bot) send(p packet.Packet) error {
	return mc.SendPacket(b.conn, p.WithUserID(b.userID), writeTimeout)
}

// Play runs until the server announces the result or the stream ends.
// Cancelling ctx closes the connection.
func (b *Bot) Play(ctx context.Context) (Result, error) {
	stop := context.AfterFunc(ctx, func() { _ = b.conn.Close() })
	defer stop()

	for {
		p, err := packet.ReadPacket(b.conn)
		if err != nil {
			if ctx.Err() != nil {
				return b.result(false), ctx.Err()
			}
			return b.result(false), err
		}
		b.userID = p.UserID()

		switch p.Type() {
		case packet.TypePing:
			if !b.answerPings {
				continue
			}
			if err := b.send(packet.NewPing()); err != nil {
				return b.result(false), err
			}

		case packet.TypeGrid:
			if err := b.onGrid(p); err != nil {
				return b.result(false), err
			}

		case packet.TypeFlags:
			won := p.HasFlag(packet.FlagWinner)
			b.logger.Info().Bool("won", won).Int("shots", b.shots).Msg("game over")
			return b.result(won), nil

		default:
			b.logger.Debug().Str("packet", p.String()).Msg("ignored packet")
		}
	}
}

func (b *Bot) result(won bool) Result {
	return Result{UserID: b.userID, Player: b.player, Won: won, Shots: b.shots}
}

func (b *Bot) onGrid(p packet.Packet) error {
	cells, err := mb.CellsFromBytes(p.Body())
	if err != nil {
		return err
	}
	if !b.known {
		b.player, b.known = ownerOf(cells)
	}
	if b.onBoard != nil {
		b.onBoard(Board{Cells: cells, Player: b.player, Turn: p.Turn(), Flags: p.Flags()})
	}

	if !b.confirmed {
		if b.refreshes > 0 {
			b.refreshes--
			return b.send(packet.NewGrid(cells.Bytes(), packet.FlagGridRefresh, false))
		}
		b.confirmed = true
		return b.send(packet.NewGrid(cells.Bytes(), packet.FlagGridConfirm, false))
	}

	if !p.Turn() {
		return nil
	}
	target, err := b.pickTarget(cells)
	if err != nil {
		return err
	}
	shot := cells
	shot[target.X][target.Y] = shot[target.X][target.Y].WithShot(b.player.Opponent())
	b.shots++
	return b.send(packet.NewGrid(shot.Bytes(), 0, true))
}

// ownerOf tells which nibble carries the fleet. The opponent fleet is never
// visible before it is shot.
func ownerOf(cells mb.Cells) (mb.Player, bool) {
	for x := range cells {
		for y := range cells[x] {
			switch {
			case cells[x][y].HasShip(mb.PlayerOne):
				return mb.PlayerOne, true
			case cells[x][y].HasShip(mb.PlayerTwo):
				return mb.PlayerTwo, true
			}
		}
	}
	return mb.PlayerOne, false
}

func (b *Bot) pickTarget(cells mb.Cells) (mb.Coord, error) {
	opponent := b.player.Opponent()
	open := make([]mb.Coord, 0, mb.GridSize*mb.GridSize)
	for x := range cells {
		for y := range cells[x] {
			if !cells[x][y].HasShot(opponent) {
				open = append(open, mb.NewCoord(x, y))
			}
		}
	}
	if len(open) == 0 {
		return mb.Coord{}, ErrNoTarget
	}
	return open[b.rng.IntN(len(open))], nil
}
