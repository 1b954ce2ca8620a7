package battleship

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	cerr "github.com/saeidalz13/battleship-server/internal/error"
)

type Phase uint8

const (
	PhaseSetup Phase = iota
	PhaseTurn
	PhaseGameOver
)

func (ph Phase) String() string {
	switch ph {
	case PhaseSetup:
		return "setup"
	case PhaseTurn:
		return "turn"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

type Outcome uint8

const (
	OutcomeUndecided Outcome = iota
	OutcomeFleetSunk
	OutcomeForfeit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFleetSunk:
		return "fleet_sunk"
	case OutcomeForfeit:
		return "forfeit"
	default:
		return "undecided"
	}
}

// Game is the rule engine of one match. Only the session turn loop calls it.
type Game struct {
	uuid      string
	grid      *Grid
	fleet     Fleet
	rng       *rand.Rand
	phase     Phase
	confirmed [2]bool
	turn      Player
	winner    Player
	outcome   Outcome
	shots     [2]int
	createdAt time.Time
}

// NewGame places a fresh fleet for both players. A nil rng is replaced by a
// randomly seeded one.
func NewGame(fleet Fleet, rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	g := &Game{
		uuid:      uuid.NewString()[:6],
		grid:      NewGrid(),
		fleet:     fleet,
		rng:       rng,
		phase:     PhaseSetup,
		createdAt: time.Now(),
	}
	for _, p := range Players {
		g.grid.PlaceFleet(p, fleet, rng)
	}
	return g
}

func (g *Game) Uuid() string         { return g.uuid }
func (g *Game) Phase() Phase         { return g.phase }
func (g *Game) Outcome() Outcome     { return g.outcome }
func (g *Game) CreatedAt() time.Time { return g.createdAt }
func (g *Game) Grid() *Grid          { return g.grid }

func (g *Game) Shots(p Player) int {
	return g.shots[p]
}

// Turn reports who holds the turn token. ok is false outside PhaseTurn.
func (g *Game) Turn() (p Player, ok bool) {
	return g.turn, g.phase == PhaseTurn
}

func (g *Game) IsTurn(p Player) bool {
	return g.phase == PhaseTurn && g.turn == p
}

func (g *Game) Winner() (p Player, ok bool) {
	return g.winner, g.phase == PhaseGameOver
}

func (g *Game) Confirmed(p Player) bool {
	return g.confirmed[p]
}

func (g *Game) ProjectFor(p Player) Cells {
	return g.grid.ProjectFor(p)
}

func (g *Game) requirePhase(want Phase) error {
	if g.phase != want {
		return cerr.ErrWrongPhase(want.String(), g.phase.String())
	}
	return nil
}

// Refresh reshuffles p's fleet. It is only allowed during setup and before p
// confirmed.
func (g *Game) Refresh(p Player) error {
	if err := g.requirePhase(PhaseSetup); err != nil {
		return err
	}
	if g.confirmed[p] {
		return cerr.ErrAlreadyConfirmed(int(p) + 1)
	}

	g.grid.PlaceFleet(p, g.fleet, g.rng)
	return nil
}

// Confirm locks p's fleet in. The submitted grid must carry the same ship
// squares the server placed. Once both players confirmed the game enters
// PhaseTurn with player one to move.
func (g *Game) Confirm(p Player, submitted Cells) error {
	if err := g.requirePhase(PhaseSetup); err != nil {
		return err
	}
	if g.confirmed[p] {
		return cerr.ErrAlreadyConfirmed(int(p) + 1)
	}
	if !g.grid.MatchesFleet(p, submitted) {
		return cerr.ErrFleetMismatch(int(p) + 1)
	}

	g.confirmed[p] = true
	if g.confirmed[PlayerOne] && g.confirmed[PlayerTwo] {
		g.phase = PhaseTurn
		g.turn = PlayerOne
	}
	return nil
}

// ResolveShot finds the square a client shot at by comparing its submitted
// grid with its current view. Exactly one square may differ.
func (g *Game) ResolveShot(p Player, submitted Cells) (Coord, error) {
	if err := g.requirePhase(PhaseTurn); err != nil {
		return Coord{}, err
	}
	if g.turn != p {
		return Coord{}, cerr.ErrNotPlayerTurn(int(p) + 1)
	}

	diff := g.grid.ProjectFor(p).Diff(submitted)
	if len(diff) != 1 {
		return Coord{}, cerr.ErrShotDeltaCount(len(diff))
	}
	return diff[0], nil
}

// Shoot applies p's shot, regenerates hazards and moves the turn token. A hit
// or a sinking shot keeps the turn with p. Sinking the last ship ends the game.
func (g *Game) Shoot(p Player, target Coord) (ShotResult, error) {
	if err := g.requirePhase(PhaseTurn); err != nil {
		return ShotMiss, err
	}
	if g.turn != p {
		return ShotMiss, cerr.ErrNotPlayerTurn(int(p) + 1)
	}

	result, err := g.grid.ApplyShot(p, target.X, target.Y)
	if err != nil {
		if errors.Is(err, cerr.ErrCellAlreadyShot) || errors.Is(err, cerr.ErrOutOfGridBound) {
			return ShotMiss, fmt.Errorf("%w: %w", cerr.ErrProtocolViolation, err)
		}
		return ShotMiss, err
	}

	g.shots[p]++
	g.grid.InjectHazards(g.rng)

	if g.grid.FleetSunk(p.Opponent()) {
		g.finish(p, OutcomeFleetSunk)
		return result, nil
	}
	if result == ShotMiss {
		g.turn = p.Opponent()
	}
	return result, nil
}

// Forfeit ends the game in favour of loser's opponent. It reports false when
// the game was already over.
func (g *Game) Forfeit(loser Player) bool {
	if g.phase == PhaseGameOver {
		return false
	}
	g.finish(loser.Opponent(), OutcomeForfeit)
	return true
}

func (g *Game) finish(winner Player, outcome Outcome) {
	g.phase = PhaseGameOver
	g.winner = winner
	g.outcome = outcome
}
