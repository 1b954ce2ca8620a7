package battleship

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strconv"
	"text/tabwriter"

	cerr "github.com/saeidalz13/battleship-server/internal/error"
)

const (
	HazardsPerPlayer     = 3
	hazardRandomAttempts = 50
)

type ShotResult uint8

const (
	ShotMiss ShotResult = iota
	ShotHit
	ShotSunk
)

func (r ShotResult) String() string {
	switch r {
	case ShotMiss:
		return "miss"
	case ShotHit:
		return "hit"
	case ShotSunk:
		return "sunk"
	default:
		return "unknown"
	}
}

// Grid is the authoritative board shared by both players. It is not safe for
// concurrent use; the game session that owns it is its only writer.
type Grid struct {
	cells Cells
	ships [2][]*Ship
}

func NewGrid() *Grid {
	return &Grid{}
}

func (g *Grid) Cells() Cells {
	return g.cells
}

func (g *Grid) Cell(x, y int) Cell {
	return g.cells[x][y]
}

func (g *Grid) Ships(p Player) []*Ship {
	ships := make([]*Ship, len(g.ships[p]))
	copy(ships, g.ships[p])
	return ships
}

// ClearShips removes every ship of p together with its ship and sunk bits.
func (g *Grid) ClearShips(p Player) {
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			g.cells[x][y].set(p, bitShip, false)
			g.cells[x][y].set(p, bitSunk, false)
		}
	}
	g.ships[p] = nil
}

// canPlace reports whether neither the ship nor the ring of cells around it
// holds a ship of the same player.
func (g *Grid) canPlace(p Player, s *Ship) bool {
	for x := s.start.X - 1; x <= s.end.X+1; x++ {
		for y := s.start.Y - 1; y <= s.end.Y+1; y++ {
			if !NewCoord(x, y).InBounds() {
				continue
			}
			if g.cells[x][y].HasShip(p) {
				return false
			}
		}
	}
	return true
}

func (g *Grid) PlaceShip(p Player, s *Ship) error {
	if !g.canPlace(p, s) {
		return fmt.Errorf("%s overlaps or touches another ship of %s", s, p)
	}
	for _, c := range s.Cells() {
		g.cells[c.X][c.Y].set(p, bitShip, true)
	}
	g.ships[p] = append(g.ships[p], s)
	return nil
}

// PlaceFleet replaces p's ships with a random placement of the fleet. Ships
// are placed longest first and every candidate touching an earlier ship is
// thrown away and redrawn.
func (g *Grid) PlaceFleet(p Player, fleet Fleet, rng *rand.Rand) {
	g.ClearShips(p)

	for _, length := range fleet.lengths {
		for {
			s := randomShip(length, rng)
			if g.PlaceShip(p, s) == nil {
				break
			}
		}
	}
}

// randomShip draws a start square and an orientation. A ship that would run
// off the board is laid back from the start instead.
func randomShip(length int, rng *rand.Rand) *Ship {
	index := rng.IntN(GridSize * GridSize)
	x, y := index%GridSize, index/GridSize
	xEnd, yEnd := x, y

	if rng.IntN(2) == 0 {
		xEnd = x + length - 1
		if xEnd >= GridSize {
			xEnd = x - (length - 1)
		}
	} else {
		yEnd = y + length - 1
		if yEnd >= GridSize {
			yEnd = y - (length - 1)
		}
	}

	// Both ends are on the board and share a row or column.
	s, _ := NewShip(x, y, xEnd, yEnd)
	return s
}

func (g *Grid) shipAt(p Player, x, y int) *Ship {
	for _, s := range g.ships[p] {
		if s.Covers(x, y) {
			return s
		}
	}
	return nil
}

// ApplyShot fires at the opponent of the shooter. Shooting a square twice is
// refused and leaves the board untouched.
func (g *Grid) ApplyShot(shooter Player, x, y int) (ShotResult, error) {
	if !NewCoord(x, y).InBounds() {
		return ShotMiss, cerr.ErrXorYOutOfGridBound(x, y)
	}

	target := shooter.Opponent()
	cell := &g.cells[x][y]
	if cell.HasShot(target) {
		return ShotMiss, cerr.ErrAttackPositionAlreadyShot(x, y)
	}
	cell.set(target, bitShot, true)

	ship := g.shipAt(target, x, y)
	if ship == nil {
		return ShotMiss, nil
	}

	ship.RegisterHit(x, y)
	if !ship.IsSunk() {
		return ShotHit, nil
	}

	for _, c := range ship.Cells() {
		g.cells[c.X][c.Y].set(target, bitSunk, true)
	}
	return ShotSunk, nil
}

// ProjectFor returns what p is allowed to see. p keeps its whole nibble. Of
// the opponent nibble only shots, sunk marks and ships already shot survive.
func (g *Grid) ProjectFor(p Player) Cells {
	opp := p.Opponent()

	var view Cells
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			c := g.cells[x][y]
			theirs := c.Nibble(opp) & (bitShot | bitSunk)
			if c.HasShot(opp) && c.HasShip(opp) {
				theirs |= bitShip
			}
			view[x][y] = c.Nibble(p)<<p.shift() | theirs<<opp.shift()
		}
	}
	return view
}

func (g *Grid) ClearHazards() {
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			g.cells[x][y].set(PlayerOne, bitShark, false)
			g.cells[x][y].set(PlayerTwo, bitShark, false)
		}
	}
}

// hazardAllowed reports whether p may get a hazard at (x, y): a square p can
// still shoot that holds no ship of either player and no hazard yet.
func (g *Grid) hazardAllowed(p Player, x, y int) bool {
	c := g.cells[x][y]
	opp := p.Opponent()
	return !c.HasShot(opp) && !c.HasShark(p) && !c.HasShip(opp) && !c.HasShip(p)
}

// InjectHazards clears every hazard and places HazardsPerPlayer new ones per
// player. Each hazard gets a bounded number of random draws before the board
// is scanned in order for the first allowed square. It returns how many
// hazards were placed in total.
func (g *Grid) InjectHazards(rng *rand.Rand) int {
	g.ClearHazards()

	var placed int
	for _, p := range Players {
		for i := 0; i < HazardsPerPlayer; i++ {
			if !g.placeHazard(p, rng) {
				break
			}
			placed++
		}
	}
	return placed
}

func (g *Grid) placeHazard(p Player, rng *rand.Rand) bool {
	for attempt := 0; attempt < hazardRandomAttempts; attempt++ {
		x, y := rng.IntN(GridSize), rng.IntN(GridSize)
		if g.hazardAllowed(p, x, y) {
			g.cells[x][y].set(p, bitShark, true)
			return true
		}
	}

	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if g.hazardAllowed(p, x, y) {
				g.cells[x][y].set(p, bitShark, true)
				return true
			}
		}
	}
	return false
}

func (g *Grid) ShipsLeft(p Player) int {
	var left int
	for _, s := range g.ships[p] {
		if !s.IsSunk() {
			left++
		}
	}
	return left
}

// FleetSunk reports whether p has placed ships and lost all of them.
func (g *Grid) FleetSunk(p Player) bool {
	return len(g.ships[p]) > 0 && g.ShipsLeft(p) == 0
}

// MatchesFleet reports whether submitted carries exactly p's ship squares.
func (g *Grid) MatchesFleet(p Player, submitted Cells) bool {
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if g.cells[x][y].HasShip(p) != submitted[x][y].HasShip(p) {
				return false
			}
		}
	}
	return true
}

// Render draws cells as seen by p. Rows are y and columns are x.
//
//	S own ship   X own ship hit   # own ship sunk   o shot at own water
//	* hit on opponent   ! opponent ship sunk   . miss on opponent   ^ hazard
func Render(cells Cells, p Player) string {
	var buffer bytes.Buffer
	tabWriter := tabwriter.NewWriter(&buffer, 2, 0, 1, ' ', 0)
	opp := p.Opponent()

	fmt.Fprint(tabWriter, "\t")
	for x := 0; x < GridSize; x++ {
		fmt.Fprint(tabWriter, strconv.Itoa(x)+"\t")
	}
	fmt.Fprint(tabWriter, "\n")

	for y := 0; y < GridSize; y++ {
		fmt.Fprint(tabWriter, strconv.Itoa(y)+"\t")
		for x := 0; x < GridSize; x++ {
			c := cells[x][y]
			var mark string
			switch {
			case c.HasSunk(opp):
				mark = "!"
			case c.HasShot(opp) && c.HasShip(opp):
				mark = "*"
			case c.HasShot(opp):
				mark = "."
			case c.HasSunk(p):
				mark = "#"
			case c.HasShip(p) && c.HasShot(p):
				mark = "X"
			case c.HasShip(p):
				mark = "S"
			case c.HasShot(p):
				mark = "o"
			case c.HasShark(p):
				mark = "^"
			default:
				mark = "~"
			}
			fmt.Fprint(tabWriter, mark+"\t")
		}
		fmt.Fprint(tabWriter, "\n")
	}

	tabWriter.Flush()
	return buffer.String()
}

func (g *Grid) String() string {
	return Render(g.cells, PlayerOne)
}
