package battleship

import "fmt"

const GridSize = 10

// Per player bits inside a nibble.
const (
	bitShark Cell = 0b1000
	bitShip  Cell = 0b0100
	bitShot  Cell = 0b0010
	bitSunk  Cell = 0b0001

	nibbleMask Cell = 0b1111
)

// Cell packs the state of one board square for both players.
//
//	ship(p):  a segment of p's fleet sits here
//	shot(p):  p's board was shot here by the opponent
//	sunk(p):  the p ship sitting here has been sunk
//	shark(p): a hazard marker shown to p on a square p may target next
type Cell uint8

func (c Cell) has(p Player, bit Cell) bool {
	return c&(bit<<p.shift()) != 0
}

func (c *Cell) set(p Player, bit Cell, on bool) {
	if on {
		*c |= bit << p.shift()
	} else {
		*c &^= bit << p.shift()
	}
}

func (c Cell) HasShip(p Player) bool  { return c.has(p, bitShip) }
func (c Cell) HasShot(p Player) bool  { return c.has(p, bitShot) }
func (c Cell) HasSunk(p Player) bool  { return c.has(p, bitSunk) }
func (c Cell) HasShark(p Player) bool { return c.has(p, bitShark) }

// WithShot is c with shot(p) set. Clients build their shot grid with it.
func (c Cell) WithShot(p Player) Cell {
	c.set(p, bitShot, true)
	return c
}

// Nibble returns the four bits owned by p, shifted down.
func (c Cell) Nibble(p Player) Cell {
	return (c >> p.shift()) & nibbleMask
}

func (c Cell) String() string {
	return fmt.Sprintf("%08b", uint8(c))
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func NewCoord(x, y int) Coord {
	return Coord{X: x, Y: y}
}

func (c Coord) InBounds() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize
}

// Cells is indexed as cells[x][y] and flattened row major on x.
type Cells [GridSize][GridSize]Cell

func CellsFromBytes(body []byte) (Cells, error) {
	var cells Cells
	if len(body) != GridSize*GridSize {
		return cells, fmt.Errorf("grid body must be %d bytes, got %d", GridSize*GridSize, len(body))
	}

	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			cells[x][y] = Cell(body[x*GridSize+y])
		}
	}
	return cells, nil
}

func (cs Cells) Bytes() [GridSize * GridSize]byte {
	var body [GridSize * GridSize]byte
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			body[x*GridSize+y] = byte(cs[x][y])
		}
	}
	return body
}

func (cs Cells) At(c Coord) Cell {
	return cs[c.X][c.Y]
}

// Diff lists every coordinate whose byte differs between the two grids.
func (cs Cells) Diff(other Cells) []Coord {
	var diff []Coord
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if cs[x][y] != other[x][y] {
				diff = append(diff, NewCoord(x, y))
			}
		}
	}
	return diff
}
