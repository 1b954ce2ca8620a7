package battleship

import (
	"fmt"
	"slices"

	cerr "github.com/saeidalz13/battleship-server/internal/error"
)

// Fleet is the immutable list of ship lengths each player places.
type Fleet struct {
	lengths []int
}

func NewFleet(lengths ...int) (Fleet, error) {
	if len(lengths) == 0 {
		return Fleet{}, fmt.Errorf("fleet must contain at least one ship")
	}
	for _, l := range lengths {
		if l < 1 || l > GridSize {
			return Fleet{}, fmt.Errorf("ship length must be within [1, %d], got %d", GridSize, l)
		}
	}

	sorted := slices.Clone(lengths)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	return Fleet{lengths: sorted}, nil
}

// One 5, one 4, two 3s and one 2.
func StandardFleet() Fleet {
	return Fleet{lengths: []int{5, 4, 3, 3, 2}}
}

// Lengths returns the ship lengths in descending order.
func (f Fleet) Lengths() []int {
	return slices.Clone(f.lengths)
}

func (f Fleet) Size() int {
	return len(f.lengths)
}

func (f Fleet) Segments() int {
	var total int
	for _, l := range f.lengths {
		total += l
	}
	return total
}

type Ship struct {
	start      Coord
	end        Coord
	length     int
	horizontal bool
	hitSpots   []bool
	hits       int
}

// NewShip builds a ship spanning the two coordinates. The lower coordinate
// always becomes the start. Horizontal ships run along x.
func NewShip(x1, y1, x2, y2 int) (*Ship, error) {
	start, end := NewCoord(x1, y1), NewCoord(x2, y2)
	if !start.InBounds() || !end.InBounds() {
		return nil, cerr.ErrXorYOutOfGridBound(max(x1, x2), max(y1, y2))
	}

	var horizontal bool
	switch {
	case y1 == y2:
		horizontal = true
		if x1 > x2 {
			start, end = end, start
		}
	case x1 == x2:
		if y1 > y2 {
			start, end = end, start
		}
	default:
		return nil, cerr.ErrInvalidShipSpan(x1, y1, x2, y2)
	}

	length := end.X - start.X + end.Y - start.Y + 1
	return &Ship{
		start:      start,
		end:        end,
		length:     length,
		horizontal: horizontal,
		hitSpots:   make([]bool, length),
	}, nil
}

func (sh *Ship) Start() Coord     { return sh.start }
func (sh *Ship) End() Coord       { return sh.end }
func (sh *Ship) Length() int      { return sh.length }
func (sh *Ship) Horizontal() bool { return sh.horizontal }
func (sh *Ship) Hits() int        { return sh.hits }

func (sh *Ship) IsSunk() bool {
	return sh.hits == sh.length
}

// segment returns the index of (x, y) along the ship, or -1.
func (sh *Ship) segment(x, y int) int {
	if sh.horizontal {
		if y != sh.start.Y || x < sh.start.X || x > sh.end.X {
			return -1
		}
		return x - sh.start.X
	}
	if x != sh.start.X || y < sh.start.Y || y > sh.end.Y {
		return -1
	}
	return y - sh.start.Y
}

func (sh *Ship) Covers(x, y int) bool {
	return sh.segment(x, y) >= 0
}

// RegisterHit marks the segment at (x, y). It reports false when the
// coordinate is off the ship or that segment was already hit.
func (sh *Ship) RegisterHit(x, y int) bool {
	i := sh.segment(x, y)
	if i < 0 || sh.hitSpots[i] {
		return false
	}
	sh.hitSpots[i] = true
	sh.hits++
	return true
}

func (sh *Ship) Cells() []Coord {
	cells := make([]Coord, 0, sh.length)
	for i := 0; i < sh.length; i++ {
		if sh.horizontal {
			cells = append(cells, NewCoord(sh.start.X+i, sh.start.Y))
		} else {
			cells = append(cells, NewCoord(sh.start.X, sh.start.Y+i))
		}
	}
	return cells
}

func (sh *Ship) String() string {
	return fmt.Sprintf("ship(len=%d start=%v end=%v hits=%d)", sh.length, sh.start, sh.end, sh.hits)
}
