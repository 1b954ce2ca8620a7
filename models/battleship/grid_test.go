package battleship

import (
	"math/rand/v2"
	"testing"

	cerr "github.com/saeidalz13/battleship-server/internal/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

func mustShip(t *testing.T, x1, y1, x2, y2 int) *Ship {
	t.Helper()
	s, err := NewShip(x1, y1, x2, y2)
	require.NoError(t, err)
	return s
}

func TestPlaceFleetNoOverlapNoTouch(t *testing.T) {
	fleet := StandardFleet()

	for seed := uint64(0); seed < 200; seed++ {
		g := NewGrid()
		rng := testRng(seed)
		g.PlaceFleet(PlayerOne, fleet, rng)
		g.PlaceFleet(PlayerTwo, fleet, rng)

		for _, p := range Players {
			ships := g.Ships(p)
			require.Len(t, ships, fleet.Size())

			owner := map[Coord]int{}
			for i, s := range ships {
				for _, c := range s.Cells() {
					require.True(t, c.InBounds(), "seed %d: %v off board", seed, c)
					_, taken := owner[c]
					require.False(t, taken, "seed %d: overlap at %v", seed, c)
					owner[c] = i
				}
			}

			for c, i := range owner {
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						j, prs := owner[NewCoord(c.X+dx, c.Y+dy)]
						if prs {
							require.Equal(t, i, j, "seed %d: ships %d and %d touch at %v", seed, i, j, c)
						}
					}
				}
			}

			var segments int
			for x := 0; x < GridSize; x++ {
				for y := 0; y < GridSize; y++ {
					if g.Cell(x, y).HasShip(p) {
						segments++
					}
				}
			}
			assert.Equal(t, fleet.Segments(), segments)
		}
	}
}

func TestPlaceFleetReplacesOnlyOwnShips(t *testing.T) {
	g := NewGrid()
	rng := testRng(3)
	g.PlaceFleet(PlayerOne, StandardFleet(), rng)
	g.PlaceFleet(PlayerTwo, StandardFleet(), rng)
	before := g.Ships(PlayerTwo)

	g.PlaceFleet(PlayerOne, StandardFleet(), rng)

	assert.Equal(t, before, g.Ships(PlayerTwo))
	assert.Len(t, g.Ships(PlayerOne), 5)
}

func TestPlaceShipRejectsTouching(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.PlaceShip(PlayerOne, mustShip(t, 2, 2, 4, 2)))

	assert.Error(t, g.PlaceShip(PlayerOne, mustShip(t, 5, 3, 5, 5)), "diagonal neighbour")
	assert.Error(t, g.PlaceShip(PlayerOne, mustShip(t, 3, 3, 3, 4)), "side neighbour")
	assert.Error(t, g.PlaceShip(PlayerOne, mustShip(t, 1, 2, 0, 2)), "end neighbour")
	assert.NoError(t, g.PlaceShip(PlayerOne, mustShip(t, 6, 2, 7, 2)))
	assert.NoError(t, g.PlaceShip(PlayerTwo, mustShip(t, 2, 2, 2, 4)), "other player may overlap")
}

func TestApplyShot(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.PlaceShip(PlayerTwo, mustShip(t, 0, 0, 1, 0)))
	require.NoError(t, g.PlaceShip(PlayerTwo, mustShip(t, 5, 5, 5, 7)))

	res, err := g.ApplyShot(PlayerOne, 9, 9)
	require.NoError(t, err)
	assert.Equal(t, ShotMiss, res)
	assert.True(t, g.Cell(9, 9).HasShot(PlayerTwo))
	assert.False(t, g.Cell(9, 9).HasShot(PlayerOne))

	res, err = g.ApplyShot(PlayerOne, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ShotHit, res)

	res, err = g.ApplyShot(PlayerOne, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, ShotSunk, res)
	assert.True(t, g.Cell(0, 0).HasSunk(PlayerTwo))
	assert.True(t, g.Cell(1, 0).HasSunk(PlayerTwo))
	assert.Equal(t, 1, g.ShipsLeft(PlayerTwo))
	assert.False(t, g.FleetSunk(PlayerTwo))

	_, err = g.ApplyShot(PlayerOne, 10, 0)
	assert.ErrorIs(t, err, cerr.ErrOutOfGridBound)
}

func TestApplyShotTwiceIsNoop(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.PlaceShip(PlayerTwo, mustShip(t, 3, 3, 3, 4)))

	res, err := g.ApplyShot(PlayerOne, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, ShotHit, res)
	before := g.Cells()

	_, err = g.ApplyShot(PlayerOne, 3, 3)
	assert.ErrorIs(t, err, cerr.ErrCellAlreadyShot)
	assert.Equal(t, before, g.Cells())

	ship := g.Ships(PlayerTwo)[0]
	assert.Equal(t, 1, ship.Hits())
	assert.False(t, ship.IsSunk())
}

func TestProjectForHidesUnshotShips(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		rng := testRng(seed)
		g := NewGrid()
		g.PlaceFleet(PlayerOne, StandardFleet(), rng)
		g.PlaceFleet(PlayerTwo, StandardFleet(), rng)

		for i := 0; i < 40; i++ {
			shooter := Players[rng.IntN(2)]
			_, _ = g.ApplyShot(shooter, rng.IntN(GridSize), rng.IntN(GridSize))
		}
		g.InjectHazards(rng)

		for _, p := range Players {
			opp := p.Opponent()
			view := g.ProjectFor(p)
			for x := 0; x < GridSize; x++ {
				for y := 0; y < GridSize; y++ {
					actual, seen := g.Cell(x, y), view[x][y]

					assert.Equal(t, actual.Nibble(p), seen.Nibble(p), "own nibble must be untouched")
					assert.Equal(t, actual.HasShot(opp), seen.HasShot(opp))
					assert.Equal(t, actual.HasSunk(opp), seen.HasSunk(opp))
					assert.False(t, seen.HasShark(opp), "opponent hazards are hidden")
					if !actual.HasShot(opp) {
						assert.False(t, seen.HasShip(opp), "seed %d: unshot enemy ship leaked at (%d,%d)", seed, x, y)
					} else {
						assert.Equal(t, actual.HasShip(opp), seen.HasShip(opp))
					}
				}
			}
		}
	}
}

func TestInjectHazards(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		rng := testRng(seed)
		g := NewGrid()
		g.PlaceFleet(PlayerOne, StandardFleet(), rng)
		g.PlaceFleet(PlayerTwo, StandardFleet(), rng)
		for i := 0; i < 30; i++ {
			_, _ = g.ApplyShot(Players[i%2], rng.IntN(GridSize), rng.IntN(GridSize))
		}

		placed := g.InjectHazards(rng)
		assert.Equal(t, 2*HazardsPerPlayer, placed)

		counts := [2]int{}
		for x := 0; x < GridSize; x++ {
			for y := 0; y < GridSize; y++ {
				c := g.Cell(x, y)
				for _, p := range Players {
					if !c.HasShark(p) {
						continue
					}
					counts[p]++
					assert.False(t, c.HasShot(p.Opponent()), "hazard on shot square")
					assert.False(t, c.HasShip(p.Opponent()), "hazard reveals enemy ship")
					assert.False(t, c.HasShip(p), "hazard on own ship")
				}
			}
		}
		assert.Equal(t, [2]int{HazardsPerPlayer, HazardsPerPlayer}, counts)
	}
}

func TestInjectHazardsFallsBackToScan(t *testing.T) {
	g := NewGrid()
	// Shoot every square of player two's board except (9,9).
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if x == 9 && y == 9 {
				continue
			}
			_, err := g.ApplyShot(PlayerOne, x, y)
			require.NoError(t, err)
		}
	}

	placed := g.InjectHazards(testRng(1))

	assert.True(t, g.Cell(9, 9).HasShark(PlayerOne))
	assert.Equal(t, 1+HazardsPerPlayer, placed)
}

func TestInjectHazardsClearsPrevious(t *testing.T) {
	g := NewGrid()
	rng := testRng(9)
	g.InjectHazards(rng)
	g.InjectHazards(rng)

	var sharks int
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			for _, p := range Players {
				if g.Cell(x, y).HasShark(p) {
					sharks++
				}
			}
		}
	}
	assert.Equal(t, 2*HazardsPerPlayer, sharks)
}

func TestCellsBytesLayout(t *testing.T) {
	var cells Cells
	cells[2][7] = Cell(0xA5)

	body := cells.Bytes()
	assert.Equal(t, byte(0xA5), body[27])

	back, err := CellsFromBytes(body[:])
	require.NoError(t, err)
	assert.Equal(t, cells, back)

	_, err = CellsFromBytes(body[:99])
	assert.Error(t, err)
}

func TestCellNibbles(t *testing.T) {
	var c Cell
	c.set(PlayerOne, bitShip, true)
	c.set(PlayerTwo, bitShot, true)

	assert.Equal(t, Cell(0x42), c)
	assert.True(t, c.HasShip(PlayerOne))
	assert.False(t, c.HasShip(PlayerTwo))
	assert.Equal(t, bitShot, c.Nibble(PlayerTwo))

	shot := c.WithShot(PlayerOne)
	assert.Equal(t, Cell(0x62), shot)
	assert.Equal(t, Cell(0x42), c, "WithShot leaves the receiver alone")
}

func TestRender(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.PlaceShip(PlayerOne, mustShip(t, 0, 0, 1, 0)))
	_, err := g.ApplyShot(PlayerTwo, 0, 0)
	require.NoError(t, err)

	out := Render(g.ProjectFor(PlayerOne), PlayerOne)
	assert.Contains(t, out, "X")
	assert.Contains(t, out, "S")
}
