package motionplan

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultCellMM is the grid resolution used when none is configured.
const DefaultCellMM = 10.

// OccupancyGrid is a rasterized Arena. It is never modified after construction.
type OccupancyGrid struct {
	cellMM float64
	width  int
	height int
	cells  []CellKind
}

// NewOccupancyGrid rasterizes the arena at cellMM millimeters per cell. A cell is
// occupied if an obstacle overlaps any part of it.
func NewOccupancyGrid(arena Arena, cellMM float64) (*OccupancyGrid, error) {
	if cellMM <= 0 {
		return nil, errors.Errorf("grid cell size must be positive, got %v", cellMM)
	}
	if err := arena.Validate("arena"); err != nil {
		return nil, err
	}
	g := &OccupancyGrid{
		cellMM: cellMM,
		width:  int(math.Ceil(arena.WidthMM / cellMM)),
		height: int(math.Ceil(arena.HeightMM / cellMM)),
	}
	g.cells = make([]CellKind, g.width*g.height)
	for _, o := range arena.Obstacles {
		if o.MaxX <= o.MinX || o.MaxY <= o.MinY {
			continue
		}
		x0 := max(int(math.Floor(o.MinX/cellMM)), 0)
		y0 := max(int(math.Floor(o.MinY/cellMM)), 0)
		x1 := min(int(math.Ceil(o.MaxX/cellMM)), g.width)
		y1 := min(int(math.Ceil(o.MaxY/cellMM)), g.height)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				g.mark(x, y, o.Kind)
			}
		}
	}
	return g, nil
}

func (g *OccupancyGrid) mark(x, y int, k CellKind) {
	i := y*g.width + x
	if k > g.cells[i] {
		g.cells[i] = k
	}
}

// Size returns the grid dimensions in cells.
func (g *OccupancyGrid) Size() (int, int) {
	return g.width, g.height
}

// CellMM returns the resolution.
func (g *OccupancyGrid) CellMM() float64 {
	return g.cellMM
}

// InBounds reports whether the cell exists.
func (g *OccupancyGrid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Cell returns the content of a cell. Cells outside the grid are HardObstacle.
func (g *OccupancyGrid) Cell(x, y int) CellKind {
	if !g.InBounds(x, y) {
		return HardObstacle
	}
	return g.cells[y*g.width+x]
}

// ToCell returns the cell containing v.
func (g *OccupancyGrid) ToCell(v r3.Vector) (int, int) {
	return int(math.Floor(v.X / g.cellMM)), int(math.Floor(v.Y / g.cellMM))
}

// CellCenter returns the millimeter coordinates of a cell's center.
func (g *OccupancyGrid) CellCenter(x, y int) r3.Vector {
	return r3.Vector{X: (float64(x) + 0.5) * g.cellMM, Y: (float64(y) + 0.5) * g.cellMM}
}

// At returns the content of the cell containing v.
func (g *OccupancyGrid) At(v r3.Vector) CellKind {
	x, y := g.ToCell(v)
	return g.Cell(x, y)
}

// Inflate returns a copy where every cell closer than radiusMM to an occupied cell or to
// the arena border takes the occupying kind.
func (g *OccupancyGrid) Inflate(radiusMM float64) *OccupancyGrid {
	out := &OccupancyGrid{cellMM: g.cellMM, width: g.width, height: g.height}
	out.cells = append([]CellKind(nil), g.cells...)
	r := int(math.Ceil(radiusMM / g.cellMM))
	if r <= 0 {
		return out
	}
	rr := radiusMM / g.cellMM
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			k := g.cells[y*g.width+x]
			if k == Free {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					if math.Hypot(float64(dx), float64(dy)) >= rr || !g.InBounds(x+dx, y+dy) {
						continue
					}
					out.mark(x+dx, y+dy, k)
				}
			}
		}
	}
	// the border behaves like a wall
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := g.CellCenter(x, y)
			edge := math.Min(math.Min(c.X, float64(g.width)*g.cellMM-c.X), math.Min(c.Y, float64(g.height)*g.cellMM-c.Y))
			if edge < radiusMM {
				out.mark(x, y, HardObstacle)
			}
		}
	}
	return out
}
