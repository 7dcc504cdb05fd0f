package motionplan

import (
	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/utils"
)

// FootprintClear reports whether a robot halfWidth millimeters wide on each side can drive the
// straight segment from a to b. It sweeps the center line and the two lines offset along the
// segment normal, sampling each at least twice per cell; any non-free or out-of-grid sample
// is a collision.
func (g *OccupancyGrid) FootprintClear(a, b r3.Vector, halfWidth float64) bool {
	d := b.Sub(a)
	if d.Norm() == 0 {
		return g.At(a) == Free
	}
	if !g.lineClear(a, b) {
		return false
	}
	if halfWidth <= 0 {
		return true
	}
	shift := r3.Vector{X: -d.Y, Y: d.X}.Normalize().Mul(halfWidth)
	return g.lineClear(a.Add(shift), b.Add(shift)) && g.lineClear(a.Sub(shift), b.Sub(shift))
}

func (g *OccupancyGrid) lineClear(a, b r3.Vector) bool {
	d := b.Sub(a)
	steps := max(int(d.Norm()/g.cellMM*2), 1)
	for i := 0; i <= steps; i++ {
		p := a.Add(d.Mul(float64(i) / float64(steps)))
		if g.At(p) != Free {
			return false
		}
	}
	return true
}

// LineOfSight reports whether every cell on the Bresenham line from (x0, y0) to (x1, y1) is
// free. The starting cell is not checked.
func (g *OccupancyGrid) LineOfSight(x0, y0, x1, y1 int) bool {
	dx := utils.AbsInt(x1 - x0)
	dy := -utils.AbsInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	x, y := x0, y0
	for x != x1 || y != y1 {
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
		if g.Cell(x, y) != Free {
			return false
		}
	}
	return true
}

// PathLength is the polyline length from start through every waypoint.
func PathLength(start r3.Vector, path []r3.Vector) float64 {
	total := 0.
	prev := start
	for _, p := range path {
		total += prev.Distance(p)
		prev = p
	}
	return total
}
