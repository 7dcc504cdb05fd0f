// Package spatialmath holds the planar pose type shared by the controller, the planners
// and the mission layer.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/utils"
)

// Arena bounds in millimeters.
const (
	ArenaWidthMM  = 3000.
	ArenaHeightMM = 2000.
)

// Position is a pose on the table: x and y in millimeters, theta in degrees,
// counter-clockwise from the +x axis. Every constructor clamps it to the arena.
type Position struct {
	X     float64
	Y     float64
	Theta float64
}

// NewPosition returns a clamped position.
func NewPosition(x, y, theta float64) Position {
	return Position{X: x, Y: y, Theta: theta}.Clamped()
}

// Clamped returns p with x and y limited to the arena and theta wrapped into (-180, 180].
func (p Position) Clamped() Position {
	return Position{
		X:     utils.Clamp(p.X, 0, ArenaWidthMM),
		Y:     utils.Clamp(p.Y, 0, ArenaHeightMM),
		Theta: utils.NormalizeDeg(p.Theta),
	}
}

// Point returns the planar location as a vector with Z=0.
func (p Position) Point() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y}
}

// DistanceTo is the euclidean distance in millimeters to (x, y).
func (p Position) DistanceTo(x, y float64) float64 {
	return math.Hypot(x-p.X, y-p.Y)
}

// HeadingTo is the absolute heading in degrees from p towards (x, y).
func (p Position) HeadingTo(x, y float64) float64 {
	return utils.RadToDeg(math.Atan2(y-p.Y, x-p.X))
}

func (p Position) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f°)", p.X, p.Y, p.Theta)
}

// InArena reports whether v lies inside the table.
func InArena(v r3.Vector) bool {
	return v.X >= 0 && v.X <= ArenaWidthMM && v.Y >= 0 && v.Y <= ArenaHeightMM
}
