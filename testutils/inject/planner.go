package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// Planner is an injected motionplan.Planner.
type Planner struct {
	motionplan.Planner
	PlanFunc func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error)
}

// Plan calls the injected Plan or the real version.
func (p *Planner) Plan(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
	if p.PlanFunc == nil {
		return p.Planner.Plan(ctx, start, goal)
	}
	return p.PlanFunc(ctx, start, goal)
}
