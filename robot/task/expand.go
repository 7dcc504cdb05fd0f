package task

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/eurobot-nav/navcore/components/base/wheeled"
	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// expand plans a PathTo from the current pose and returns the primitives that replace it.
func (t *Task) expand(ctx context.Context, a actions.PathTo) ([]actions.Action, error) {
	env := t.env
	from := env.Driver.Pose()
	goal := spatialmath.NewPosition(a.X, a.Y, 0)
	path, err := env.Planner.Plan(ctx, from, goal)
	if err != nil {
		if !motionplan.IsNoPathFound(err) {
			return nil, err
		}
		var skip bool
		path, skip, err = t.noPath(ctx, from, goal, err)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, nil
		}
	}
	out := Splice(from, path, a.Theta)
	env.Logger.Infow("path expanded", "task", t.ID, "goal", a.String(), "waypoints", len(path),
		"actions", actions.Strings(out))
	return out, nil
}

func (t *Task) noPath(
	ctx context.Context,
	from, goal spatialmath.Position,
	cause error,
) ([]r3.Vector, bool, error) {
	env := t.env
	switch env.Config.NoPath {
	case NoPathSkip:
		env.Logger.Warnw("skipping unreachable goal", "task", t.ID, "error", cause)
		return nil, true, nil
	case NoPathVia:
		vias := lo.Map(env.Config.Via, func(v ViaPoint, _ int) spatialmath.Position {
			return spatialmath.NewPosition(v.X, v.Y, 0)
		})
		for _, via := range vias {
			first, err := env.Planner.Plan(ctx, from, via)
			if motionplan.IsNoPathFound(err) {
				continue
			} else if err != nil {
				return nil, false, err
			}
			second, err := env.Planner.Plan(ctx, via, goal)
			if motionplan.IsNoPathFound(err) {
				continue
			} else if err != nil {
				return nil, false, err
			}
			env.Logger.Infow("routing through via point", "task", t.ID, "via", via)
			return append(first, second...), false, nil
		}
		return nil, false, cause
	default:
		return nil, false, cause
	}
}

// Splice turns waypoints into a turn and a drive per waypoint, each planned from where the
// previous one ends, and a final TurnToHeading when theta is set.
func Splice(from spatialmath.Position, path []r3.Vector, theta *float64) []actions.Action {
	out := make([]actions.Action, 0, 2*len(path)+1)
	cur := from
	for _, wp := range path {
		out = append(out, wheeled.PlanDriveTo(cur, wp.X, wp.Y, nil)...)
		heading := cur.Theta
		if cur.DistanceTo(wp.X, wp.Y) > 0 {
			heading = cur.HeadingTo(wp.X, wp.Y)
		}
		cur = spatialmath.Position{X: wp.X, Y: wp.Y, Theta: heading}
	}
	if theta != nil {
		out = append(out, actions.TurnToHeading{Deg: *theta})
	}
	return out
}
