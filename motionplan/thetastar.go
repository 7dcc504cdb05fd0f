package motionplan

import (
	"container/heap"
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/utils"
)

const (
	// DefaultTurnPenaltyWeight scales the heading-change cost of the grid search.
	DefaultTurnPenaltyWeight = 2.0
	// cost per degree of heading change, in cells, before weighting
	turnPenaltyPerDeg = 2.0
	// how many expansions between context checks
	ctxCheckInterval = 1024
)

var neighborOffsets = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

// GridOptions tunes a GridPlanner.
type GridOptions struct {
	// HalfWidthMM is used for the direct-segment footprint check.
	HalfWidthMM float64
	// ClearanceMM is how far the search keeps cell centers from obstacles and walls.
	ClearanceMM       float64
	TurnPenaltyWeight float64
}

// GridPlanner is an any-angle search over the occupancy grid with a penalty on heading changes.
type GridPlanner struct {
	grid   *OccupancyGrid
	search *OccupancyGrid
	opts   GridOptions
	logger golog.Logger
}

// NewGridPlanner returns a planner over grid. The search runs on a copy inflated by the clearance.
func NewGridPlanner(grid *OccupancyGrid, opts GridOptions, logger golog.Logger) *GridPlanner {
	return &GridPlanner{
		grid:   grid,
		search: grid.Inflate(opts.ClearanceMM),
		opts:   opts,
		logger: logger,
	}
}

type planNode struct {
	x, y   int
	g, h   float64
	parent *planNode
	index  int
	closed bool
}

type nodeHeap []*planNode

func (nh nodeHeap) Len() int { return len(nh) }
func (nh nodeHeap) Less(i, j int) bool {
	return nh[i].g+nh[i].h < nh[j].g+nh[j].h
}

func (nh nodeHeap) Swap(i, j int) {
	nh[i], nh[j] = nh[j], nh[i]
	nh[i].index = i
	nh[j].index = j
}

func (nh *nodeHeap) Push(x interface{}) {
	n := x.(*planNode)
	n.index = len(*nh)
	*nh = append(*nh, n)
}

func (nh *nodeHeap) Pop() interface{} {
	old := *nh
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*nh = old[:len(old)-1]
	return n
}

// Plan returns waypoints from start to goal.
func (gp *GridPlanner) Plan(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
	from, to := start.Point(), goal.Point()
	if gp.grid.FootprintClear(from, to, gp.opts.HalfWidthMM) {
		return []r3.Vector{to}, nil
	}

	w, _ := gp.search.Size()
	sx, sy := gp.search.ToCell(from)
	gx, gy := gp.search.ToCell(to)
	if !gp.search.InBounds(sx, sy) || gp.search.Cell(gx, gy) != Free {
		return nil, NewNoPathFoundError(start, goal)
	}

	nodes := map[int]*planNode{}
	get := func(x, y int) *planNode {
		k := y*w + x
		n, ok := nodes[k]
		if !ok {
			n = &planNode{x: x, y: y, g: math.Inf(1), h: math.Hypot(float64(gx-x), float64(gy-y)), index: -1}
			nodes[k] = n
		}
		return n
	}

	startNode := get(sx, sy)
	startNode.g = 0
	// a start outside the clearance band only has to keep its center line clear
	strictStart := gp.search.Cell(sx, sy) == Free
	point := func(n *planNode) r3.Vector {
		switch {
		case n == startNode:
			return from
		case n.x == gx && n.y == gy:
			return to
		default:
			return gp.search.CellCenter(n.x, n.y)
		}
	}
	segmentClear := func(a, b *planNode) bool {
		if a == startNode && !strictStart {
			return gp.grid.FootprintClear(point(a), point(b), 0)
		}
		return gp.grid.FootprintClear(point(a), point(b), gp.opts.HalfWidthMM)
	}
	open := &nodeHeap{}
	heap.Push(open, startNode)

	for expanded := 0; open.Len() > 0; expanded++ {
		if expanded%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := heap.Pop(open).(*planNode)
		if cur.closed {
			continue
		}
		cur.closed = true
		if cur.x == gx && cur.y == gy {
			path := gp.reconstruct(cur, to)
			gp.logger.Debugw("grid plan found", "expanded", expanded, "waypoints", len(path))
			return path, nil
		}
		for _, off := range neighborOffsets {
			nx, ny := cur.x+off[0], cur.y+off[1]
			if gp.search.Cell(nx, ny) != Free {
				continue
			}
			next := get(nx, ny)
			if next.closed {
				continue
			}
			gp.relax(open, cur, next, segmentClear)
		}
	}
	return nil, NewNoPathFoundError(start, goal)
}

// relax updates next through cur's parent when it is visible from there, otherwise through cur.
// Either edge must keep the footprint clear.
func (gp *GridPlanner) relax(open *nodeHeap, cur, next *planNode, segmentClear func(a, b *planNode) bool) {
	parent := cur
	switch {
	case cur.parent != nil && gp.search.LineOfSight(cur.parent.x, cur.parent.y, next.x, next.y) &&
		segmentClear(cur.parent, next):
		parent = cur.parent
	case !segmentClear(cur, next):
		return
	}
	g := parent.g + cellDist(parent, next) + gp.turnCost(parent.parent, parent, next)
	if g >= next.g {
		return
	}
	next.g = g
	next.parent = parent
	if next.index >= 0 {
		heap.Fix(open, next.index)
	} else {
		heap.Push(open, next)
	}
}

func (gp *GridPlanner) turnCost(a, b, c *planNode) float64 {
	if a == nil {
		return 0
	}
	in := r3.Vector{X: float64(b.x - a.x), Y: float64(b.y - a.y)}
	out := r3.Vector{X: float64(c.x - b.x), Y: float64(c.y - b.y)}
	return turnPenalty(in, out, gp.opts.TurnPenaltyWeight)
}

func turnPenalty(in, out r3.Vector, weight float64) float64 {
	if in.Norm() == 0 || out.Norm() == 0 {
		return 0
	}
	deg := utils.RadToDeg(float64(in.Angle(out)))
	return turnPenaltyPerDeg * deg * weight
}

func cellDist(a, b *planNode) float64 {
	return math.Hypot(float64(b.x-a.x), float64(b.y-a.y))
}

func (gp *GridPlanner) reconstruct(goal *planNode, to r3.Vector) []r3.Vector {
	var cells []*planNode
	for n := goal; n != nil; n = n.parent {
		cells = append(cells, n)
	}
	// cells runs goal to start; skip the start cell
	path := make([]r3.Vector, 0, len(cells)-1)
	for i := len(cells) - 2; i >= 0; i-- {
		path = append(path, gp.search.CellCenter(cells[i].x, cells[i].y))
	}
	if len(path) == 0 {
		return []r3.Vector{to}
	}
	path[len(path)-1] = to
	return path
}

// PathCost is the search cost of a path in cells: its length plus the weighted turn penalty
// at every interior vertex.
func PathCost(start r3.Vector, path []r3.Vector, cellMM, weight float64) float64 {
	cost := PathLength(start, path) / cellMM
	prev := start
	var heading r3.Vector
	for _, p := range path {
		d := p.Sub(prev)
		cost += turnPenalty(heading, d, weight)
		heading = d
		prev = p
	}
	return cost
}
