package motionplan

import (
	"context"
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/utils"
)

const (
	defaultAttempts = 5
	defaultMaxIters = 1250
	// intermediate points never exceed this many, whatever the attempt
	maxChainPoints = 6
)

// SampledOptions tunes a SampledPlanner.
type SampledOptions struct {
	BotWidthMM float64
	Attempts   int
	MaxIters   int
}

// SampledPlanner searches random chains of intermediate points. Each attempt samples more
// of the arena uniformly and allows longer chains than the last. The cheapest chain found
// is then straightened greedily.
type SampledPlanner struct {
	grid      *OccupancyGrid
	halfWidth float64
	botWidth  float64
	attempts  int
	maxIters  int
	randseed  *rand.Rand
	logger    golog.Logger
}

// NewSampledPlanner returns a planner drawing from seed.
func NewSampledPlanner(grid *OccupancyGrid, opts SampledOptions, seed *rand.Rand, logger golog.Logger) *SampledPlanner {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.MaxIters <= 0 {
		opts.MaxIters = defaultMaxIters
	}
	return &SampledPlanner{
		grid:      grid,
		halfWidth: opts.BotWidthMM / 2,
		botWidth:  opts.BotWidthMM,
		attempts:  opts.Attempts,
		maxIters:  opts.MaxIters,
		randseed:  seed,
		logger:    logger,
	}
}

// Plan returns waypoints from start to goal.
func (sp *SampledPlanner) Plan(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
	from, to := start.Point(), goal.Point()
	if sp.clear(from, to) {
		return []r3.Vector{to}, nil
	}
	for attempt := 0; attempt < sp.attempts; attempt++ {
		chain, err := sp.findChain(ctx, from, to, attempt)
		if err != nil {
			return nil, err
		}
		if chain != nil {
			path := sp.shortcut(append([]r3.Vector{from}, chain...))
			sp.logger.Debugw("sampled plan found", "attempt", attempt, "waypoints", len(path),
				"length", PathLength(from, path))
			return path, nil
		}
		sp.logger.Debugw("sampled plan attempt failed", "attempt", attempt)
	}
	return nil, NewNoPathFoundError(start, goal)
}

func (sp *SampledPlanner) clear(a, b r3.Vector) bool {
	return sp.grid.FootprintClear(a, b, sp.halfWidth)
}

// findChain returns the shortest collision-free chain ending at to, or nil.
func (sp *SampledPlanner) findChain(ctx context.Context, from, to r3.Vector, attempt int) ([]r3.Vector, error) {
	exploration := math.Min(0.3+0.1*float64(attempt), 0.8)
	maxPoints := min(3+attempt, maxChainPoints)
	itersPerSize := sp.maxIters / maxPoints

	var best []r3.Vector
	bestLen := math.Inf(1)
	for n := 1; n <= maxPoints; n++ {
		for i := 0; i < itersPerSize; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			chain := sp.sampleChain(from, to, n, exploration)
			if chain == nil {
				continue
			}
			if l := PathLength(from, chain); l < bestLen {
				best, bestLen = chain, l
			}
		}
	}
	return best, nil
}

// sampleChain draws n points one after the other, giving up at the first blocked segment.
func (sp *SampledPlanner) sampleChain(from, to r3.Vector, n int, exploration float64) []r3.Vector {
	chain := make([]r3.Vector, 0, n+1)
	cur := from
	for k := 0; k < n; k++ {
		p := sp.samplePoint(cur, to, exploration)
		if !sp.clear(cur, p) {
			return nil
		}
		chain = append(chain, p)
		cur = p
	}
	if !sp.clear(cur, to) {
		return nil
	}
	return append(chain, to)
}

// samplePoint draws uniformly over the arena with probability exploration, otherwise near
// a random fraction of the way from cur to the target.
func (sp *SampledPlanner) samplePoint(cur, to r3.Vector, exploration float64) r3.Vector {
	w, h := sp.grid.Size()
	maxX := float64(w)*sp.grid.CellMM() - 1
	maxY := float64(h)*sp.grid.CellMM() - 1
	if sp.randseed.Float64() < exploration {
		return r3.Vector{X: sp.randseed.Float64() * maxX, Y: sp.randseed.Float64() * maxY}
	}
	bias := 0.2 + 0.6*sp.randseed.Float64()
	noise := sp.botWidth * 4
	p := cur.Add(to.Sub(cur).Mul(bias))
	p.X += (2*sp.randseed.Float64() - 1) * noise
	p.Y += (2*sp.randseed.Float64() - 1) * noise
	return r3.Vector{X: utils.Clamp(p.X, 0, maxX), Y: utils.Clamp(p.Y, 0, maxY)}
}

// shortcut drops every point that a later point can be reached from directly.
// path[0] is the start and is not returned.
func (sp *SampledPlanner) shortcut(path []r3.Vector) []r3.Vector {
	out := []r3.Vector{}
	cur := 0
	for cur < len(path)-1 {
		next := cur + 1
		for j := len(path) - 1; j > cur+1; j-- {
			if sp.clear(path[cur], path[j]) {
				next = j
				break
			}
		}
		out = append(out, path[next])
		cur = next
	}
	return out
}
