// Package motionplan finds collision-free routes across the arena for a robot of known width.
package motionplan

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/spatialmath"
)

// ErrNoPathFound is returned when no collision-free route exists or none was found within
// the search budget.
var ErrNoPathFound = errors.New("no collision-free path found")

// NewNoPathFoundError describes a failed plan between two poses.
func NewNoPathFoundError(start, goal spatialmath.Position) error {
	return errors.Wrapf(ErrNoPathFound, "from %v to (%.0f, %.0f)", start, goal.X, goal.Y)
}

// IsNoPathFound reports whether err is, or wraps, ErrNoPathFound.
func IsNoPathFound(err error) bool {
	return errors.Is(err, ErrNoPathFound)
}

// A Planner returns the waypoints after start that lead to goal; the last one is the goal.
type Planner interface {
	Plan(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error)
}

// Planner kinds.
const (
	KindSampled = "sampled"
	KindGrid    = "grid"
)

// Config selects and tunes the planner.
type Config struct {
	Kind              string  `json:"kind"`
	CellMM            float64 `json:"cell_mm"`
	Attempts          int     `json:"attempts"`
	MaxIters          int     `json:"max_iters"`
	TurnPenaltyWeight float64 `json:"turn_penalty_weight"`
	ClearanceMM       float64 `json:"clearance_mm,omitempty"`
	Seed              int64   `json:"seed,omitempty"`
}

// DefaultConfig uses the sampled planner.
var DefaultConfig = Config{
	Kind:              KindSampled,
	CellMM:            DefaultCellMM,
	Attempts:          defaultAttempts,
	MaxIters:          defaultMaxIters,
	TurnPenaltyWeight: DefaultTurnPenaltyWeight,
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	switch c.Kind {
	case KindSampled, KindGrid:
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "kind")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown planner kind %q", c.Kind))
	}
	if c.CellMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "cell_mm")
	}
	if c.Kind == KindSampled && (c.Attempts <= 0 || c.MaxIters <= 0) {
		return goutils.NewConfigValidationError(path, errors.New("attempts and max_iters must be positive"))
	}
	if c.TurnPenaltyWeight < 0 || c.ClearanceMM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("turn_penalty_weight and clearance_mm must not be negative"))
	}
	return nil
}

// DefaultClearance keeps cell centers far enough from obstacles that a segment between two
// free centers, which may pass half a cell diagonal away from them, still clears the body.
func DefaultClearance(botWidthMM, cellMM float64) float64 {
	return botWidthMM/2 + cellMM*math.Sqrt2
}

// NewPlanner builds the configured planner over grid for a robot botWidthMM wide.
func NewPlanner(cfg Config, grid *OccupancyGrid, botWidthMM float64, logger golog.Logger) (Planner, error) {
	if err := cfg.Validate("planner"); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindGrid:
		clearance := cfg.ClearanceMM
		if clearance == 0 {
			clearance = DefaultClearance(botWidthMM, cfg.CellMM)
		}
		return NewGridPlanner(grid, GridOptions{
			HalfWidthMM:       botWidthMM / 2,
			ClearanceMM:       clearance,
			TurnPenaltyWeight: cfg.TurnPenaltyWeight,
		}, logger), nil
	default:
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		//nolint:gosec
		return NewSampledPlanner(grid, SampledOptions{
			BotWidthMM: botWidthMM,
			Attempts:   cfg.Attempts,
			MaxIters:   cfg.MaxIters,
		}, rand.New(rand.NewSource(seed)), logger), nil
	}
}
