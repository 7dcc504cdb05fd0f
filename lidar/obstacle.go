package lidar

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/spatialmath"
)

// Sector is an arc of beam angles in degrees. From may be larger than To, in which case
// the arc wraps through 0.
type Sector struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Contains reports whether angleDeg lies on the arc, ends included.
func (s Sector) Contains(angleDeg float64) bool {
	if s.From <= s.To {
		return angleDeg >= s.From && angleDeg <= s.To
	}
	return angleDeg >= s.From || angleDeg <= s.To
}

// Config tunes obstacle detection and the optional scanner device.
type Config struct {
	// Path is the scanner's serial device. Empty disables the scanner.
	Path       string  `json:"path,omitempty"`
	BaudRate   int     `json:"baud_rate,omitempty"`
	ObstacleMM float64 `json:"obstacle_mm"`
	Percentile float64 `json:"percentile"`
	Front      Sector  `json:"front"`
	Rear       Sector  `json:"rear"`
}

// DefaultConfig watches 30 degrees either side of the travel direction out to half a meter.
var DefaultConfig = Config{
	ObstacleMM: 500,
	Percentile: 10,
	Front:      Sector{From: 330, To: 30},
	Rear:       Sector{From: 150, To: 210},
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.ObstacleMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "obstacle_mm")
	}
	if c.Percentile <= 0 || c.Percentile > 100 {
		return goutils.NewConfigValidationError(path, errors.Errorf("percentile must be in (0, 100], got %v", c.Percentile))
	}
	for name, s := range map[string]Sector{"front": c.Front, "rear": c.Rear} {
		if s.From < 0 || s.From >= 360 || s.To < 0 || s.To >= 360 {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s sector must lie in [0, 360)", name))
		}
	}
	return nil
}

// ObstacleAhead reports whether something is within cfg.ObstacleMM in the direction of
// travel: the front sector for direction 1, the rear one for -1. Turning in place never
// reports an obstacle. Beams hitting outside the table are ignored, they see the
// audience rather than the arena.
func ObstacleAhead(ms Measurements, pose spatialmath.Position, direction int, cfg Config) bool {
	var sector Sector
	switch {
	case direction > 0:
		sector = cfg.Front
	case direction < 0:
		sector = cfg.Rear
	default:
		return false
	}
	var ranges stats.Float64Data
	for _, m := range ms {
		if m == nil || m.Distance() <= 0 || !sector.Contains(m.AngleDeg()) {
			continue
		}
		if !spatialmath.InArena(m.WorldPoint(pose)) {
			continue
		}
		ranges = append(ranges, m.Distance())
	}
	if len(ranges) == 0 {
		return false
	}
	near, err := stats.PercentileNearestRank(ranges, cfg.Percentile)
	if err != nil {
		return false
	}
	return near < cfg.ObstacleMM
}
