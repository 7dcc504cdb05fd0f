package task

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/spatialmath"
)

// NoPathPolicy decides what a PathTo does when the planner finds no route.
type NoPathPolicy string

// The no-path policies.
const (
	// NoPathAbort fails the mission.
	NoPathAbort NoPathPolicy = "abort"
	// NoPathSkip drops the PathTo and carries on with the next action.
	NoPathSkip NoPathPolicy = "skip"
	// NoPathVia retries through each configured via point in turn.
	NoPathVia NoPathPolicy = "via"
)

// ViaPoint is an intermediate goal for the via policy.
type ViaPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config tunes the task state machine. A MissionCutoffS of 0 disables the cutoff.
type Config struct {
	StallWindowMS  int          `json:"stall_window_ms"`
	MaxRetries     int          `json:"max_retries"`
	MissionCutoffS float64      `json:"mission_cutoff_s"`
	NoPath         NoPathPolicy `json:"no_path"`
	Via            []ViaPoint   `json:"via,omitempty"`
}

// DefaultConfig matches the competition rules.
var DefaultConfig = Config{
	StallWindowMS:  5000,
	MaxRetries:     3,
	MissionCutoffS: 100,
	NoPath:         NoPathAbort,
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.StallWindowMS <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "stall_window_ms")
	}
	if c.MaxRetries < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_retries must not be negative"))
	}
	if c.MissionCutoffS < 0 {
		return goutils.NewConfigValidationError(path, errors.New("mission_cutoff_s must not be negative"))
	}
	switch c.NoPath {
	case NoPathAbort, NoPathSkip:
	case NoPathVia:
		if len(c.Via) == 0 {
			return goutils.NewConfigValidationFieldRequiredError(path, "via")
		}
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "no_path")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown no_path policy %q", c.NoPath))
	}
	for i, v := range c.Via {
		if v.X < 0 || v.X > spatialmath.ArenaWidthMM || v.Y < 0 || v.Y > spatialmath.ArenaHeightMM {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.via.%d", path, i), errors.New("via point outside the arena"))
		}
	}
	return nil
}

// StallWindow is how long a task may be held before it is retried.
func (c Config) StallWindow() time.Duration {
	return time.Duration(c.StallWindowMS) * time.Millisecond
}

// MissionCutoff is the total mission time, or 0 for none.
func (c Config) MissionCutoff() time.Duration {
	return time.Duration(c.MissionCutoffS * float64(time.Second))
}
