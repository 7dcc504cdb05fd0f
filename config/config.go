// Package config defines the navcore configuration file and mission files.
package config

import (
	"go.uber.org/multierr"

	"github.com/eurobot-nav/navcore/components/base/wheeled"
	"github.com/eurobot-nav/navcore/components/board/arduino"
	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/robot"
	"github.com/eurobot-nav/navcore/robot/task"
)

// A Config describes one robot: how to reach its board and how to drive, plan and sequence.
type Config struct {
	ConfigFilePath string `json:"-"`

	Serial   arduino.Config      `json:"serial"`
	Geometry wheeled.Geometry    `json:"geometry"`
	Drive    wheeled.DriveConfig `json:"drive"`
	Planner  motionplan.Config   `json:"planner"`
	Task     task.Config         `json:"task"`
	Lidar    lidar.Config        `json:"lidar"`
	Loop     robot.LoopConfig    `json:"loop"`
	Arena    *motionplan.Arena   `json:"arena,omitempty"`
}

// Default returns the configuration the robot was tuned with. It has no serial path.
func Default() *Config {
	return &Config{
		Geometry: wheeled.DefaultGeometry,
		Drive:    wheeled.DefaultDriveConfig,
		Planner:  motionplan.DefaultConfig,
		Task:     task.DefaultConfig,
		Lidar:    lidar.DefaultConfig,
		Loop:     robot.DefaultLoopConfig,
	}
}

// Validate checks every section and reports all failures together. The serial section is
// only checked when a path is set, so a config without one can still drive the fake board.
func (c *Config) Validate() error {
	var errs error
	if c.Serial.Path != "" {
		errs = multierr.Append(errs, c.Serial.Validate("serial"))
	}
	errs = multierr.Append(errs, c.Geometry.Validate("geometry"))
	errs = multierr.Append(errs, c.Drive.Validate("drive"))
	errs = multierr.Append(errs, c.Planner.Validate("planner"))
	errs = multierr.Append(errs, c.Task.Validate("task"))
	errs = multierr.Append(errs, c.Lidar.Validate("lidar"))
	errs = multierr.Append(errs, c.Loop.Validate("loop"))
	if c.Arena != nil {
		errs = multierr.Append(errs, c.Arena.Validate("arena"))
	}
	return errs
}

// ArenaOrDefault is the configured arena, or the competition table.
func (c *Config) ArenaOrDefault() motionplan.Arena {
	if c.Arena != nil {
		return *c.Arena
	}
	return motionplan.DefaultArena()
}

// ControllerConfig is the drive controller's slice of the config.
func (c *Config) ControllerConfig() wheeled.Config {
	return wheeled.Config{Geometry: c.Geometry, Drive: c.Drive}
}
