package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/robot/task"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// StartPose is where the robot is placed before a mission.
type StartPose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Position converts the start pose.
func (s StartPose) Position() spatialmath.Position {
	return spatialmath.NewPosition(s.X, s.Y, s.Theta)
}

// A Mission is an optional start pose and one token list per task, run in order.
type Mission struct {
	Start *StartPose `json:"start,omitempty"`
	Tasks [][]string `json:"tasks"`
}

// Validate ensures the mission has tasks, starts on the table and only uses known actions.
func (m *Mission) Validate(path string) error {
	if len(m.Tasks) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "tasks")
	}
	if m.Start != nil && !spatialmath.InArena(spatialmath.Position{X: m.Start.X, Y: m.Start.Y}.Point()) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("start (%v, %v) is off the table", m.Start.X, m.Start.Y))
	}
	if _, err := m.Actions(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// Actions parses every task's tokens.
func (m *Mission) Actions() ([][]actions.Action, error) {
	lists := make([][]actions.Action, 0, len(m.Tasks))
	for i, tokens := range m.Tasks {
		as, err := actions.ParseAll(tokens)
		if err != nil {
			return nil, errors.Wrapf(err, "task %d", i)
		}
		lists = append(lists, as)
	}
	return lists, nil
}

// StartPosition is the start pose, or nil to keep the board's odometry.
func (m *Mission) StartPosition() *spatialmath.Position {
	if m.Start == nil {
		return nil
	}
	p := m.Start.Position()
	return &p
}

// Chain builds the task chain in env.
func (m *Mission) Chain(env *task.Env) (*task.Task, error) {
	return task.ParseChain(env, m.Tasks)
}

// ReadMission reads a mission file, expanding ${VAR} references from the environment.
func ReadMission(filePath string) (*Mission, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return MissionFromReader(filePath, bytes.NewReader(buf))
}

// MissionFromReader decodes and validates a mission.
func MissionFromReader(originalPath string, r io.Reader) (*Mission, error) {
	var m Mission
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "failed to decode mission %s", originalPath)
	}
	if err := m.Validate("mission"); err != nil {
		return nil, err
	}
	return &m, nil
}
